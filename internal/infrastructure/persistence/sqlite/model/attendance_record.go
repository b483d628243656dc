package model

import (
	"time"

	"gorm.io/gorm"
)

// AttendanceRecord: at most one non-deleted row per (user, work_date); a
// tombstoned row for the same key is revived on re-check-in, never
// duplicated. work_date is a business-timezone calendar date (YYYY-MM-DD).
type AttendanceRecord struct {
	AttendanceID uint64         `gorm:"column:attendance_id;primaryKey;autoIncrement"`
	UserID       uint64         `gorm:"column:user_id;not null;index:ux_attendance_user_date,unique,priority:1,where:deleted_at IS NULL"`
	WorkDate     string         `gorm:"column:work_date;type:text;not null;index:ux_attendance_user_date,unique,priority:2,where:deleted_at IS NULL"`
	CheckInAt    *time.Time     `gorm:"column:check_in_at;type:datetime"`
	CheckOutAt   *time.Time     `gorm:"column:check_out_at;type:datetime"`
	CreatedAt    time.Time      `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;type:datetime;not null"`
	DeletedAt    gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
