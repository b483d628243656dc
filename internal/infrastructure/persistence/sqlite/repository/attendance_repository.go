package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

type AttendanceRepository struct {
	db *gorm.DB
}

var _ ports.AttendanceRepository = (*AttendanceRepository)(nil)

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) FindForDate(ctx context.Context, userID uint64, workDate string, includeDeleted bool) (ports.AttendanceRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.AttendanceRecord{}, err
	}

	query := db.Where("user_id = ? AND work_date = ?", userID, workDate)
	if includeDeleted {
		query = query.Unscoped()
	}

	var row model.AttendanceRecord
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AttendanceRecord{}, ports.ErrAttendanceNotFound
		}
		return ports.AttendanceRecord{}, errs.Wrap(err, "query attendance record")
	}
	return mapAttendance(row), nil
}

func (r *AttendanceRepository) Create(ctx context.Context, record ports.AttendanceRecord) (ports.AttendanceRecord, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.AttendanceRecord{}, err
	}

	row := model.AttendanceRecord{
		UserID:     record.UserID,
		WorkDate:   record.WorkDate,
		CheckInAt:  record.CheckInAt,
		CheckOutAt: record.CheckOutAt,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.AttendanceRecord{}, errs.Wrap(err, "insert attendance record")
	}
	return mapAttendance(row), nil
}

// Revive clears the tombstone of a soft-deleted record instead of inserting
// a duplicate for the same (user, work_date).
func (r *AttendanceRepository) Revive(ctx context.Context, attendanceID uint64, checkInAt time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Unscoped().Model(&model.AttendanceRecord{}).
		Where("attendance_id = ?", attendanceID).
		Updates(map[string]any{
			"deleted_at":   nil,
			"check_in_at":  checkInAt,
			"check_out_at": nil,
			"updated_at":   touchTime(checkInAt),
		}).Error; err != nil {
		return errs.Wrap(err, "revive attendance record")
	}
	return nil
}

func (r *AttendanceRepository) SetCheckOut(ctx context.Context, attendanceID uint64, checkOutAt time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.AttendanceRecord{}).
		Where("attendance_id = ?", attendanceID).
		Updates(map[string]any{
			"check_out_at": checkOutAt,
			"updated_at":   touchTime(checkOutAt),
		}).Error; err != nil {
		return errs.Wrap(err, "set attendance check-out")
	}
	return nil
}

func (r *AttendanceRepository) SoftDelete(ctx context.Context, attendanceID uint64) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Where("attendance_id = ?", attendanceID).Delete(&model.AttendanceRecord{}).Error; err != nil {
		return errs.Wrap(err, "soft delete attendance record")
	}
	return nil
}

func mapAttendance(row model.AttendanceRecord) ports.AttendanceRecord {
	return ports.AttendanceRecord{
		AttendanceID: row.AttendanceID,
		UserID:       row.UserID,
		WorkDate:     row.WorkDate,
		CheckInAt:    row.CheckInAt,
		CheckOutAt:   row.CheckOutAt,
		Deleted:      row.DeletedAt.Valid,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
