package ports

import (
	"context"
	"errors"
	"time"
)

var ErrAttendanceNotFound = errors.New("attendance record not found")

// AttendanceRecord covers one user on one business-calendar date.
// WorkDate is a YYYY-MM-DD key computed in the business timezone.
type AttendanceRecord struct {
	AttendanceID uint64
	UserID       uint64
	WorkDate     string
	CheckInAt    *time.Time
	CheckOutAt   *time.Time
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AttendanceRepository interface {
	// FindForDate looks up the record for (user, work date); with
	// includeDeleted it also surfaces tombstoned rows so a re-check-in can
	// revive instead of duplicating.
	FindForDate(ctx context.Context, userID uint64, workDate string, includeDeleted bool) (AttendanceRecord, error)
	Create(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error)
	// Revive clears the tombstone and resets the check-in of a soft-deleted row.
	Revive(ctx context.Context, attendanceID uint64, checkInAt time.Time) error
	SetCheckOut(ctx context.Context, attendanceID uint64, checkOutAt time.Time) error
	SoftDelete(ctx context.Context, attendanceID uint64) error
}
