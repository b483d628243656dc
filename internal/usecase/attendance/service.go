package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/rules"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
	ledgeruc "fleetops/internal/usecase/ledger"
	rulesuc "fleetops/internal/usecase/rules"
)

// Service keeps one attendance record per user per business-calendar day.
// Work dates are computed in the business timezone, not UTC, so a night
// shift checking in at 23:30 local lands on the right day.
type Service struct {
	repo   ports.AttendanceRepository
	users  ports.UserRepository
	ledger *ledgeruc.Service
	rules  *rulesuc.Service
	uow    ports.UnitOfWork
	loc    *time.Location
	now    func() time.Time
}

func NewService(
	repo ports.AttendanceRepository,
	users ports.UserRepository,
	ledger *ledgeruc.Service,
	rulesSvc *rulesuc.Service,
	uow ports.UnitOfWork,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		users:  users,
		ledger: ledger,
		rules:  rulesSvc,
		uow:    uow,
		loc:    loc,
		now:    time.Now,
	}
}

type CheckInInput struct {
	UserID uint64
	// At overrides the clock; zero means now.
	At time.Time
}

type CheckInResult struct {
	Record              ports.AttendanceRecord
	Created             bool
	Revived             bool
	PunctualityXPPosted bool
}

type CheckOutInput struct {
	UserID uint64
	At     time.Time
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("attendance repository is required")
	}
	if s.uow == nil {
		return errors.New("attendance unit of work is required")
	}
	return nil
}

// CheckIn records the first check-in of the day, absorbs repeats and
// revives a tombstoned record instead of duplicating its (user, date) slot.
// An on-time first check-in posts punctuality XP exactly once per day.
func (s *Service) CheckIn(ctx context.Context, input CheckInInput) (CheckInResult, error) {
	if err := s.guard(ctx); err != nil {
		return CheckInResult{}, err
	}

	at := input.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	workDate := s.WorkDate(at)

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return CheckInResult{}, err
	}

	var result CheckInResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByID(txCtx, input.UserID)
		if err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				return workflow.NotFoundf("user %d not found", input.UserID)
			}
			return err
		}
		if !workflow.ResolveCapabilities(user.Roles).Has(workflow.CapTrackAttendance) {
			return workflow.Validationf("user %q may not track attendance", user.Username)
		}

		existing, err := s.repo.FindForDate(txCtx, input.UserID, workDate, true)
		switch {
		case err == nil && !existing.Deleted:
			// Same-day repeat: keep the original check-in.
			result = CheckInResult{Record: existing, Created: false}
			return nil
		case err == nil && existing.Deleted:
			if err := s.repo.Revive(txCtx, existing.AttendanceID, at); err != nil {
				return err
			}
			revived, err := s.repo.FindForDate(txCtx, input.UserID, workDate, false)
			if err != nil {
				return err
			}
			result = CheckInResult{Record: revived, Created: true, Revived: true}
		case errors.Is(err, ports.ErrAttendanceNotFound):
			created, err := s.repo.Create(txCtx, ports.AttendanceRecord{
				UserID:    input.UserID,
				WorkDate:  workDate,
				CheckInAt: &at,
				CreatedAt: at,
				UpdatedAt: at,
			})
			if err != nil {
				return err
			}
			result = CheckInResult{Record: created, Created: true}
		default:
			return err
		}

		if s.isPunctual(active.Config.Gamification, at) && active.Config.Gamification.PunctualityXP > 0 {
			posted, err := s.ledger.AppendTx(txCtx, ledgeruc.AppendInput{
				UserID:      input.UserID,
				Amount:      active.Config.Gamification.PunctualityXP,
				EntryType:   "attendance_punctuality",
				Reference:   fmt.Sprintf("attendance_punctuality:%d:%s", input.UserID, workDate),
				Description: fmt.Sprintf("on-time check-in for %s", workDate),
			})
			if err != nil {
				return err
			}
			result.PunctualityXPPosted = posted
		}
		return nil
	}); err != nil {
		return CheckInResult{}, err
	}

	if result.Created {
		logging.Info(ctx, "attendance check-in recorded",
			slog.Uint64("user_id", input.UserID),
			slog.String("work_date", workDate),
			slog.Bool("revived", result.Revived),
			slog.Bool("punctuality_xp", result.PunctualityXPPosted))
	}
	return result, nil
}

// CheckOut stamps the day's record. Re-checkout overwrites the stamp so a
// forgotten early checkout can be corrected the same day.
func (s *Service) CheckOut(ctx context.Context, input CheckOutInput) (ports.AttendanceRecord, error) {
	if err := s.guard(ctx); err != nil {
		return ports.AttendanceRecord{}, err
	}

	at := input.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	workDate := s.WorkDate(at)

	var record ports.AttendanceRecord
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindForDate(txCtx, input.UserID, workDate, false)
		if err != nil {
			if errors.Is(err, ports.ErrAttendanceNotFound) {
				return workflow.NotFoundf("no check-in for user %d on %s", input.UserID, workDate)
			}
			return err
		}
		if existing.CheckInAt != nil && at.Before(*existing.CheckInAt) {
			return workflow.Validationf("check-out cannot precede check-in")
		}
		if err := s.repo.SetCheckOut(txCtx, existing.AttendanceID, at); err != nil {
			return err
		}
		existing.CheckOutAt = &at
		record = existing
		return nil
	}); err != nil {
		return ports.AttendanceRecord{}, err
	}
	return record, nil
}

// Today returns the record for the current business day, if any.
func (s *Service) Today(ctx context.Context, userID uint64) (ports.AttendanceRecord, error) {
	if err := s.guard(ctx); err != nil {
		return ports.AttendanceRecord{}, err
	}

	workDate := s.WorkDate(s.now())
	record, err := s.repo.FindForDate(ctx, userID, workDate, false)
	if err != nil {
		if errors.Is(err, ports.ErrAttendanceNotFound) {
			return ports.AttendanceRecord{}, workflow.NotFoundf("no attendance for user %d on %s", userID, workDate)
		}
		return ports.AttendanceRecord{}, errs.Wrap(err, "load attendance record")
	}
	return record, nil
}

// Delete tombstones a day's record. The ledger posting, if any, stays: XP
// history is append-only and corrections go through manual adjustments.
func (s *Service) Delete(ctx context.Context, userID uint64, workDate string) error {
	if err := s.guard(ctx); err != nil {
		return err
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindForDate(txCtx, userID, workDate, false)
		if err != nil {
			if errors.Is(err, ports.ErrAttendanceNotFound) {
				return workflow.NotFoundf("no attendance for user %d on %s", userID, workDate)
			}
			return err
		}
		return s.repo.SoftDelete(txCtx, existing.AttendanceID)
	})
}

// WorkDate maps an instant onto its YYYY-MM-DD key in the business timezone.
func (s *Service) WorkDate(at time.Time) string {
	return at.In(s.loc).Format("2006-01-02")
}

func (s *Service) isPunctual(rulesCfg rules.GamificationRules, at time.Time) bool {
	shiftMinutes, err := rules.ParseHHMM(rulesCfg.ShiftStart)
	if err != nil {
		return false
	}

	local := at.In(s.loc)
	minuteOfDay := local.Hour()*60 + local.Minute()
	return minuteOfDay <= shiftMinutes+rulesCfg.CheckinGraceMinutes
}
