package payroll

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/rules"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
	rulesuc "fleetops/internal/usecase/rules"
)

// Service turns the XP ledger into monthly payroll. A month is a draft
// until closed; closing snapshots the rules document so later config edits
// cannot rewrite history, and approval is terminal.
type Service struct {
	payroll ports.PayrollRepository
	ledger  ports.LedgerRepository
	users   ports.UserRepository
	rules   *rulesuc.Service
	uow     ports.UnitOfWork
	loc     *time.Location
	now     func() time.Time
}

func NewService(
	payrollRepo ports.PayrollRepository,
	ledger ports.LedgerRepository,
	users ports.UserRepository,
	rulesSvc *rulesuc.Service,
	uow ports.UnitOfWork,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		payroll: payrollRepo,
		ledger:  ledger,
		users:   users,
		rules:   rulesSvc,
		uow:     uow,
		loc:     loc,
		now:     time.Now,
	}
}

type MonthView struct {
	Month ports.PayrollMonth
	Lines []ports.PayrollLine
}

type GateInput struct {
	Month     string
	Decision  string // approved | rejected
	DecidedBy uint64
	Note      string
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.payroll == nil {
		return errors.New("payroll repository is required")
	}
	if s.uow == nil {
		return errors.New("payroll unit of work is required")
	}
	return nil
}

// BuildMonth (re)computes the draft lines of a month from the ledger. A
// closed or approved month refuses the rebuild.
func (s *Service) BuildMonth(ctx context.Context, month string, actorID uint64) (MonthView, error) {
	if err := s.guard(ctx); err != nil {
		return MonthView{}, err
	}
	from, to, err := s.monthBounds(month)
	if err != nil {
		return MonthView{}, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return MonthView{}, err
	}

	var view MonthView
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.requireManager(txCtx, actorID); err != nil {
			return err
		}

		record, err := s.payroll.GetMonth(txCtx, month)
		switch {
		case err == nil:
			if record.Status != ports.PayrollStatusDraft {
				return workflow.Conflictf("payroll month %s is %s and cannot be rebuilt", month, record.Status)
			}
		case errors.Is(err, ports.ErrPayrollMonthNotFound):
			now := s.now().UTC()
			record, err = s.payroll.CreateMonth(txCtx, ports.PayrollMonth{
				Month:       month,
				Status:      ports.PayrollStatusDraft,
				TotalPayout: decimal.Zero,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return err
			}
		default:
			return err
		}

		lines, total, err := s.computeLines(txCtx, record.PayrollID, from, to, active.Config.Payroll)
		if err != nil {
			return err
		}
		if err := s.payroll.ReplaceLines(txCtx, record.PayrollID, lines); err != nil {
			return err
		}

		record.TotalPayout = total
		record.UpdatedAt = s.now().UTC()
		if err := s.payroll.UpdateMonth(txCtx, record); err != nil {
			return err
		}

		view = MonthView{Month: record, Lines: lines}
		return nil
	}); err != nil {
		return MonthView{}, err
	}

	logging.Info(ctx, "payroll month built",
		slog.String("month", month),
		slog.Int("lines", len(view.Lines)),
		slog.String("total_payout", view.Month.TotalPayout.String()))
	return view, nil
}

// CloseMonth freezes a draft: lines are rebuilt one final time from the
// ledger, the active rules document is snapshotted verbatim, and the month
// stops accepting rebuilds.
func (s *Service) CloseMonth(ctx context.Context, month string, actorID uint64) (MonthView, error) {
	if err := s.guard(ctx); err != nil {
		return MonthView{}, err
	}
	from, to, err := s.monthBounds(month)
	if err != nil {
		return MonthView{}, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return MonthView{}, err
	}
	snapshot, err := active.Config.MarshalStored()
	if err != nil {
		return MonthView{}, err
	}

	var view MonthView
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.requireManager(txCtx, actorID); err != nil {
			return err
		}

		record, err := s.getMonthTx(txCtx, month)
		if err != nil {
			return err
		}
		if record.Status != ports.PayrollStatusDraft {
			return workflow.Conflictf("payroll month %s is already %s", month, record.Status)
		}

		lines, total, err := s.computeLines(txCtx, record.PayrollID, from, to, active.Config.Payroll)
		if err != nil {
			return err
		}
		if err := s.payroll.ReplaceLines(txCtx, record.PayrollID, lines); err != nil {
			return err
		}

		now := s.now().UTC()
		record.Status = ports.PayrollStatusClosed
		record.RulesSnapshotJSON = string(snapshot)
		record.TotalPayout = total
		record.ClosedAt = &now
		record.UpdatedAt = now
		if err := s.payroll.UpdateMonth(txCtx, record); err != nil {
			return err
		}

		view = MonthView{Month: record, Lines: lines}
		return nil
	}); err != nil {
		return MonthView{}, err
	}

	logging.Info(ctx, "payroll month closed",
		slog.String("month", month),
		slog.String("total_payout", view.Month.TotalPayout.String()))
	return view, nil
}

// ApproveMonth is the terminal step. A month carrying non-zero allowances
// needs an approved allowance-gate decision first; a rejected gate blocks.
func (s *Service) ApproveMonth(ctx context.Context, month string, actorID uint64) (MonthView, error) {
	if err := s.guard(ctx); err != nil {
		return MonthView{}, err
	}

	var view MonthView
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.requireManager(txCtx, actorID); err != nil {
			return err
		}

		record, err := s.getMonthTx(txCtx, month)
		if err != nil {
			return err
		}
		if record.Status != ports.PayrollStatusClosed {
			return workflow.Conflictf("payroll month %s must be closed before approval, is %s", month, record.Status)
		}

		lines, err := s.payroll.ListLines(txCtx, record.PayrollID)
		if err != nil {
			return err
		}
		if allowanceTotal(lines).Sign() != 0 {
			gate, err := s.payroll.LatestGateDecision(txCtx, record.PayrollID)
			if err != nil {
				if errors.Is(err, ports.ErrGateDecisionNotFound) {
					return workflow.Validationf("payroll month %s has allowances but no allowance gate decision", month)
				}
				return err
			}
			if gate.Decision != "approved" {
				return workflow.Validationf("allowance gate for payroll month %s is %s", month, gate.Decision)
			}
		}

		now := s.now().UTC()
		record.Status = ports.PayrollStatusApproved
		record.ApprovedAt = &now
		record.UpdatedAt = now
		if err := s.payroll.UpdateMonth(txCtx, record); err != nil {
			return err
		}

		view = MonthView{Month: record, Lines: lines}
		return nil
	}); err != nil {
		return MonthView{}, err
	}

	logging.Info(ctx, "payroll month approved", slog.String("month", month))
	return view, nil
}

// DecideAllowanceGate records the manager's call on the month's allowance
// delta. Decisions append; the latest one wins at approval time.
func (s *Service) DecideAllowanceGate(ctx context.Context, input GateInput) error {
	if err := s.guard(ctx); err != nil {
		return err
	}

	decision := strings.TrimSpace(strings.ToLower(input.Decision))
	if decision != "approved" && decision != "rejected" {
		return workflow.Validationf("allowance gate decision must be approved or rejected")
	}

	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.requireManager(txCtx, input.DecidedBy); err != nil {
			return err
		}

		record, err := s.getMonthTx(txCtx, input.Month)
		if err != nil {
			return err
		}
		if record.Status == ports.PayrollStatusApproved {
			return workflow.Conflictf("payroll month %s is already approved", input.Month)
		}

		lines, err := s.payroll.ListLines(txCtx, record.PayrollID)
		if err != nil {
			return err
		}

		affected := 0
		for _, line := range lines {
			if line.AllowanceAmount.Sign() != 0 {
				affected++
			}
		}

		return s.payroll.AppendGateDecision(txCtx, ports.AllowanceGateDecision{
			PayrollID:           record.PayrollID,
			Decision:            decision,
			DecidedBy:           input.DecidedBy,
			AffectedLinesCount:  affected,
			TotalAllowanceDelta: allowanceTotal(lines),
			Note:                strings.TrimSpace(input.Note),
			CreatedAt:           s.now().UTC(),
		})
	})
}

// GetMonth returns a month and its lines.
func (s *Service) GetMonth(ctx context.Context, month string) (MonthView, error) {
	if err := s.guard(ctx); err != nil {
		return MonthView{}, err
	}

	record, err := s.payroll.GetMonth(ctx, month)
	if err != nil {
		if errors.Is(err, ports.ErrPayrollMonthNotFound) {
			return MonthView{}, workflow.NotFoundf("payroll month %s not found", month)
		}
		return MonthView{}, errs.Wrap(err, "load payroll month")
	}
	lines, err := s.payroll.ListLines(ctx, record.PayrollID)
	if err != nil {
		return MonthView{}, errs.Wrap(err, "load payroll lines")
	}
	return MonthView{Month: record, Lines: lines}, nil
}

// computeLines joins the month's per-user XP totals with the active user
// set. paid_xp clamps between zero and the configured cap; the bonus pays
// on paid_xp only.
func (s *Service) computeLines(ctx context.Context, payrollID uint64, from time.Time, to time.Time, cfg rules.PayrollRules) ([]ports.PayrollLine, decimal.Decimal, error) {
	totals, err := s.ledger.SumPerUserBetween(ctx, from, to)
	if err != nil {
		return nil, decimal.Zero, errs.Wrap(err, "aggregate ledger for payroll")
	}
	xpByUser := make(map[uint64]int64, len(totals))
	for _, t := range totals {
		xpByUser[t.UserID] = t.TotalXP
	}

	activeUsers, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, decimal.Zero, errs.Wrap(err, "list users for payroll")
	}

	lines := make([]ports.PayrollLine, 0, len(activeUsers))
	total := decimal.Zero
	for _, user := range activeUsers {
		raw := xpByUser[user.UserID]
		paid := raw
		if paid < 0 {
			paid = 0
		}
		if paid > int64(cfg.PaidXPCap) {
			paid = int64(cfg.PaidXPCap)
		}

		fix := user.FixSalary
		if fix.IsZero() {
			fix = cfg.DefaultFixSalary
		}
		allowance := user.Allowance
		if allowance.IsZero() {
			allowance = cfg.DefaultAllowance
		}
		bonus := cfg.BonusRate.Mul(decimal.NewFromInt(paid))
		lineTotal := fix.Add(bonus).Add(allowance)

		lines = append(lines, ports.PayrollLine{
			PayrollID:       payrollID,
			UserID:          user.UserID,
			RawXP:           raw,
			PaidXP:          paid,
			FixSalary:       fix,
			BonusAmount:     bonus,
			AllowanceAmount: allowance,
			TotalAmount:     lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return lines, total, nil
}

func (s *Service) getMonthTx(ctx context.Context, month string) (ports.PayrollMonth, error) {
	record, err := s.payroll.GetMonth(ctx, month)
	if err != nil {
		if errors.Is(err, ports.ErrPayrollMonthNotFound) {
			return ports.PayrollMonth{}, workflow.NotFoundf("payroll month %s not found", month)
		}
		return ports.PayrollMonth{}, errs.Wrap(err, "load payroll month")
	}
	return record, nil
}

func (s *Service) requireManager(ctx context.Context, actorID uint64) error {
	if s.users == nil {
		return errors.New("user repository is required")
	}
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return workflow.NotFoundf("actor %d not found", actorID)
		}
		return err
	}
	if !workflow.ResolveCapabilities(actor.Roles).Has(workflow.CapManagePayroll) {
		return workflow.Validationf("user %q may not manage payroll", actor.Username)
	}
	return nil
}

// monthBounds maps YYYY-MM onto [start, next-month-start) in the business
// timezone, returned as UTC instants for ledger filtering.
func (s *Service) monthBounds(month string) (time.Time, time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01", strings.TrimSpace(month), s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, workflow.Validationf("month must be YYYY-MM, got %q", month)
	}
	start := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, s.loc)
	return start.UTC(), start.AddDate(0, 1, 0).UTC(), nil
}

func allowanceTotal(lines []ports.PayrollLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.AllowanceAmount)
	}
	return total
}
