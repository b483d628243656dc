package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

type PayrollRepository struct {
	db *gorm.DB
}

var _ ports.PayrollRepository = (*PayrollRepository)(nil)

func NewPayrollRepository(db *gorm.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

func (r *PayrollRepository) GetMonth(ctx context.Context, month string) (ports.PayrollMonth, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.PayrollMonth{}, err
	}

	var row model.PayrollMonth
	if err := db.Where("month = ?", month).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.PayrollMonth{}, ports.ErrPayrollMonthNotFound
		}
		return ports.PayrollMonth{}, errs.Wrap(err, "query payroll month")
	}
	return mapPayrollMonth(row), nil
}

func (r *PayrollRepository) CreateMonth(ctx context.Context, payroll ports.PayrollMonth) (ports.PayrollMonth, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.PayrollMonth{}, err
	}

	row := model.PayrollMonth{
		Month:             payroll.Month,
		Status:            payroll.Status,
		RulesSnapshotJSON: payroll.RulesSnapshotJSON,
		TotalPayout:       payroll.TotalPayout,
		CreatedAt:         payroll.CreatedAt,
		UpdatedAt:         payroll.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.PayrollMonth{}, errs.Wrap(err, "insert payroll month")
	}
	return mapPayrollMonth(row), nil
}

func (r *PayrollRepository) ReplaceLines(ctx context.Context, payrollID uint64, lines []ports.PayrollLine) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Where("payroll_id = ?", payrollID).Delete(&model.PayrollLine{}).Error; err != nil {
		return errs.Wrap(err, "clear payroll lines")
	}
	if len(lines) == 0 {
		return nil
	}

	rows := make([]model.PayrollLine, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, model.PayrollLine{
			PayrollID:       payrollID,
			UserID:          line.UserID,
			RawXP:           line.RawXP,
			PaidXP:          line.PaidXP,
			FixSalary:       line.FixSalary,
			BonusAmount:     line.BonusAmount,
			AllowanceAmount: line.AllowanceAmount,
			TotalAmount:     line.TotalAmount,
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return errs.Wrap(err, "insert payroll lines")
	}
	return nil
}

func (r *PayrollRepository) ListLines(ctx context.Context, payrollID uint64) ([]ports.PayrollLine, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.PayrollLine
	if err := db.Where("payroll_id = ?", payrollID).
		Order("user_id ASC").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list payroll lines")
	}

	lines := make([]ports.PayrollLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, ports.PayrollLine{
			LineID:          row.LineID,
			PayrollID:       row.PayrollID,
			UserID:          row.UserID,
			RawXP:           row.RawXP,
			PaidXP:          row.PaidXP,
			FixSalary:       row.FixSalary,
			BonusAmount:     row.BonusAmount,
			AllowanceAmount: row.AllowanceAmount,
			TotalAmount:     row.TotalAmount,
		})
	}
	return lines, nil
}

func (r *PayrollRepository) UpdateMonth(ctx context.Context, payroll ports.PayrollMonth) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.PayrollMonth{}).
		Where("payroll_id = ?", payroll.PayrollID).
		Updates(map[string]any{
			"status":              payroll.Status,
			"rules_snapshot_json": payroll.RulesSnapshotJSON,
			"total_payout":        payroll.TotalPayout,
			"closed_at":           payroll.ClosedAt,
			"approved_at":         payroll.ApprovedAt,
			"updated_at":          payroll.UpdatedAt,
		}).Error; err != nil {
		return errs.Wrap(err, "update payroll month")
	}
	return nil
}

func (r *PayrollRepository) AppendGateDecision(ctx context.Context, decision ports.AllowanceGateDecision) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.AllowanceGateDecision{
		PayrollID:           decision.PayrollID,
		Decision:            decision.Decision,
		DecidedBy:           decision.DecidedBy,
		AffectedLinesCount:  decision.AffectedLinesCount,
		TotalAllowanceDelta: decision.TotalAllowanceDelta,
		Note:                decision.Note,
		CreatedAt:           decision.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert allowance gate decision")
	}
	return nil
}

func (r *PayrollRepository) LatestGateDecision(ctx context.Context, payrollID uint64) (ports.AllowanceGateDecision, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.AllowanceGateDecision{}, err
	}

	var row model.AllowanceGateDecision
	if err := db.Where("payroll_id = ?", payrollID).
		Order("decision_id DESC").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AllowanceGateDecision{}, ports.ErrGateDecisionNotFound
		}
		return ports.AllowanceGateDecision{}, errs.Wrap(err, "query latest allowance gate decision")
	}
	return ports.AllowanceGateDecision{
		DecisionID:          row.DecisionID,
		PayrollID:           row.PayrollID,
		Decision:            row.Decision,
		DecidedBy:           row.DecidedBy,
		AffectedLinesCount:  row.AffectedLinesCount,
		TotalAllowanceDelta: row.TotalAllowanceDelta,
		Note:                row.Note,
		CreatedAt:           row.CreatedAt,
	}, nil
}

func mapPayrollMonth(row model.PayrollMonth) ports.PayrollMonth {
	return ports.PayrollMonth{
		PayrollID:         row.PayrollID,
		Month:             row.Month,
		Status:            row.Status,
		RulesSnapshotJSON: row.RulesSnapshotJSON,
		TotalPayout:       row.TotalPayout,
		ClosedAt:          row.ClosedAt,
		ApprovedAt:        row.ApprovedAt,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}
