package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollMonth transitions draft -> closed -> approved; closing snapshots
// the rules config so later config changes cannot alter a closed month.
type PayrollMonth struct {
	PayrollID         uint64          `gorm:"column:payroll_id;primaryKey;autoIncrement"`
	Month             string          `gorm:"column:month;type:text;not null;uniqueIndex"`
	Status            string          `gorm:"column:status;type:text;not null"`
	RulesSnapshotJSON string          `gorm:"column:rules_snapshot_json;type:text;not null"`
	TotalPayout       decimal.Decimal `gorm:"column:total_payout;type:text;not null"`
	ClosedAt          *time.Time      `gorm:"column:closed_at;type:datetime"`
	ApprovedAt        *time.Time      `gorm:"column:approved_at;type:datetime"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;type:datetime;not null"`
}

func (PayrollMonth) TableName() string {
	return "payroll_monthly"
}

type PayrollLine struct {
	LineID          uint64          `gorm:"column:line_id;primaryKey;autoIncrement"`
	PayrollID       uint64          `gorm:"column:payroll_id;not null;uniqueIndex:ux_payroll_line_user,priority:1"`
	UserID          uint64          `gorm:"column:user_id;not null;uniqueIndex:ux_payroll_line_user,priority:2"`
	RawXP           int64           `gorm:"column:raw_xp;not null"`
	PaidXP          int64           `gorm:"column:paid_xp;not null"`
	FixSalary       decimal.Decimal `gorm:"column:fix_salary;type:text;not null"`
	BonusAmount     decimal.Decimal `gorm:"column:bonus_amount;type:text;not null"`
	AllowanceAmount decimal.Decimal `gorm:"column:allowance_amount;type:text;not null"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:text;not null"`
}

func (PayrollLine) TableName() string {
	return "payroll_monthly_lines"
}

type AllowanceGateDecision struct {
	DecisionID          uint64          `gorm:"column:decision_id;primaryKey;autoIncrement"`
	PayrollID           uint64          `gorm:"column:payroll_id;not null;index"`
	Decision            string          `gorm:"column:decision;type:text;not null"`
	DecidedBy           uint64          `gorm:"column:decided_by;not null"`
	AffectedLinesCount  int             `gorm:"column:affected_lines_count;not null"`
	TotalAllowanceDelta decimal.Decimal `gorm:"column:total_allowance_delta;type:text;not null"`
	Note                string          `gorm:"column:note;type:text;not null"`
	CreatedAt           time.Time       `gorm:"column:created_at;type:datetime;not null"`
}

func (AllowanceGateDecision) TableName() string {
	return "payroll_allowance_gate_decisions"
}
