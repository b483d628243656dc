package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrPayrollMonthNotFound = errors.New("payroll month not found")
	ErrGateDecisionNotFound = errors.New("allowance gate decision not found")
)

const (
	PayrollStatusDraft    = "draft"
	PayrollStatusClosed   = "closed"
	PayrollStatusApproved = "approved"
)

// PayrollMonth is the monthly aggregate; immutable once closed.
type PayrollMonth struct {
	PayrollID         uint64
	Month             string // YYYY-MM
	Status            string
	RulesSnapshotJSON string
	TotalPayout       decimal.Decimal
	ClosedAt          *time.Time
	ApprovedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type PayrollLine struct {
	LineID          uint64
	PayrollID       uint64
	UserID          uint64
	RawXP           int64
	PaidXP          int64
	FixSalary       decimal.Decimal
	BonusAmount     decimal.Decimal
	AllowanceAmount decimal.Decimal
	TotalAmount     decimal.Decimal
}

// AllowanceGateDecision is the manual approve/reject trail for allowance
// deltas, recorded before final month approval.
type AllowanceGateDecision struct {
	DecisionID          uint64
	PayrollID           uint64
	Decision            string // approved | rejected
	DecidedBy           uint64
	AffectedLinesCount  int
	TotalAllowanceDelta decimal.Decimal
	Note                string
	CreatedAt           time.Time
}

type PayrollRepository interface {
	GetMonth(ctx context.Context, month string) (PayrollMonth, error)
	CreateMonth(ctx context.Context, payroll PayrollMonth) (PayrollMonth, error)
	// ReplaceLines swaps the full line set of a draft month.
	ReplaceLines(ctx context.Context, payrollID uint64, lines []PayrollLine) error
	ListLines(ctx context.Context, payrollID uint64) ([]PayrollLine, error)
	UpdateMonth(ctx context.Context, payroll PayrollMonth) error
	AppendGateDecision(ctx context.Context, decision AllowanceGateDecision) error
	LatestGateDecision(ctx context.Context, payrollID uint64) (AllowanceGateDecision, error)
}
