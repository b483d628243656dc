package payroll

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/infrastructure/cache"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/infrastructure/persistence/sqlite/repository"
	"fleetops/internal/infrastructure/persistence/sqlite/uow"
	"fleetops/internal/ports"
	rulesuc "fleetops/internal/usecase/rules"
)

type payrollFixture struct {
	svc     *Service
	ledger  ports.LedgerRepository
	users   ports.UserRepository
	manager ports.User
}

func setupPayroll(t *testing.T) *payrollFixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "payroll.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(
		&model.User{}, &model.UserRole{},
		&model.RulesVersion{}, &model.RulesState{}, &model.RulesKV{},
		&model.LedgerEntry{},
		&model.PayrollMonth{}, &model.PayrollLine{}, &model.AllowanceGateDecision{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	ctx := context.Background()
	unit := uow.NewUnitOfWork(db)
	rulesSvc := rulesuc.NewService(repository.NewRulesRepository(db), unit, cache.NewSQLiteCache(db))
	if _, err := rulesSvc.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap rules: %v", err)
	}

	fx := &payrollFixture{
		ledger: repository.NewLedgerRepository(db),
		users:  repository.NewUserRepository(db),
	}
	fx.svc = NewService(repository.NewPayrollRepository(db), fx.ledger, fx.users, rulesSvc, unit, time.UTC)

	fx.manager = fx.createUser(t, ports.User{
		Username:  "manager",
		FixSalary: decimal.NewFromInt(1000),
		Roles:     []workflow.Role{workflow.RoleManager},
	})
	return fx
}

func (f *payrollFixture) createUser(t *testing.T, user ports.User) ports.User {
	t.Helper()
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}
	user.IsActive = true
	created, err := f.users.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("create user %s: %v", user.Username, err)
	}
	return created
}

func (f *payrollFixture) postXP(t *testing.T, userID uint64, amount int, reference string, at time.Time) {
	t.Helper()
	created, err := f.ledger.Insert(context.Background(), ports.LedgerEntry{
		UserID:    userID,
		Amount:    amount,
		EntryType: "ticket_xp",
		Reference: reference,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("insert ledger entry %s: %v", reference, err)
	}
	if !created {
		t.Fatalf("ledger entry %s already existed", reference)
	}
}

func lineFor(t *testing.T, view MonthView, userID uint64) ports.PayrollLine {
	t.Helper()
	for _, line := range view.Lines {
		if line.UserID == userID {
			return line
		}
	}
	t.Fatalf("no payroll line for user %d", userID)
	return ports.PayrollLine{}
}

func TestBuildMonthComputesLines(t *testing.T) {
	fx := setupPayroll(t)
	ctx := context.Background()

	tech1 := fx.createUser(t, ports.User{
		Username:  "tech1",
		FixSalary: decimal.NewFromInt(400),
		Allowance: decimal.NewFromInt(500),
		Roles:     []workflow.Role{workflow.RoleTechnician},
	})
	tech2 := fx.createUser(t, ports.User{
		Username: "tech2",
		Roles:    []workflow.Role{workflow.RoleTechnician},
	})

	mid := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	fx.postXP(t, tech1.UserID, 520, "xp-1", mid)
	fx.postXP(t, tech1.UserID, 100, "xp-2", mid)
	fx.postXP(t, tech2.UserID, -10, "xp-3", mid)
	// Next month, must not count.
	fx.postXP(t, tech1.UserID, 999, "xp-4", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))

	view, err := fx.svc.BuildMonth(ctx, "2026-08", fx.manager.UserID)
	if err != nil {
		t.Fatalf("BuildMonth() error = %v", err)
	}
	if view.Month.Status != ports.PayrollStatusDraft {
		t.Fatalf("month status = %s, want draft", view.Month.Status)
	}
	if len(view.Lines) != 3 {
		t.Fatalf("lines = %d, want one per active user", len(view.Lines))
	}

	// Raw 620 clamps to the 500 cap; bonus pays 1.5 per paid xp.
	line := lineFor(t, view, tech1.UserID)
	if line.RawXP != 620 || line.PaidXP != 500 {
		t.Fatalf("tech1 xp = raw %d paid %d, want 620/500", line.RawXP, line.PaidXP)
	}
	if line.BonusAmount.StringFixed(2) != "750.00" || line.TotalAmount.StringFixed(2) != "1650.00" {
		t.Fatalf("tech1 amounts = bonus %s total %s", line.BonusAmount, line.TotalAmount)
	}

	// Negative balances clamp to zero; zero salary falls back to the default.
	line = lineFor(t, view, tech2.UserID)
	if line.RawXP != -10 || line.PaidXP != 0 {
		t.Fatalf("tech2 xp = raw %d paid %d, want -10/0", line.RawXP, line.PaidXP)
	}
	if line.FixSalary.StringFixed(2) != "350.00" || line.TotalAmount.StringFixed(2) != "350.00" {
		t.Fatalf("tech2 amounts = fix %s total %s", line.FixSalary, line.TotalAmount)
	}

	if view.Month.TotalPayout.StringFixed(2) != "3000.00" {
		t.Fatalf("total payout = %s, want 3000.00", view.Month.TotalPayout)
	}

	// A rebuild picks up new ledger rows.
	fx.postXP(t, tech2.UserID, 30, "xp-5", mid)
	view, err = fx.svc.BuildMonth(ctx, "2026-08", fx.manager.UserID)
	if err != nil {
		t.Fatalf("rebuild error = %v", err)
	}
	line = lineFor(t, view, tech2.UserID)
	if line.RawXP != 20 || line.PaidXP != 20 || line.BonusAmount.StringFixed(2) != "30.00" {
		t.Fatalf("tech2 after rebuild = %+v", line)
	}
}

func TestBuildMonthGuards(t *testing.T) {
	fx := setupPayroll(t)
	ctx := context.Background()

	tech := fx.createUser(t, ports.User{Username: "tech1", Roles: []workflow.Role{workflow.RoleTechnician}})

	if _, err := fx.svc.BuildMonth(ctx, "2026-13", fx.manager.UserID); !workflow.IsValidation(err) {
		t.Fatalf("bad month error = %v, want validation", err)
	}
	if _, err := fx.svc.BuildMonth(ctx, "2026-08", tech.UserID); !workflow.IsValidation(err) {
		t.Fatalf("technician build error = %v, want validation", err)
	}
}

func TestCloseMonthFreezesDraft(t *testing.T) {
	fx := setupPayroll(t)
	ctx := context.Background()

	if _, err := fx.svc.BuildMonth(ctx, "2026-08", fx.manager.UserID); err != nil {
		t.Fatalf("BuildMonth() error = %v", err)
	}

	view, err := fx.svc.CloseMonth(ctx, "2026-08", fx.manager.UserID)
	if err != nil {
		t.Fatalf("CloseMonth() error = %v", err)
	}
	if view.Month.Status != ports.PayrollStatusClosed || view.Month.ClosedAt == nil {
		t.Fatalf("closed month = %+v", view.Month)
	}
	if view.Month.RulesSnapshotJSON == "" {
		t.Fatal("closing must snapshot the rules document")
	}

	if _, err := fx.svc.CloseMonth(ctx, "2026-08", fx.manager.UserID); !workflow.IsConflict(err) {
		t.Fatalf("second close error = %v, want conflict", err)
	}
	if _, err := fx.svc.BuildMonth(ctx, "2026-08", fx.manager.UserID); !workflow.IsConflict(err) {
		t.Fatalf("rebuild after close error = %v, want conflict", err)
	}
}

func TestApproveMonthRequiresAllowanceGate(t *testing.T) {
	fx := setupPayroll(t)
	ctx := context.Background()

	fx.createUser(t, ports.User{
		Username:  "tech1",
		Allowance: decimal.NewFromInt(500),
		Roles:     []workflow.Role{workflow.RoleTechnician},
	})

	if _, err := fx.svc.BuildMonth(ctx, "2026-08", fx.manager.UserID); err != nil {
		t.Fatalf("BuildMonth() error = %v", err)
	}

	// A draft cannot be approved.
	if _, err := fx.svc.ApproveMonth(ctx, "2026-08", fx.manager.UserID); !workflow.IsConflict(err) {
		t.Fatalf("approve draft error = %v, want conflict", err)
	}
	if _, err := fx.svc.CloseMonth(ctx, "2026-08", fx.manager.UserID); err != nil {
		t.Fatalf("CloseMonth() error = %v", err)
	}

	if _, err := fx.svc.ApproveMonth(ctx, "2026-08", fx.manager.UserID); !workflow.IsValidation(err) {
		t.Fatalf("ungated approve error = %v, want validation", err)
	}

	if err := fx.svc.DecideAllowanceGate(ctx, GateInput{Month: "2026-08", Decision: "maybe", DecidedBy: fx.manager.UserID}); !workflow.IsValidation(err) {
		t.Fatalf("bad decision error = %v, want validation", err)
	}
	if err := fx.svc.DecideAllowanceGate(ctx, GateInput{Month: "2026-08", Decision: "rejected", DecidedBy: fx.manager.UserID}); err != nil {
		t.Fatalf("DecideAllowanceGate() error = %v", err)
	}
	if _, err := fx.svc.ApproveMonth(ctx, "2026-08", fx.manager.UserID); !workflow.IsValidation(err) {
		t.Fatalf("rejected-gate approve error = %v, want validation", err)
	}

	// The latest decision wins.
	if err := fx.svc.DecideAllowanceGate(ctx, GateInput{Month: "2026-08", Decision: "Approved", DecidedBy: fx.manager.UserID, Note: "budget ok"}); err != nil {
		t.Fatalf("DecideAllowanceGate() error = %v", err)
	}
	view, err := fx.svc.ApproveMonth(ctx, "2026-08", fx.manager.UserID)
	if err != nil {
		t.Fatalf("ApproveMonth() error = %v", err)
	}
	if view.Month.Status != ports.PayrollStatusApproved || view.Month.ApprovedAt == nil {
		t.Fatalf("approved month = %+v", view.Month)
	}

	// Approval is terminal.
	if _, err := fx.svc.ApproveMonth(ctx, "2026-08", fx.manager.UserID); !workflow.IsConflict(err) {
		t.Fatalf("re-approve error = %v, want conflict", err)
	}
	if err := fx.svc.DecideAllowanceGate(ctx, GateInput{Month: "2026-08", Decision: "rejected", DecidedBy: fx.manager.UserID}); !workflow.IsConflict(err) {
		t.Fatalf("gate after approval error = %v, want conflict", err)
	}
}

func TestApproveMonthWithoutAllowancesSkipsGate(t *testing.T) {
	fx := setupPayroll(t)
	ctx := context.Background()

	if _, err := fx.svc.BuildMonth(ctx, "2026-08", fx.manager.UserID); err != nil {
		t.Fatalf("BuildMonth() error = %v", err)
	}
	if _, err := fx.svc.CloseMonth(ctx, "2026-08", fx.manager.UserID); err != nil {
		t.Fatalf("CloseMonth() error = %v", err)
	}
	view, err := fx.svc.ApproveMonth(ctx, "2026-08", fx.manager.UserID)
	if err != nil {
		t.Fatalf("ApproveMonth() error = %v", err)
	}
	if view.Month.Status != ports.PayrollStatusApproved {
		t.Fatalf("month status = %s, want approved", view.Month.Status)
	}
}

func TestGetMonth(t *testing.T) {
	fx := setupPayroll(t)
	ctx := context.Background()

	if _, err := fx.svc.GetMonth(ctx, "2026-08"); !workflow.IsNotFound(err) {
		t.Fatalf("missing month error = %v, want not found", err)
	}
	if _, err := fx.svc.BuildMonth(ctx, "2026-08", fx.manager.UserID); err != nil {
		t.Fatalf("BuildMonth() error = %v", err)
	}
	view, err := fx.svc.GetMonth(ctx, "2026-08")
	if err != nil {
		t.Fatalf("GetMonth() error = %v", err)
	}
	if len(view.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(view.Lines))
	}
}
