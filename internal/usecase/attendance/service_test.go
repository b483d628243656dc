package attendance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/infrastructure/cache"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/infrastructure/persistence/sqlite/repository"
	"fleetops/internal/infrastructure/persistence/sqlite/uow"
	"fleetops/internal/ports"
	ledgeruc "fleetops/internal/usecase/ledger"
	rulesuc "fleetops/internal/usecase/rules"
)

type attendanceFixture struct {
	svc    *Service
	ledger *ledgeruc.Service
	users  ports.UserRepository
}

func setupAttendance(t *testing.T) attendanceFixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "attendance.sqlite")
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
		&model.LedgerEntry{}, &model.AttendanceRecord{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	unit := uow.NewUnitOfWork(db)
	users := repository.NewUserRepository(db)
	rulesSvc := rulesuc.NewService(repository.NewRulesRepository(db), unit, cache.NewSQLiteCache(db))
	if _, err := rulesSvc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap rules: %v", err)
	}
	ledgerSvc := ledgeruc.NewService(repository.NewLedgerRepository(db), users, unit)

	svc := NewService(repository.NewAttendanceRepository(db), users, ledgerSvc, rulesSvc, unit, time.UTC)
	return attendanceFixture{svc: svc, ledger: ledgerSvc, users: users}
}

func createUser(t *testing.T, users ports.UserRepository, username string, roles ...workflow.Role) ports.User {
	t.Helper()

	user, err := users.Create(context.Background(), ports.User{
		Username:    username,
		DisplayName: username,
		Roles:       roles,
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// Default shift starts 09:00 with a 10 minute grace.
var punctualAt = time.Date(2026, 8, 30, 9, 5, 0, 0, time.UTC)
var lateAt = time.Date(2026, 8, 30, 9, 45, 0, 0, time.UTC)

func TestCheckInPostsPunctualityXPOnce(t *testing.T) {
	fx := setupAttendance(t)
	ctx := context.Background()
	tech := createUser(t, fx.users, "tech1", workflow.RoleTechnician)

	result, err := fx.svc.CheckIn(ctx, CheckInInput{UserID: tech.UserID, At: punctualAt})
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	if !result.Created || result.Revived {
		t.Fatalf("CheckIn() = %+v, want fresh record", result)
	}
	if !result.PunctualityXPPosted {
		t.Fatal("on-time check-in must post punctuality xp")
	}

	entries, err := fx.ledger.ListForUser(ctx, tech.UserID, 10)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Amount != 2 {
		t.Fatalf("ledger entries = %+v, want one posting of 2", entries)
	}

	// A same-day repeat keeps the original stamp and posts nothing new.
	repeat, err := fx.svc.CheckIn(ctx, CheckInInput{UserID: tech.UserID, At: lateAt})
	if err != nil {
		t.Fatalf("repeat CheckIn() error = %v", err)
	}
	if repeat.Created {
		t.Fatal("repeat must be absorbed")
	}
	if repeat.Record.CheckInAt == nil || !repeat.Record.CheckInAt.Equal(punctualAt) {
		t.Fatalf("repeat check-in stamp = %v, want original %v", repeat.Record.CheckInAt, punctualAt)
	}
	entries, _ = fx.ledger.ListForUser(ctx, tech.UserID, 10)
	if len(entries) != 1 {
		t.Fatalf("repeat posted extra ledger rows: %d", len(entries))
	}
}

func TestLateCheckInPostsNoXP(t *testing.T) {
	fx := setupAttendance(t)
	ctx := context.Background()
	tech := createUser(t, fx.users, "tech1", workflow.RoleTechnician)

	result, err := fx.svc.CheckIn(ctx, CheckInInput{UserID: tech.UserID, At: lateAt})
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	if result.PunctualityXPPosted {
		t.Fatal("late check-in must not post punctuality xp")
	}
	entries, err := fx.ledger.ListForUser(ctx, tech.UserID, 10)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("ledger entries = %d, want none", len(entries))
	}
}

func TestDeleteThenCheckInRevivesWithoutDoubleXP(t *testing.T) {
	fx := setupAttendance(t)
	ctx := context.Background()
	tech := createUser(t, fx.users, "tech1", workflow.RoleTechnician)

	first, err := fx.svc.CheckIn(ctx, CheckInInput{UserID: tech.UserID, At: punctualAt})
	if err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	workDate := first.Record.WorkDate

	if err := fx.svc.Delete(ctx, tech.UserID, workDate); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := fx.svc.Today(ctx, tech.UserID); err == nil {
		t.Fatal("deleted record must not be visible")
	}

	laterSameDay := punctualAt.Add(30 * time.Minute)
	revived, err := fx.svc.CheckIn(ctx, CheckInInput{UserID: tech.UserID, At: laterSameDay})
	if err != nil {
		t.Fatalf("revive CheckIn() error = %v", err)
	}
	if !revived.Revived {
		t.Fatal("check-in after delete must revive the tombstoned row")
	}
	if revived.Record.AttendanceID != first.Record.AttendanceID {
		t.Fatal("revive must reuse the original row")
	}
	if revived.Record.CheckOutAt != nil {
		t.Fatal("revive must clear any previous check-out")
	}
	if revived.PunctualityXPPosted {
		t.Fatal("punctuality xp was already posted for this day")
	}
	entries, err := fx.ledger.ListForUser(ctx, tech.UserID, 10)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want the single original posting", len(entries))
	}
}

func TestCheckOut(t *testing.T) {
	fx := setupAttendance(t)
	ctx := context.Background()
	tech := createUser(t, fx.users, "tech1", workflow.RoleTechnician)

	if _, err := fx.svc.CheckOut(ctx, CheckOutInput{UserID: tech.UserID, At: punctualAt}); !workflow.IsNotFound(err) {
		t.Fatalf("check-out without check-in error = %v, want not found", err)
	}

	if _, err := fx.svc.CheckIn(ctx, CheckInInput{UserID: tech.UserID, At: punctualAt}); err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}

	if _, err := fx.svc.CheckOut(ctx, CheckOutInput{UserID: tech.UserID, At: punctualAt.Add(-time.Hour)}); !workflow.IsValidation(err) {
		t.Fatalf("check-out before check-in error = %v, want validation", err)
	}

	outAt := punctualAt.Add(8 * time.Hour)
	record, err := fx.svc.CheckOut(ctx, CheckOutInput{UserID: tech.UserID, At: outAt})
	if err != nil {
		t.Fatalf("CheckOut() error = %v", err)
	}
	if record.CheckOutAt == nil || !record.CheckOutAt.Equal(outAt) {
		t.Fatalf("check-out stamp = %v, want %v", record.CheckOutAt, outAt)
	}

	// Correcting a premature check-out overwrites the stamp.
	fixedAt := punctualAt.Add(9 * time.Hour)
	record, err = fx.svc.CheckOut(ctx, CheckOutInput{UserID: tech.UserID, At: fixedAt})
	if err != nil {
		t.Fatalf("second CheckOut() error = %v", err)
	}
	if record.CheckOutAt == nil || !record.CheckOutAt.Equal(fixedAt) {
		t.Fatalf("corrected check-out stamp = %v, want %v", record.CheckOutAt, fixedAt)
	}
}

func TestCheckInRequiresAttendanceCapability(t *testing.T) {
	fx := setupAttendance(t)
	ctx := context.Background()
	// Manager role does not carry track_attendance.
	manager := createUser(t, fx.users, "manager", workflow.RoleManager)

	if _, err := fx.svc.CheckIn(ctx, CheckInInput{UserID: manager.UserID, At: punctualAt}); !workflow.IsValidation(err) {
		t.Fatalf("manager CheckIn() error = %v, want validation", err)
	}
}
