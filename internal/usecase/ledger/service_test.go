package ledger

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/infrastructure/persistence/sqlite/repository"
	"fleetops/internal/infrastructure/persistence/sqlite/uow"
	"fleetops/internal/ports"
)

func setupLedgerService(t *testing.T) (*Service, ports.UserRepository) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.sqlite")
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
	if err := db.AutoMigrate(&model.User{}, &model.UserRole{}, &model.LedgerEntry{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	svc := NewService(repository.NewLedgerRepository(db), users, uow.NewUnitOfWork(db))
	return svc, users
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

func TestAppendIsIdempotentPerReference(t *testing.T) {
	svc, users := setupLedgerService(t)
	ctx := context.Background()
	tech := createUser(t, users, "tech1", workflow.RoleTechnician)

	first, err := svc.Append(ctx, AppendInput{
		UserID:    tech.UserID,
		Amount:    3,
		EntryType: "ticket_base_xp",
		Reference: "ticket_base_xp:42",
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !first.Created {
		t.Fatal("first posting must create an entry")
	}

	replay, err := svc.Append(ctx, AppendInput{
		UserID:    tech.UserID,
		Amount:    99,
		EntryType: "ticket_base_xp",
		Reference: "ticket_base_xp:42",
	})
	if err != nil {
		t.Fatalf("replayed Append() error = %v", err)
	}
	if replay.Created {
		t.Fatal("replay must be absorbed, not created")
	}
	if replay.Entry.Amount != 3 {
		t.Fatalf("replay amount = %d, want original 3", replay.Entry.Amount)
	}
	if replay.Entry.EntryID != first.Entry.EntryID {
		t.Fatal("replay must resolve to the original row")
	}

	entries, err := svc.ListForUser(ctx, tech.UserID, 10)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ListForUser() len = %d, want 1", len(entries))
	}
}

func TestAppendValidation(t *testing.T) {
	svc, users := setupLedgerService(t)
	ctx := context.Background()
	tech := createUser(t, users, "tech1", workflow.RoleTechnician)

	cases := []struct {
		name  string
		input AppendInput
	}{
		{"zero amount", AppendInput{UserID: tech.UserID, Amount: 0, EntryType: "x", Reference: "r1"}},
		{"missing reference", AppendInput{UserID: tech.UserID, Amount: 1, EntryType: "x", Reference: "  "}},
		{"missing entry type", AppendInput{UserID: tech.UserID, Amount: 1, Reference: "r2"}},
		{"missing user", AppendInput{Amount: 1, EntryType: "x", Reference: "r3"}},
	}
	for _, tc := range cases {
		if _, err := svc.Append(ctx, tc.input); !workflow.IsValidation(err) {
			t.Fatalf("%s: Append() error = %v, want validation", tc.name, err)
		}
	}
}

func TestAdjustRequiresCapability(t *testing.T) {
	svc, users := setupLedgerService(t)
	ctx := context.Background()
	manager := createUser(t, users, "manager", workflow.RoleManager)
	tech := createUser(t, users, "tech1", workflow.RoleTechnician)

	entry, err := svc.Adjust(ctx, AdjustInput{
		ActorID:     manager.UserID,
		UserID:      tech.UserID,
		Amount:      -5,
		Description: "broken spoke billed to shop",
	})
	if err != nil {
		t.Fatalf("Adjust() error = %v", err)
	}
	if entry.Amount != -5 || entry.EntryType != "manual_adjustment" {
		t.Fatalf("Adjust() entry = %+v", entry)
	}

	// A second identical adjustment is a new posting with its own reference.
	again, err := svc.Adjust(ctx, AdjustInput{
		ActorID:     manager.UserID,
		UserID:      tech.UserID,
		Amount:      -5,
		Description: "second correction",
	})
	if err != nil {
		t.Fatalf("second Adjust() error = %v", err)
	}
	if again.Reference == entry.Reference {
		t.Fatal("each adjustment must mint a fresh reference")
	}

	if _, err := svc.Adjust(ctx, AdjustInput{
		ActorID:     tech.UserID,
		UserID:      manager.UserID,
		Amount:      10,
		Description: "self serve",
	}); !workflow.IsValidation(err) {
		t.Fatalf("technician Adjust() error = %v, want validation", err)
	}

	if _, err := svc.Adjust(ctx, AdjustInput{
		ActorID:     manager.UserID,
		UserID:      tech.UserID,
		Amount:      1,
		Description: " ",
	}); !workflow.IsValidation(err) {
		t.Fatalf("blank description Adjust() error = %v, want validation", err)
	}
}

func TestGetByReference(t *testing.T) {
	svc, users := setupLedgerService(t)
	ctx := context.Background()
	tech := createUser(t, users, "tech1", workflow.RoleTechnician)

	if _, err := svc.Append(ctx, AppendInput{
		UserID:    tech.UserID,
		Amount:    2,
		EntryType: "attendance_punctuality",
		Reference: "attendance_punctuality:1:2026-08-30",
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entry, err := svc.GetByReference(ctx, "attendance_punctuality:1:2026-08-30")
	if err != nil {
		t.Fatalf("GetByReference() error = %v", err)
	}
	if entry.Amount != 2 {
		t.Fatalf("entry amount = %d, want 2", entry.Amount)
	}

	if _, err := svc.GetByReference(ctx, "missing:ref"); !workflow.IsNotFound(err) {
		t.Fatalf("missing reference error = %v, want not found", err)
	}
}
