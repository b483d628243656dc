package rules

import (
	"context"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainrules "fleetops/internal/domain/rules"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/infrastructure/cache"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/infrastructure/persistence/sqlite/repository"
	"fleetops/internal/infrastructure/persistence/sqlite/uow"
)

func setupRulesService(t *testing.T) *Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "rules.sqlite")
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
	if err := db.AutoMigrate(&model.RulesVersion{}, &model.RulesState{}, &model.RulesKV{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	return NewService(
		repository.NewRulesRepository(db),
		uow.NewUnitOfWork(db),
		cache.NewSQLiteCache(db),
	)
}

func TestBootstrapCreatesVersionOne(t *testing.T) {
	svc := setupRulesService(t)
	ctx := context.Background()

	active, err := svc.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	if active.Version != 1 {
		t.Fatalf("Bootstrap() version = %d, want 1", active.Version)
	}
	if active.Config.WorkSession.DailyPauseBudgetMinutes != domainrules.Default().WorkSession.DailyPauseBudgetMinutes {
		t.Fatal("bootstrap must store the default document")
	}

	again, err := svc.Bootstrap(ctx)
	if err != nil {
		t.Fatalf("second Bootstrap() error = %v", err)
	}
	if again.Version != 1 {
		t.Fatalf("second Bootstrap() version = %d, want 1", again.Version)
	}
}

func TestGetActiveBootstrapsLazily(t *testing.T) {
	svc := setupRulesService(t)
	ctx := context.Background()

	active, err := svc.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.Version != 1 {
		t.Fatalf("GetActive() version = %d, want 1", active.Version)
	}
	if active.Checksum == "" {
		t.Fatal("active checksum must be set")
	}
}

func TestUpdatePublishesNextVersion(t *testing.T) {
	svc := setupRulesService(t)
	ctx := context.Background()
	if _, err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	doc := []byte(`
[work_session]
daily_pause_budget_minutes = 30

[gamification]
srt_minutes_per_xp = 20
first_pass_bonus_xp = 1
punctuality_xp = 2
shift_start = "09:00"
checkin_grace_minutes = 10

[sla]
cooldown_minutes = 30
delivery_max_attempts = 5
delivery_backoff_base_seconds = 30
delivery_backoff_max_seconds = 3600

[sla.thresholds]
stockout_open_minutes = 45
backlog_black_plus_count = 5
first_pass_rate_percent = 70

[stockout]
business_window_start = "09:00"
business_window_end = "21:00"

[payroll]
paid_xp_cap = 500
bonus_rate = "1.5"
default_fix_salary = "350"
default_allowance = "0"
`)

	result, err := svc.Update(ctx, UpdateInput{DocumentTOML: doc, Reason: "tighter pauses", Actor: "ops"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !result.Changed || result.Version != 2 {
		t.Fatalf("Update() = %+v, want changed version 2", result)
	}

	active, err := svc.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.Version != 2 {
		t.Fatalf("active version = %d, want 2", active.Version)
	}
	if active.Config.WorkSession.DailyPauseBudgetMinutes != 30 {
		t.Fatalf("pause budget = %d, want 30", active.Config.WorkSession.DailyPauseBudgetMinutes)
	}

	version, err := svc.GetVersion(ctx, 2)
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if version.DiffJSON == "{}" || version.DiffJSON == "" {
		t.Fatalf("version 2 diff must not be empty: %q", version.DiffJSON)
	}
	if version.CreatedBy == nil || *version.CreatedBy != "ops" {
		t.Fatalf("version 2 created_by = %v, want ops", version.CreatedBy)
	}

	// Re-publishing the identical document is a no-op.
	again, err := svc.Update(ctx, UpdateInput{DocumentTOML: doc, Reason: "same again", Actor: "ops"})
	if err != nil {
		t.Fatalf("identical Update() error = %v", err)
	}
	if again.Changed || again.Version != 2 {
		t.Fatalf("identical Update() = %+v, want unchanged version 2", again)
	}
}

func TestUpdateRejectsInvalidDocument(t *testing.T) {
	svc := setupRulesService(t)
	ctx := context.Background()
	if _, err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if _, err := svc.Update(ctx, UpdateInput{DocumentTOML: []byte("[work_session]\ndaily_pause_budget_minutes = 0\n")}); err == nil {
		t.Fatal("zero pause budget must be rejected")
	}

	active, err := svc.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.Version != 1 {
		t.Fatalf("failed update must not advance the version, got %d", active.Version)
	}
}

func TestRollbackAppendsNewVersion(t *testing.T) {
	svc := setupRulesService(t)
	ctx := context.Background()
	if _, err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	doc := []byte(`
[work_session]
daily_pause_budget_minutes = 25

[gamification]
srt_minutes_per_xp = 20
first_pass_bonus_xp = 1
punctuality_xp = 2
shift_start = "09:00"
checkin_grace_minutes = 10

[sla]
cooldown_minutes = 30
delivery_max_attempts = 5
delivery_backoff_base_seconds = 30
delivery_backoff_max_seconds = 3600

[sla.thresholds]
stockout_open_minutes = 45
backlog_black_plus_count = 5
first_pass_rate_percent = 70

[stockout]
business_window_start = "09:00"
business_window_end = "21:00"

[payroll]
paid_xp_cap = 500
bonus_rate = "1.5"
default_fix_salary = "350"
default_allowance = "0"
`)
	if _, err := svc.Update(ctx, UpdateInput{DocumentTOML: doc, Reason: "change", Actor: "ops"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	result, err := svc.Rollback(ctx, RollbackInput{ToVersion: 1, Reason: "bad change", Actor: "ops"})
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if result.Version != 3 || result.SourceVersion != 1 {
		t.Fatalf("Rollback() = %+v, want version 3 from source 1", result)
	}

	active, err := svc.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.Version != 3 {
		t.Fatalf("active version = %d, want 3", active.Version)
	}
	if active.Config.WorkSession.DailyPauseBudgetMinutes != domainrules.Default().WorkSession.DailyPauseBudgetMinutes {
		t.Fatal("rollback must restore version 1 content")
	}

	v1, err := svc.GetVersion(ctx, 1)
	if err != nil {
		t.Fatalf("GetVersion(1) error = %v", err)
	}
	if active.Checksum != v1.Checksum {
		t.Fatal("restored version must carry the source checksum")
	}

	// The latest version is already active; rolling back to it is rejected.
	if _, err := svc.Rollback(ctx, RollbackInput{ToVersion: 3}); !workflow.IsConflict(err) {
		t.Fatalf("rollback to the active head error = %v, want conflict", err)
	}

	history, err := svc.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History() len = %d, want 3", len(history))
	}
	if history[0].Version != 3 {
		t.Fatalf("History() head = %d, want newest first", history[0].Version)
	}
	if history[0].SourceVersion == nil || *history[0].SourceVersion != 1 {
		t.Fatalf("rollback row source_version = %v, want 1", history[0].SourceVersion)
	}
}

func TestRollbackToMissingVersionNotFound(t *testing.T) {
	svc := setupRulesService(t)
	ctx := context.Background()

	if _, err := svc.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}

	if _, err := svc.Rollback(ctx, RollbackInput{ToVersion: 99}); !workflow.IsNotFound(err) {
		t.Fatalf("rollback to missing version error = %v, want not found", err)
	}
	if _, err := svc.GetVersion(ctx, 99); !workflow.IsNotFound(err) {
		t.Fatalf("GetVersion(99) error = %v, want not found", err)
	}

	// Version 1 is the live head here, so the rejection is a conflict, not
	// a lookup failure.
	if _, err := svc.Rollback(ctx, RollbackInput{ToVersion: 1}); !workflow.IsConflict(err) {
		t.Fatalf("rollback to live version error = %v, want conflict", err)
	}
}

func TestGetActiveCarriesStateIdentity(t *testing.T) {
	svc := setupRulesService(t)
	ctx := context.Background()

	active, err := svc.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.CacheKey != "rules:active:"+active.Checksum {
		t.Fatalf("cache key = %q, want checksum-derived", active.CacheKey)
	}
	if active.UpdatedAt.IsZero() {
		t.Fatal("active rules must carry the state timestamp")
	}
}
