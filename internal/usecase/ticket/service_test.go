package ticket

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
	"fleetops/internal/usecase/worksession"
)

type ticketFixture struct {
	svc      *Service
	sessions *worksession.Service
	ledger   *ledgeruc.Service
	users    ports.UserRepository
	fleet    ports.FleetRepository

	master ports.User
	tech   ports.User
	qc     ports.User
	item   ports.InventoryItem
}

func setupTickets(t *testing.T) *ticketFixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tickets.sqlite")
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
		&model.User{}, &model.UserRole{}, &model.InventoryItem{},
		&model.RulesVersion{}, &model.RulesState{}, &model.RulesKV{},
		&model.LedgerEntry{}, &model.Ticket{}, &model.TicketTransition{},
		&model.WorkSession{}, &model.WorkSessionTransition{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	ctx := context.Background()
	unit := uow.NewUnitOfWork(db)
	users := repository.NewUserRepository(db)
	fleet := repository.NewFleetRepository(db)
	rulesSvc := rulesuc.NewService(repository.NewRulesRepository(db), unit, cache.NewSQLiteCache(db))
	if _, err := rulesSvc.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap rules: %v", err)
	}
	ledgerSvc := ledgeruc.NewService(repository.NewLedgerRepository(db), users, unit)
	sessionSvc := worksession.NewService(repository.NewWorkSessionRepository(db), rulesSvc, unit, time.UTC)

	fx := &ticketFixture{
		svc:      NewService(repository.NewTicketRepository(db), users, fleet, sessionSvc, ledgerSvc, rulesSvc, unit),
		sessions: sessionSvc,
		ledger:   ledgerSvc,
		users:    users,
		fleet:    fleet,
	}

	fx.master = fx.createUser(t, "master", workflow.RoleMaster)
	fx.tech = fx.createUser(t, "tech1", workflow.RoleTechnician)
	fx.qc = fx.createUser(t, "qc", workflow.RoleQC)

	item, err := fleet.CreateItem(ctx, ports.InventoryItem{Code: "BK-0001", Name: "bike", Status: ports.ItemStatusReady})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	fx.item = item
	return fx
}

func (f *ticketFixture) createUser(t *testing.T, username string, roles ...workflow.Role) ports.User {
	t.Helper()

	user, err := f.users.Create(context.Background(), ports.User{
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

// create + approve + assign + start, returning the in-progress ticket.
func (f *ticketFixture) startTicket(t *testing.T, srt int) ports.Ticket {
	t.Helper()
	ctx := context.Background()

	created, err := f.svc.Create(ctx, CreateInput{
		ItemCode:        f.item.Code,
		MasterID:        f.master.UserID,
		FlagColor:       "red",
		SRTTotalMinutes: srt,
		Origin:          "test",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.svc.ApproveReview(ctx, ActionInput{TicketID: created.TicketID, ActorID: f.master.UserID, Origin: "test"}); err != nil {
		t.Fatalf("ApproveReview() error = %v", err)
	}
	if _, err := f.svc.Assign(ctx, AssignInput{TicketID: created.TicketID, TechnicianID: f.tech.UserID, ActorID: f.master.UserID, Origin: "test"}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	started, err := f.svc.Start(ctx, ActionInput{TicketID: created.TicketID, ActorID: f.tech.UserID, Origin: "test"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return started
}

func (f *ticketFixture) stopAndSubmit(t *testing.T, ticketID uint64) {
	t.Helper()
	ctx := context.Background()

	if _, err := f.sessions.Stop(ctx, worksession.TimerInput{TicketID: ticketID, ActorID: f.tech.UserID, Origin: "test"}); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := f.svc.ToWaitingQC(ctx, ActionInput{TicketID: ticketID, ActorID: f.tech.UserID, Origin: "test"}); err != nil {
		t.Fatalf("ToWaitingQC() error = %v", err)
	}
}

func TestFirstPassFlowPostsBaseAndBonus(t *testing.T) {
	fx := setupTickets(t)
	ctx := context.Background()

	started := fx.startTicket(t, 45)
	if started.Status != workflow.TicketInProgress {
		t.Fatalf("status = %s, want in_progress", started.Status)
	}

	item, err := fx.fleet.GetItem(ctx, fx.item.ItemID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if item.Status != ports.ItemStatusInRepair {
		t.Fatalf("item status = %s, want in_repair", item.Status)
	}

	// The session opened by Start must be stopped before the QC hand-off.
	if _, err := fx.svc.ToWaitingQC(ctx, ActionInput{TicketID: started.TicketID, ActorID: fx.tech.UserID, Origin: "test"}); !workflow.IsValidation(err) {
		t.Fatalf("submit with open session error = %v, want validation", err)
	}
	fx.stopAndSubmit(t, started.TicketID)

	result, err := fx.svc.QCPass(ctx, ActionInput{TicketID: started.TicketID, ActorID: fx.qc.UserID, Origin: "test"})
	if err != nil {
		t.Fatalf("QCPass() error = %v", err)
	}
	// srt 45 over 20 minutes per xp rounds up to 3.
	if result.BaseXP != 3 || result.BonusXP != 1 || !result.FirstPass {
		t.Fatalf("QCPass() = %+v, want base 3 bonus 1 first pass", result)
	}
	if !result.LedgerCreated {
		t.Fatal("first qc pass must create the base posting")
	}
	if result.Ticket.Status != workflow.TicketDone {
		t.Fatalf("ticket status = %s, want done", result.Ticket.Status)
	}

	item, _ = fx.fleet.GetItem(ctx, fx.item.ItemID)
	if item.Status != ports.ItemStatusReady {
		t.Fatalf("item status after qc pass = %s, want ready", item.Status)
	}

	entries, err := fx.ledger.ListForUser(ctx, fx.tech.UserID, 10)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want base and bonus", len(entries))
	}

	// DONE is terminal.
	if _, err := fx.svc.QCPass(ctx, ActionInput{TicketID: started.TicketID, ActorID: fx.qc.UserID, Origin: "test"}); !workflow.IsValidation(err) {
		t.Fatalf("second QCPass() error = %v, want validation", err)
	}
}

func TestQCFailForfeitsFirstPassBonus(t *testing.T) {
	fx := setupTickets(t)
	ctx := context.Background()

	started := fx.startTicket(t, 45)
	fx.stopAndSubmit(t, started.TicketID)

	failed, err := fx.svc.QCFail(ctx, ActionInput{TicketID: started.TicketID, ActorID: fx.qc.UserID, Origin: "test"})
	if err != nil {
		t.Fatalf("QCFail() error = %v", err)
	}
	if failed.Status != workflow.TicketRework {
		t.Fatalf("status after qc fail = %s, want rework", failed.Status)
	}
	if entries, _ := fx.ledger.ListForUser(ctx, fx.tech.UserID, 10); len(entries) != 0 {
		t.Fatalf("qc fail must not move xp, got %d entries", len(entries))
	}

	// Rework loop: start again, stop, resubmit.
	if _, err := fx.svc.Start(ctx, ActionInput{TicketID: started.TicketID, ActorID: fx.tech.UserID, Origin: "test"}); err != nil {
		t.Fatalf("rework Start() error = %v", err)
	}
	fx.stopAndSubmit(t, started.TicketID)

	result, err := fx.svc.QCPass(ctx, ActionInput{TicketID: started.TicketID, ActorID: fx.qc.UserID, Origin: "test"})
	if err != nil {
		t.Fatalf("QCPass() error = %v", err)
	}
	if result.FirstPass || result.BonusXP != 0 {
		t.Fatalf("QCPass() after a fail = %+v, want no bonus", result)
	}
	if result.BaseXP != 3 {
		t.Fatalf("base xp = %d, want 3", result.BaseXP)
	}

	entries, err := fx.ledger.ListForUser(ctx, fx.tech.UserID, 10)
	if err != nil {
		t.Fatalf("ListForUser() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want base only", len(entries))
	}
	if entries[0].Amount != 3 {
		t.Fatalf("base posting amount = %d, want 3", entries[0].Amount)
	}
}

func TestCreateGuards(t *testing.T) {
	fx := setupTickets(t)
	ctx := context.Background()

	if _, err := fx.svc.Create(ctx, CreateInput{ItemCode: fx.item.Code, MasterID: fx.master.UserID, FlagColor: "purple", SRTTotalMinutes: 30}); !workflow.IsValidation(err) {
		t.Fatalf("bad flag error = %v, want validation", err)
	}
	if _, err := fx.svc.Create(ctx, CreateInput{ItemCode: fx.item.Code, MasterID: fx.master.UserID, FlagColor: "red", SRTTotalMinutes: 0}); !workflow.IsValidation(err) {
		t.Fatalf("zero srt error = %v, want validation", err)
	}
	if _, err := fx.svc.Create(ctx, CreateInput{ItemCode: "NOPE", MasterID: fx.master.UserID, FlagColor: "red", SRTTotalMinutes: 30}); !workflow.IsNotFound(err) {
		t.Fatalf("unknown item error = %v, want not found", err)
	}
	if _, err := fx.svc.Create(ctx, CreateInput{ItemCode: fx.item.Code, MasterID: fx.tech.UserID, FlagColor: "red", SRTTotalMinutes: 30}); !workflow.IsValidation(err) {
		t.Fatalf("technician create error = %v, want validation", err)
	}

	first, err := fx.svc.Create(ctx, CreateInput{ItemCode: fx.item.Code, MasterID: fx.master.UserID, FlagColor: "red", SRTTotalMinutes: 30, Origin: "test"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.Status != workflow.TicketUnderReview {
		t.Fatalf("status = %s, want under_review", first.Status)
	}

	// One active ticket per item.
	if _, err := fx.svc.Create(ctx, CreateInput{ItemCode: fx.item.Code, MasterID: fx.master.UserID, FlagColor: "red", SRTTotalMinutes: 30}); !workflow.IsConflict(err) {
		t.Fatalf("duplicate active ticket error = %v, want conflict", err)
	}

	retired, err := fx.fleet.CreateItem(ctx, ports.InventoryItem{Code: "BK-0099", Name: "old", Status: ports.ItemStatusRetired})
	if err != nil {
		t.Fatalf("create retired item: %v", err)
	}
	if _, err := fx.svc.Create(ctx, CreateInput{ItemCode: retired.Code, MasterID: fx.master.UserID, FlagColor: "green", SRTTotalMinutes: 30}); !workflow.IsValidation(err) {
		t.Fatalf("retired item error = %v, want validation", err)
	}
}

func TestAssignGuards(t *testing.T) {
	fx := setupTickets(t)
	ctx := context.Background()

	started := fx.startTicket(t, 30)

	// WIP=1: a technician mid-repair cannot take another ticket.
	other, err := fx.fleet.CreateItem(ctx, ports.InventoryItem{Code: "BK-0002", Name: "bike2", Status: ports.ItemStatusReady})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	second, err := fx.svc.Create(ctx, CreateInput{ItemCode: other.Code, MasterID: fx.master.UserID, FlagColor: "yellow", SRTTotalMinutes: 20, Origin: "test"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := fx.svc.ApproveReview(ctx, ActionInput{TicketID: second.TicketID, ActorID: fx.master.UserID, Origin: "test"}); err != nil {
		t.Fatalf("ApproveReview() error = %v", err)
	}
	if _, err := fx.svc.Assign(ctx, AssignInput{TicketID: second.TicketID, TechnicianID: fx.tech.UserID, ActorID: fx.master.UserID}); !workflow.IsValidation(err) {
		t.Fatalf("wip assign error = %v, want validation", err)
	}

	// Assignee must carry the technician role.
	if _, err := fx.svc.Assign(ctx, AssignInput{TicketID: second.TicketID, TechnicianID: fx.qc.UserID, ActorID: fx.master.UserID}); !workflow.IsValidation(err) {
		t.Fatalf("non-technician assignee error = %v, want validation", err)
	}

	// Only the assigned technician may start or submit.
	tech2 := fx.createUser(t, "tech2", workflow.RoleTechnician)
	if _, err := fx.svc.Start(ctx, ActionInput{TicketID: started.TicketID, ActorID: tech2.UserID}); !workflow.IsValidation(err) {
		t.Fatalf("foreign Start() error = %v, want validation", err)
	}
	if _, err := fx.svc.ToWaitingQC(ctx, ActionInput{TicketID: started.TicketID, ActorID: tech2.UserID}); !workflow.IsValidation(err) {
		t.Fatalf("foreign ToWaitingQC() error = %v, want validation", err)
	}
}

func TestTransitionsRecordFullTrail(t *testing.T) {
	fx := setupTickets(t)
	ctx := context.Background()

	started := fx.startTicket(t, 30)
	fx.stopAndSubmit(t, started.TicketID)
	if _, err := fx.svc.QCPass(ctx, ActionInput{TicketID: started.TicketID, ActorID: fx.qc.UserID, Origin: "test"}); err != nil {
		t.Fatalf("QCPass() error = %v", err)
	}

	transitions, err := fx.svc.Transitions(ctx, started.TicketID)
	if err != nil {
		t.Fatalf("Transitions() error = %v", err)
	}
	want := []workflow.TicketAction{
		workflow.ActionCreate,
		workflow.ActionApproveReview,
		workflow.ActionAssign,
		workflow.ActionStart,
		workflow.ActionToWaitingQC,
		workflow.ActionQCPass,
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions len = %d, want %d", len(transitions), len(want))
	}
	for i, action := range want {
		if transitions[i].Action != action {
			t.Fatalf("transition %d action = %s, want %s", i, transitions[i].Action, action)
		}
	}
}
