package sla

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
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
	rulesuc "fleetops/internal/usecase/rules"
)

type fakeChannel struct {
	name string
	err  error
	sent []ports.Escalation
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, escalation ports.Escalation) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, escalation)
	return nil
}

type slaFixture struct {
	svc      *Service
	clock    time.Time
	events   ports.SLARepository
	stockout ports.StockoutRepository
	tickets  ports.TicketRepository
	fleet    ports.FleetRepository
	users    ports.UserRepository
}

// Noon inside the default 09:00-21:00 business window.
var slaBase = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func setupSLA(t *testing.T) *slaFixture {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "sla.sqlite")
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
		&model.Ticket{}, &model.TicketTransition{},
		&model.SLAEvent{}, &model.SLADeliveryAttempt{}, &model.StockoutIncident{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	ctx := context.Background()
	unit := uow.NewUnitOfWork(db)
	rulesSvc := rulesuc.NewService(repository.NewRulesRepository(db), unit, cache.NewSQLiteCache(db))
	if _, err := rulesSvc.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap rules: %v", err)
	}

	fx := &slaFixture{
		clock:    slaBase,
		events:   repository.NewSLARepository(db),
		stockout: repository.NewStockoutRepository(db),
		tickets:  repository.NewTicketRepository(db),
		fleet:    repository.NewFleetRepository(db),
		users:    repository.NewUserRepository(db),
	}
	fx.svc = NewService(fx.events, fx.stockout, fx.tickets, fx.fleet, rulesSvc, nil, unit, time.UTC)
	fx.svc.now = func() time.Time { return fx.clock }
	return fx
}

func (f *slaFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func decisionFor(t *testing.T, decisions []RuleDecision, ruleKey string) RuleDecision {
	t.Helper()
	for _, d := range decisions {
		if d.RuleKey == ruleKey {
			return d
		}
	}
	t.Fatalf("no decision for rule %s", ruleKey)
	return RuleDecision{}
}

func TestEvaluateCooldownRepeatResolve(t *testing.T) {
	fx := setupSLA(t)
	ctx := context.Background()

	decisions, err := fx.svc.EvaluateAndAct(ctx)
	if err != nil {
		t.Fatalf("EvaluateAndAct() error = %v", err)
	}
	for _, d := range decisions {
		if d.Outcome != "none" {
			t.Fatalf("quiet shop decision %s = %s, want none", d.RuleKey, d.Outcome)
		}
	}

	// A stockout open for an hour crosses the 45-minute threshold.
	if _, err := fx.stockout.Open(ctx, ports.StockoutIncident{
		StartedAt: fx.clock.Add(-time.Hour),
		CreatedAt: fx.clock.Add(-time.Hour),
		UpdatedAt: fx.clock.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("open incident: %v", err)
	}

	decisions, err = fx.svc.EvaluateAndAct(ctx)
	if err != nil {
		t.Fatalf("EvaluateAndAct() error = %v", err)
	}
	d := decisionFor(t, decisions, RuleStockoutOpenMinutes)
	if d.Outcome != "triggered" || d.Metric != 60 || d.Threshold != 45 {
		t.Fatalf("breach decision = %+v, want triggered 60 vs 45", d)
	}
	if d.EventUID == "" {
		t.Fatal("triggered decision must carry the event uid")
	}

	// The 30-minute cooldown silences an immediate re-fire.
	fx.advance(5 * time.Minute)
	decisions, _ = fx.svc.EvaluateAndAct(ctx)
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "none" {
		t.Fatalf("cooldown decision = %s, want none", d.Outcome)
	}

	fx.advance(31 * time.Minute)
	decisions, _ = fx.svc.EvaluateAndAct(ctx)
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "repeat" {
		t.Fatalf("ongoing breach decision = %s, want repeat", d.Outcome)
	}

	open, err := fx.stockout.GetOpen(ctx)
	if err != nil {
		t.Fatalf("GetOpen() error = %v", err)
	}
	if err := fx.stockout.Close(ctx, open.IncidentID, fx.clock, 96, 1); err != nil {
		t.Fatalf("close incident: %v", err)
	}

	// Recovery resolves regardless of cooldown.
	fx.advance(time.Minute)
	decisions, _ = fx.svc.EvaluateAndAct(ctx)
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "resolved" {
		t.Fatalf("recovery decision = %s, want resolved", d.Outcome)
	}

	fx.advance(time.Minute)
	decisions, _ = fx.svc.EvaluateAndAct(ctx)
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "none" {
		t.Fatalf("post-recovery decision = %s, want none", d.Outcome)
	}

	events, err := fx.svc.Events(ctx, 10)
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("event log len = %d, want trigger, repeat and resolve", len(events))
	}
	if events[0].Status != ports.SLAEventResolved {
		t.Fatalf("newest event status = %s, want resolved", events[0].Status)
	}
}

func TestFirstPassRateBreach(t *testing.T) {
	fx := setupSLA(t)
	ctx := context.Background()

	master, err := fx.users.Create(ctx, ports.User{Username: "master", DisplayName: "master", Roles: []workflow.Role{workflow.RoleMaster}, IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	item, err := fx.fleet.CreateItem(ctx, ports.InventoryItem{Code: "BK-0001", Name: "bike", Status: ports.ItemStatusReady})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	ticket, err := fx.tickets.Create(ctx, ports.Ticket{
		InventoryItemID: item.ItemID,
		MasterID:        master.UserID,
		Status:          workflow.TicketWaitingQC,
		FlagColor:       workflow.FlagRed,
		SRTTotalMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if err := fx.tickets.MarkDone(ctx, ticket.TicketID, fx.clock.Add(-24*time.Hour)); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := fx.tickets.AppendTransition(ctx, ports.TicketTransition{
		TicketID:   ticket.TicketID,
		FromStatus: workflow.TicketWaitingQC,
		ToStatus:   workflow.TicketRework,
		Action:     workflow.ActionQCFail,
		ActorID:    master.UserID,
	}); err != nil {
		t.Fatalf("append transition: %v", err)
	}

	decisions, err := fx.svc.EvaluateAndAct(ctx)
	if err != nil {
		t.Fatalf("EvaluateAndAct() error = %v", err)
	}
	d := decisionFor(t, decisions, RuleFirstPassRatePercent)
	if d.Outcome != "triggered" || d.Metric != 0 || d.Threshold != 70 {
		t.Fatalf("first-pass decision = %+v, want triggered 0 vs 70", d)
	}
}

func TestStockoutDetectAndSync(t *testing.T) {
	fx := setupSLA(t)
	ctx := context.Background()

	item, err := fx.fleet.CreateItem(ctx, ports.InventoryItem{Code: "BK-0001", Name: "bike", Status: ports.ItemStatusInRepair})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	result, err := fx.svc.DetectAndSync(ctx)
	if err != nil {
		t.Fatalf("DetectAndSync() error = %v", err)
	}
	if result.Outcome != StockoutStarted || result.ReadyCount != 0 || result.Incident == nil {
		t.Fatalf("DetectAndSync() = %+v, want started at zero ready", result)
	}

	result, _ = fx.svc.DetectAndSync(ctx)
	if result.Outcome != StockoutNoChangeActive {
		t.Fatalf("repeat sync outcome = %s, want no_change_active", result.Outcome)
	}

	// Recovery closes the incident and records its duration.
	if err := fx.fleet.SetItemStatus(ctx, item.ItemID, ports.ItemStatusReady); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	fx.advance(30 * time.Minute)
	result, err = fx.svc.DetectAndSync(ctx)
	if err != nil {
		t.Fatalf("DetectAndSync() error = %v", err)
	}
	if result.Outcome != StockoutResolved || result.ReadyCount != 1 {
		t.Fatalf("recovery sync = %+v, want resolved with one ready", result)
	}
	if result.Incident.DurationMinutes == nil || *result.Incident.DurationMinutes != 30 {
		t.Fatalf("incident duration = %v, want 30", result.Incident.DurationMinutes)
	}

	result, _ = fx.svc.DetectAndSync(ctx)
	if result.Outcome != StockoutNoChangeIdle {
		t.Fatalf("idle sync outcome = %s, want no_change_idle", result.Outcome)
	}

	// Outside the business window a stockout does not open an incident.
	if err := fx.fleet.SetItemStatus(ctx, item.ItemID, ports.ItemStatusInRepair); err != nil {
		t.Fatalf("SetItemStatus() error = %v", err)
	}
	fx.clock = time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)
	result, err = fx.svc.DetectAndSync(ctx)
	if err != nil {
		t.Fatalf("DetectAndSync() error = %v", err)
	}
	if result.Outcome != StockoutNoChangeIdle {
		t.Fatalf("after-hours sync outcome = %s, want no_change_idle", result.Outcome)
	}

	incidents, err := fx.svc.Incidents(ctx, 10)
	if err != nil {
		t.Fatalf("Incidents() error = %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("incident log len = %d, want 1", len(incidents))
	}
}

func TestDeliveryRetriesWithBackoff(t *testing.T) {
	fx := setupSLA(t)
	ctx := context.Background()

	event, err := fx.events.AppendEvent(ctx, ports.SLAEvent{
		EventUID:       "evt-1",
		RuleKey:        RuleStockoutOpenMinutes,
		Status:         ports.SLAEventTriggered,
		Severity:       "critical",
		MetricValue:    60,
		ThresholdValue: 45,
		PayloadJSON:    `{"repeat":false}`,
		CreatedAt:      fx.clock,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	broken := &fakeChannel{name: "webhook", err: errors.New("connection refused")}
	fx.svc.channels = []ports.EscalationChannel{broken}

	wantBackoff := []int{30, 60, 120, 240, 480}
	for attempt := 1; attempt <= 5; attempt++ {
		result, err := fx.svc.Deliver(ctx, event.EventID)
		if err != nil {
			t.Fatalf("Deliver() attempt %d error = %v", attempt, err)
		}
		if result.Delivered || result.AttemptNumber != attempt {
			t.Fatalf("attempt %d result = %+v", attempt, result)
		}
		if result.BackoffSecs != wantBackoff[attempt-1] {
			t.Fatalf("attempt %d backoff = %d, want %d", attempt, result.BackoffSecs, wantBackoff[attempt-1])
		}
		if wantRetry := attempt < 5; result.ShouldRetry != wantRetry {
			t.Fatalf("attempt %d should_retry = %t, want %t", attempt, result.ShouldRetry, wantRetry)
		}
		if !strings.Contains(result.Reason, "webhook: connection refused") {
			t.Fatalf("attempt %d reason = %q", attempt, result.Reason)
		}
	}

	// Beyond the ceiling nothing more is recorded.
	result, err := fx.svc.Deliver(ctx, event.EventID)
	if err != nil {
		t.Fatalf("Deliver() past ceiling error = %v", err)
	}
	if result.Delivered || result.ShouldRetry || !strings.Contains(result.Reason, "attempt ceiling") {
		t.Fatalf("past-ceiling result = %+v", result)
	}
	attempts, err := fx.svc.Attempts(ctx, event.EventID)
	if err != nil {
		t.Fatalf("Attempts() error = %v", err)
	}
	if len(attempts) != 5 {
		t.Fatalf("recorded attempts = %d, want 5", len(attempts))
	}
}

func TestDeliverySuccessShortCircuits(t *testing.T) {
	fx := setupSLA(t)
	ctx := context.Background()

	event, err := fx.events.AppendEvent(ctx, ports.SLAEvent{
		EventUID:       "evt-2",
		RuleKey:        RuleBacklogBlackPlusCount,
		Status:         ports.SLAEventTriggered,
		Severity:       "high",
		MetricValue:    6,
		ThresholdValue: 5,
		PayloadJSON:    `{"repeat":false}`,
		CreatedAt:      fx.clock,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	healthy := &fakeChannel{name: "log"}
	fx.svc.channels = []ports.EscalationChannel{healthy}

	results, err := fx.svc.DeliverPending(ctx, 10)
	if err != nil {
		t.Fatalf("DeliverPending() error = %v", err)
	}
	if len(results) != 1 || !results[0].Delivered || results[0].AttemptNumber != 1 {
		t.Fatalf("DeliverPending() = %+v, want one delivered attempt", results)
	}
	if len(healthy.sent) != 1 || healthy.sent[0].EventUID != "evt-2" {
		t.Fatalf("channel saw %+v, want evt-2 once", healthy.sent)
	}

	// Delivered events drop out of the pending sweep and short-circuit by id.
	results, _ = fx.svc.DeliverPending(ctx, 10)
	if len(results) != 0 {
		t.Fatalf("second sweep delivered %d events, want 0", len(results))
	}
	result, err := fx.svc.Deliver(ctx, event.EventID)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if !result.Delivered || result.Reason != "already delivered" {
		t.Fatalf("re-deliver result = %+v", result)
	}
	if len(healthy.sent) != 1 {
		t.Fatalf("channel saw %d sends after re-deliver, want 1", len(healthy.sent))
	}
}

func TestDeliveryWithoutChannelsFails(t *testing.T) {
	fx := setupSLA(t)
	ctx := context.Background()

	event, err := fx.events.AppendEvent(ctx, ports.SLAEvent{
		EventUID:  "evt-3",
		RuleKey:   RuleFirstPassRatePercent,
		Status:    ports.SLAEventTriggered,
		Severity:  "medium",
		CreatedAt: fx.clock,
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}

	result, err := fx.svc.Deliver(ctx, event.EventID)
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if result.Delivered || !strings.Contains(result.Reason, "no escalation channels configured") {
		t.Fatalf("no-channel result = %+v", result)
	}
}

func TestBackoffSeconds(t *testing.T) {
	cases := []struct {
		attempt int
		want    int
	}{
		{1, 30},
		{2, 60},
		{5, 480},
		{8, 3600},
	}
	for _, tc := range cases {
		if got := backoffSeconds(tc.attempt, 30, 3600); got != tc.want {
			t.Fatalf("backoffSeconds(%d) = %d, want %d", tc.attempt, got, tc.want)
		}
	}
}

func TestCooldownArmsAfterResolve(t *testing.T) {
	fx := setupSLA(t)
	ctx := context.Background()

	open, err := fx.stockout.Open(ctx, ports.StockoutIncident{
		StartedAt: fx.clock.Add(-time.Hour),
		CreatedAt: fx.clock.Add(-time.Hour),
		UpdatedAt: fx.clock.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("open incident: %v", err)
	}
	decisions, err := fx.svc.EvaluateAndAct(ctx)
	if err != nil {
		t.Fatalf("EvaluateAndAct() error = %v", err)
	}
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "triggered" {
		t.Fatalf("breach decision = %s, want triggered", d.Outcome)
	}

	if err := fx.stockout.Close(ctx, open.IncidentID, fx.clock, 60, 1); err != nil {
		t.Fatalf("close incident: %v", err)
	}
	fx.advance(31 * time.Minute)
	decisions, _ = fx.svc.EvaluateAndAct(ctx)
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "resolved" {
		t.Fatalf("recovery decision = %s, want resolved", d.Outcome)
	}

	// A fresh breach right after the recovery stays quiet: the cooldown
	// counts from the rule's most recent event, resolved ones included.
	if _, err := fx.stockout.Open(ctx, ports.StockoutIncident{
		StartedAt: fx.clock.Add(-time.Hour),
		CreatedAt: fx.clock,
		UpdatedAt: fx.clock,
	}); err != nil {
		t.Fatalf("reopen incident: %v", err)
	}
	fx.advance(10 * time.Minute)
	decisions, _ = fx.svc.EvaluateAndAct(ctx)
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "none" {
		t.Fatalf("post-resolve breach decision = %s, want none inside cooldown", d.Outcome)
	}

	fx.advance(21 * time.Minute)
	decisions, _ = fx.svc.EvaluateAndAct(ctx)
	if d := decisionFor(t, decisions, RuleStockoutOpenMinutes); d.Outcome != "triggered" {
		t.Fatalf("post-cooldown breach decision = %s, want triggered", d.Outcome)
	}
}
