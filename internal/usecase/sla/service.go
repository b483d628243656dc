package sla

import (
	"context"
	"errors"
	"time"

	"fleetops/internal/errs"
	"fleetops/internal/ports"
	rulesuc "fleetops/internal/usecase/rules"
)

// Rule keys the evaluator knows. Thresholds come from the active rules
// document; the direction and severity are fixed per rule.
const (
	RuleStockoutOpenMinutes   = "stockout_open_minutes"
	RuleBacklogBlackPlusCount = "backlog_black_plus_count"
	RuleFirstPassRatePercent  = "first_pass_rate_percent"
)

// firstPassWindow is the trailing window the first-pass rate is computed
// over.
const firstPassWindow = 30 * 24 * time.Hour

// Service runs the periodic SLA loop: metric evaluation against active
// thresholds, immutable event recording with per-rule cooldowns, stockout
// incident bookkeeping and decoupled escalation delivery.
type Service struct {
	events   ports.SLARepository
	stockout ports.StockoutRepository
	tickets  ports.TicketRepository
	fleet    ports.FleetRepository
	rules    *rulesuc.Service
	channels []ports.EscalationChannel
	uow      ports.UnitOfWork
	loc      *time.Location
	now      func() time.Time
}

func NewService(
	events ports.SLARepository,
	stockoutRepo ports.StockoutRepository,
	tickets ports.TicketRepository,
	fleet ports.FleetRepository,
	rulesSvc *rulesuc.Service,
	channels []ports.EscalationChannel,
	uow ports.UnitOfWork,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		events:   events,
		stockout: stockoutRepo,
		tickets:  tickets,
		fleet:    fleet,
		rules:    rulesSvc,
		channels: channels,
		uow:      uow,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.events == nil {
		return errors.New("sla repository is required")
	}
	if s.uow == nil {
		return errors.New("sla unit of work is required")
	}
	return nil
}

// Events returns the newest-first event log for the audit feed.
func (s *Service) Events(ctx context.Context, limit int) ([]ports.SLAEvent, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	return s.events.ListEvents(ctx, limit)
}

// Attempts returns the delivery trail of one event.
func (s *Service) Attempts(ctx context.Context, eventID uint64) ([]ports.SLADeliveryAttempt, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	return s.events.ListAttempts(ctx, eventID)
}

// Incidents returns the newest-first stockout incident log.
func (s *Service) Incidents(ctx context.Context, limit int) ([]ports.StockoutIncident, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	if s.stockout == nil {
		return nil, errors.New("stockout repository is required")
	}
	return s.stockout.List(ctx, limit)
}
