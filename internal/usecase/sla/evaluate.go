package sla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/rules"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

type ruleSpec struct {
	key      string
	severity string
	// breachAbove: metric >= threshold breaches; otherwise metric < threshold
	// breaches.
	breachAbove bool
}

var ruleSpecs = []ruleSpec{
	{key: RuleStockoutOpenMinutes, severity: "critical", breachAbove: true},
	{key: RuleBacklogBlackPlusCount, severity: "high", breachAbove: true},
	{key: RuleFirstPassRatePercent, severity: "medium", breachAbove: false},
}

// RuleDecision summarizes what the evaluator did for one rule on one run.
type RuleDecision struct {
	RuleKey   string
	Metric    float64
	Threshold float64
	Outcome   string // none | triggered | repeat | resolved
	EventUID  string
}

// EvaluateAndAct runs one evaluator sweep: each rule's metric is compared to
// the active threshold, and at most one immutable event per rule is
// appended, respecting the per-rule cooldown.
func (s *Service) EvaluateAndAct(ctx context.Context) ([]RuleDecision, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	cooldown := time.Duration(active.Config.SLA.CooldownMinutes) * time.Minute

	decisions := make([]RuleDecision, 0, len(ruleSpecs))
	for _, spec := range ruleSpecs {
		metric, err := s.computeMetric(ctx, spec.key, now)
		if err != nil {
			return decisions, err
		}
		threshold := thresholdFor(spec.key, active.Config.SLA.Thresholds)

		decision, err := s.decideRule(ctx, spec, metric, threshold, cooldown, now)
		if err != nil {
			return decisions, err
		}
		decisions = append(decisions, decision)
	}

	logging.Info(ctx, "sla evaluation sweep complete", slog.Int("rules", len(decisions)))
	return decisions, nil
}

func (s *Service) decideRule(ctx context.Context, spec ruleSpec, metric float64, threshold float64, cooldown time.Duration, now time.Time) (RuleDecision, error) {
	decision := RuleDecision{RuleKey: spec.key, Metric: metric, Threshold: threshold, Outcome: "none"}

	latest, err := s.events.LatestEventByRule(ctx, spec.key)
	hasLatest := err == nil
	if err != nil && !errors.Is(err, ports.ErrSLAEventNotFound) {
		return decision, errs.Wrap(err, "load latest sla event")
	}

	breached := metric >= threshold
	if !spec.breachAbove {
		breached = metric < threshold
	}
	openTrigger := hasLatest && latest.Status == ports.SLAEventTriggered

	switch {
	case breached:
		if hasLatest && now.Sub(latest.CreatedAt) < cooldown {
			return decision, nil
		}
		repeat := openTrigger
		event, err := s.appendEvent(ctx, spec, ports.SLAEventTriggered, metric, threshold, repeat, now)
		if err != nil {
			return decision, err
		}
		decision.EventUID = event.EventUID
		decision.Outcome = "triggered"
		if repeat {
			decision.Outcome = "repeat"
		}
	case openTrigger:
		event, err := s.appendEvent(ctx, spec, ports.SLAEventResolved, metric, threshold, false, now)
		if err != nil {
			return decision, err
		}
		decision.EventUID = event.EventUID
		decision.Outcome = "resolved"
	}
	return decision, nil
}

func (s *Service) appendEvent(ctx context.Context, spec ruleSpec, status string, metric float64, threshold float64, repeat bool, now time.Time) (ports.SLAEvent, error) {
	payload := fmt.Sprintf(`{"repeat":%t,"metric_value":%g,"threshold_value":%g}`, repeat, metric, threshold)
	var event ports.SLAEvent
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		created, err := s.events.AppendEvent(txCtx, ports.SLAEvent{
			EventUID:       uuid.NewString(),
			RuleKey:        spec.key,
			Status:         status,
			Severity:       spec.severity,
			MetricValue:    metric,
			ThresholdValue: threshold,
			PayloadJSON:    payload,
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}
		event = created
		return nil
	}); err != nil {
		return ports.SLAEvent{}, err
	}

	logging.Info(ctx, "sla event recorded",
		slog.String("rule_key", spec.key),
		slog.String("status", status),
		slog.Bool("repeat", repeat),
		slog.Float64("metric_value", metric))
	return event, nil
}

func (s *Service) computeMetric(ctx context.Context, ruleKey string, now time.Time) (float64, error) {
	switch ruleKey {
	case RuleStockoutOpenMinutes:
		incident, err := s.stockout.GetOpen(ctx)
		if err != nil {
			if errors.Is(err, ports.ErrStockoutIncidentNotFound) {
				return 0, nil
			}
			return 0, errs.Wrap(err, "load open stockout incident")
		}
		return now.Sub(incident.StartedAt).Minutes(), nil

	case RuleBacklogBlackPlusCount:
		count, err := s.tickets.CountActiveWithFlagAtLeast(ctx, workflow.FlagBlack)
		if err != nil {
			return 0, errs.Wrap(err, "count black-plus backlog")
		}
		return float64(count), nil

	case RuleFirstPassRatePercent:
		return s.firstPassRate(ctx, now)
	}
	return 0, fmt.Errorf("unknown sla rule %q", ruleKey)
}

// firstPassRate is the share of recently finished tickets that never failed
// QC. An empty window reads as 100: no work is not a quality problem.
func (s *Service) firstPassRate(ctx context.Context, now time.Time) (float64, error) {
	done, err := s.tickets.ListDoneBetween(ctx, now.Add(-firstPassWindow), now)
	if err != nil {
		return 0, errs.Wrap(err, "list finished tickets for first-pass rate")
	}
	if len(done) == 0 {
		return 100, nil
	}

	firstPass := 0
	for _, ticket := range done {
		failed, err := s.tickets.HasTransition(ctx, ticket.TicketID, workflow.ActionQCFail)
		if err != nil {
			return 0, err
		}
		if !failed {
			firstPass++
		}
	}
	return float64(firstPass) / float64(len(done)) * 100, nil
}

func thresholdFor(ruleKey string, thresholds rules.SLAThresholds) float64 {
	switch ruleKey {
	case RuleStockoutOpenMinutes:
		return float64(thresholds.StockoutOpenMinutes)
	case RuleBacklogBlackPlusCount:
		return float64(thresholds.BacklogBlackPlusCount)
	case RuleFirstPassRatePercent:
		return float64(thresholds.FirstPassRatePercent)
	}
	return 0
}
