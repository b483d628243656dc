package notify

import (
	"context"
	"log/slog"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/ports"
)

// LogChannel writes escalations to the operator log. It never fails, so a
// deployment without a webhook still gets deliverable events.
type LogChannel struct{}

var _ ports.EscalationChannel = (*LogChannel)(nil)

func NewLogChannel() *LogChannel {
	return &LogChannel{}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(ctx context.Context, escalation ports.Escalation) error {
	logging.Warn(ctx, "sla escalation",
		slog.String("event_uid", escalation.EventUID),
		slog.String("rule_key", escalation.RuleKey),
		slog.String("status", escalation.Status),
		slog.String("severity", escalation.Severity),
		slog.String("summary", escalation.Summary),
		slog.Float64("metric_value", escalation.MetricValue),
		slog.Float64("threshold_value", escalation.ThresholdValue))
	return nil
}
