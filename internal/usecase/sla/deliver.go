package sla

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

type DeliveryResult struct {
	EventID       uint64
	AttemptNumber int
	Delivered     bool
	ShouldRetry   bool
	BackoffSecs   int
	Reason        string
}

// DeliverPending fans every undelivered event out across the configured
// channels. Failures record a retryable attempt; the scheduler re-invokes
// until delivery or the attempt ceiling.
func (s *Service) DeliverPending(ctx context.Context, limit int) ([]DeliveryResult, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := s.events.ListUndelivered(ctx, limit)
	if err != nil {
		return nil, errs.Wrap(err, "list undelivered sla events")
	}

	results := make([]DeliveryResult, 0, len(pending))
	for _, event := range pending {
		result, err := s.deliverEvent(ctx, event, active.Config.SLA.DeliveryMaxAttempts, active.Config.SLA.DeliveryBackoffBaseSeconds, active.Config.SLA.DeliveryBackoffMaxSeconds)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// Deliver pushes one event by id, short-circuiting if it already went out.
func (s *Service) Deliver(ctx context.Context, eventID uint64) (DeliveryResult, error) {
	if err := s.guard(ctx); err != nil {
		return DeliveryResult{}, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return DeliveryResult{}, err
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return DeliveryResult{}, errs.Wrap(err, "load sla event")
	}
	if event.Delivered {
		return DeliveryResult{EventID: eventID, Delivered: true, Reason: "already delivered"}, nil
	}
	return s.deliverEvent(ctx, event, active.Config.SLA.DeliveryMaxAttempts, active.Config.SLA.DeliveryBackoffBaseSeconds, active.Config.SLA.DeliveryBackoffMaxSeconds)
}

func (s *Service) deliverEvent(ctx context.Context, event ports.SLAEvent, maxAttempts int, backoffBase int, backoffMax int) (DeliveryResult, error) {
	prior, err := s.events.CountAttempts(ctx, event.EventID)
	if err != nil {
		return DeliveryResult{}, errs.Wrap(err, "count delivery attempts")
	}
	attemptNumber := int(prior) + 1

	result := DeliveryResult{EventID: event.EventID, AttemptNumber: attemptNumber}
	if attemptNumber > maxAttempts {
		result.Reason = fmt.Sprintf("attempt ceiling of %d reached", maxAttempts)
		return result, nil
	}

	// Channel sends happen outside any transaction: a slow webhook must not
	// hold a storage lock, and a failure must not roll back the event.
	sendErrs := make([]string, 0)
	for _, channel := range s.channels {
		if err := channel.Send(ctx, ports.Escalation{
			EventUID:       event.EventUID,
			RuleKey:        event.RuleKey,
			Status:         event.Status,
			Severity:       event.Severity,
			Summary:        escalationSummary(event),
			MetricValue:    event.MetricValue,
			ThresholdValue: event.ThresholdValue,
			PayloadJSON:    event.PayloadJSON,
		}); err != nil {
			sendErrs = append(sendErrs, fmt.Sprintf("%s: %v", channel.Name(), err))
		}
	}
	delivered := len(sendErrs) == 0 && len(s.channels) > 0
	if len(s.channels) == 0 {
		sendErrs = append(sendErrs, "no escalation channels configured")
	}

	now := s.now().UTC()
	result.Delivered = delivered
	if !delivered {
		result.ShouldRetry = attemptNumber < maxAttempts
		result.BackoffSecs = backoffSeconds(attemptNumber, backoffBase, backoffMax)
		result.Reason = strings.Join(sendErrs, "; ")
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		status := "failed"
		if delivered {
			status = "delivered"
		}
		if err := s.events.AppendAttempt(txCtx, ports.SLADeliveryAttempt{
			EventID:             event.EventID,
			AttemptNumber:       attemptNumber,
			Status:              status,
			Delivered:           delivered,
			ShouldRetry:         result.ShouldRetry,
			RetryBackoffSeconds: result.BackoffSecs,
			Reason:              result.Reason,
			CreatedAt:           now,
		}); err != nil {
			return err
		}
		if delivered {
			return s.events.MarkDelivered(txCtx, event.EventID, now)
		}
		return nil
	}); err != nil {
		return result, err
	}

	if delivered {
		logging.Info(ctx, "sla escalation delivered",
			slog.Uint64("event_id", event.EventID),
			slog.Int("attempt", attemptNumber))
	} else {
		logging.Warn(ctx, "sla escalation delivery failed",
			slog.Uint64("event_id", event.EventID),
			slog.Int("attempt", attemptNumber),
			slog.Bool("should_retry", result.ShouldRetry),
			slog.Int("backoff_seconds", result.BackoffSecs),
			slog.String("reason", result.Reason))
	}
	return result, nil
}

// backoffSeconds doubles per attempt from the configured base, capped at the
// configured maximum.
func backoffSeconds(attemptNumber int, base int, max int) int {
	backoff := base
	for i := 1; i < attemptNumber; i++ {
		backoff *= 2
		if backoff >= max {
			return max
		}
	}
	if backoff > max {
		return max
	}
	return backoff
}

func escalationSummary(event ports.SLAEvent) string {
	if event.Status == ports.SLAEventResolved {
		return fmt.Sprintf("%s back to normal (%.1f vs threshold %.1f)", event.RuleKey, event.MetricValue, event.ThresholdValue)
	}
	return fmt.Sprintf("%s breached: %.1f vs threshold %.1f (severity %s)", event.RuleKey, event.MetricValue, event.ThresholdValue, event.Severity)
}
