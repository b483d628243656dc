package sla

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/rules"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

// Stockout sync outcomes.
const (
	StockoutStarted        = "started"
	StockoutResolved       = "resolved"
	StockoutNoChangeIdle   = "no_change_idle"
	StockoutNoChangeActive = "no_change_active"
)

type StockoutSyncResult struct {
	Outcome    string
	ReadyCount int64
	Incident   *ports.StockoutIncident
}

// DetectAndSync compares the current ready-fleet count against the open
// incident. An incident opens only inside the business window; it resolves
// whenever the fleet recovers, window or not.
func (s *Service) DetectAndSync(ctx context.Context) (StockoutSyncResult, error) {
	if err := s.guard(ctx); err != nil {
		return StockoutSyncResult{}, err
	}
	if s.stockout == nil {
		return StockoutSyncResult{}, errors.New("stockout repository is required")
	}
	if s.fleet == nil {
		return StockoutSyncResult{}, errors.New("fleet repository is required")
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return StockoutSyncResult{}, err
	}
	now := s.now().UTC()
	inWindow, err := s.inBusinessWindow(active.Config.Stockout, now)
	if err != nil {
		return StockoutSyncResult{}, err
	}

	var result StockoutSyncResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		ready, err := s.fleet.CountReady(txCtx)
		if err != nil {
			return errs.Wrap(err, "count ready fleet")
		}
		result.ReadyCount = ready

		open, err := s.stockout.GetOpen(txCtx)
		hasOpen := err == nil
		if err != nil && !errors.Is(err, ports.ErrStockoutIncidentNotFound) {
			return errs.Wrap(err, "load open stockout incident")
		}

		switch {
		case ready == 0 && !hasOpen && inWindow:
			incident, err := s.stockout.Open(txCtx, ports.StockoutIncident{
				StartedAt:         now,
				ReadyCountAtStart: 0,
				CreatedAt:         now,
				UpdatedAt:         now,
			})
			if err != nil {
				return err
			}
			result.Outcome = StockoutStarted
			result.Incident = &incident

		case ready > 0 && hasOpen:
			duration := int(now.Sub(open.StartedAt).Minutes())
			if err := s.stockout.Close(txCtx, open.IncidentID, now, duration, int(ready)); err != nil {
				return err
			}
			open.IsActive = false
			open.EndedAt = &now
			open.DurationMinutes = &duration
			readyAtEnd := int(ready)
			open.ReadyCountAtEnd = &readyAtEnd
			result.Outcome = StockoutResolved
			result.Incident = &open

		case hasOpen:
			result.Outcome = StockoutNoChangeActive
			result.Incident = &open

		default:
			result.Outcome = StockoutNoChangeIdle
		}
		return nil
	}); err != nil {
		return StockoutSyncResult{}, err
	}

	if result.Outcome == StockoutStarted || result.Outcome == StockoutResolved {
		logging.Info(ctx, "stockout incident sync",
			slog.String("outcome", result.Outcome),
			slog.Int64("ready_count", result.ReadyCount))
	}
	return result, nil
}

func (s *Service) inBusinessWindow(cfg rules.StockoutRules, now time.Time) (bool, error) {
	start, err := rules.ParseHHMM(cfg.BusinessWindowStart)
	if err != nil {
		return false, errs.Wrap(err, "parse business window start")
	}
	end, err := rules.ParseHHMM(cfg.BusinessWindowEnd)
	if err != nil {
		return false, errs.Wrap(err, "parse business window end")
	}

	local := now.In(s.loc)
	minuteOfDay := local.Hour()*60 + local.Minute()
	return minuteOfDay >= start && minuteOfDay < end, nil
}
