package scheduler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"

	"fleetops/internal/bootstrap/config"
	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/errs"
	"fleetops/internal/usecase/sla"
)

// deliveryBatchSize bounds one retry sweep so a backlog of failed
// escalations cannot monopolize a tick.
const deliveryBatchSize = 50

// Scheduler drives the background loops: SLA evaluation, stockout incident
// sync and escalation delivery retries. Job panics or errors are logged and
// never crash the process.
type Scheduler struct {
	cron *cron.Cron
	cfg  config.SchedulerConfig
	sla  *sla.Service
}

func New(cfg config.SchedulerConfig, slaSvc *sla.Service) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		cfg:  cfg,
		sla:  slaSvc,
	}
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.sla == nil {
		return errors.New("sla service is required")
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"sla_evaluate", s.cfg.SLAEvaluateCron, s.runEvaluate},
		{"stockout_sync", s.cfg.StockoutSyncCron, s.runStockoutSync},
		{"delivery_retry", s.cfg.DeliveryRetryCron, s.runDeliveryRetry},
	}
	for _, job := range jobs {
		job := job
		jobCtx := logging.WithAttrs(ctx, slog.String("job", job.name))
		if _, err := s.cron.AddFunc(job.spec, func() {
			if err := job.run(jobCtx); err != nil {
				logging.Error(jobCtx, "scheduled job failed", slog.Any("error", err))
			}
		}); err != nil {
			return errs.Wrapf(err, "register job %s", job.name)
		}
	}

	s.cron.Start()
	logging.Info(ctx, "scheduler started",
		slog.String("sla_evaluate", s.cfg.SLAEvaluateCron),
		slog.String("stockout_sync", s.cfg.StockoutSyncCron),
		slog.String("delivery_retry", s.cfg.DeliveryRetryCron))
	return nil
}

// Stop halts the loop and waits for running jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

func (s *Scheduler) runEvaluate(ctx context.Context) error {
	decisions, err := s.sla.EvaluateAndAct(ctx)
	if err != nil {
		return err
	}
	for _, decision := range decisions {
		if decision.Outcome == "none" {
			continue
		}
		logging.Info(ctx, "sla rule decision",
			slog.String("rule_key", decision.RuleKey),
			slog.String("outcome", decision.Outcome),
			slog.Float64("metric", decision.Metric),
			slog.Float64("threshold", decision.Threshold))
	}

	// Newly recorded events go out on the same tick; failures are retried by
	// the delivery job.
	_, err = s.sla.DeliverPending(ctx, deliveryBatchSize)
	return err
}

func (s *Scheduler) runStockoutSync(ctx context.Context) error {
	_, err := s.sla.DetectAndSync(ctx)
	return err
}

func (s *Scheduler) runDeliveryRetry(ctx context.Context) error {
	_, err := s.sla.DeliverPending(ctx, deliveryBatchSize)
	return err
}
