package worksession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
	rulesuc "fleetops/internal/usecase/rules"
)

// Service is the per-ticket technician timer. A session accumulates
// active_seconds only while running; pausing draws down a daily per-technician
// budget reconstructed from the transition log, never from a counter that
// could drift.
type Service struct {
	sessions ports.WorkSessionRepository
	rules    *rulesuc.Service
	uow      ports.UnitOfWork
	loc      *time.Location
	now      func() time.Time
}

func NewService(sessions ports.WorkSessionRepository, rulesSvc *rulesuc.Service, uow ports.UnitOfWork, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		sessions: sessions,
		rules:    rulesSvc,
		uow:      uow,
		loc:      loc,
		now:      time.Now,
	}
}

type TimerInput struct {
	TicketID uint64
	ActorID  uint64
	// Origin labels where the command came from (cli, http, scheduler).
	Origin string
}

type PauseResult struct {
	Session             ports.WorkSession
	BudgetUsedSeconds   int64
	BudgetTotalSeconds  int64
	AutoResumedSessions []uint64
}

type ResumeResult struct {
	Session     ports.WorkSession
	AutoResumed bool
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.sessions == nil {
		return errors.New("work session repository is required")
	}
	if s.uow == nil {
		return errors.New("work session unit of work is required")
	}
	return nil
}

// OpenTx starts a running session for a ticket inside the caller's
// transaction. The partial unique indexes refuse a second open session per
// ticket or per technician.
func (s *Service) OpenTx(ctx context.Context, ticketID uint64, technicianID uint64, actorID uint64, origin string, at time.Time) (ports.WorkSession, error) {
	session, err := s.sessions.Create(ctx, ports.WorkSession{
		TicketID:      ticketID,
		TechnicianID:  technicianID,
		Status:        workflow.SessionRunning,
		StartedAt:     at,
		LastStartedAt: &at,
		CreatedAt:     at,
		UpdatedAt:     at,
	})
	if err != nil {
		return ports.WorkSession{}, errs.Wrap(err, "open work session")
	}

	if err := s.appendTransition(ctx, session, "", workflow.SessionRunning, workflow.SessionActionStart, actorID, origin, at, ""); err != nil {
		return ports.WorkSession{}, err
	}
	return session, nil
}

// Pause halts the running session of a ticket. The daily pause budget is
// checked first: an exhausted budget force-resumes any paused sessions the
// technician still holds and rejects the pause, so nobody sits over-budget
// mid-pause.
func (s *Service) Pause(ctx context.Context, input TimerInput) (PauseResult, error) {
	if err := s.guard(ctx); err != nil {
		return PauseResult{}, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return PauseResult{}, err
	}
	budget := time.Duration(active.Config.WorkSession.DailyPauseBudgetMinutes) * time.Minute

	var (
		result     PauseResult
		overBudget bool
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		session, err := s.openSessionByTicket(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		if _, err := workflow.NextSessionStatus(workflow.SessionActionPause, session.Status); err != nil {
			return err
		}

		now := s.now().UTC()
		used, err := s.pausedTodayTx(txCtx, session.TechnicianID, now)
		if err != nil {
			return err
		}
		result.BudgetUsedSeconds = int64(used.Seconds())
		result.BudgetTotalSeconds = int64(budget.Seconds())

		if used >= budget {
			// The forced resumes must survive the failed pause, so the
			// transaction commits and the rejection happens outside it.
			resumed, err := s.autoResumeTechnicianTx(txCtx, session.TechnicianID, input.ActorID, input.Origin, now)
			if err != nil {
				return err
			}
			result.AutoResumedSessions = resumed
			overBudget = true
			return nil
		}

		accrued := session.ActiveSeconds
		if session.LastStartedAt != nil {
			accrued += int64(now.Sub(*session.LastStartedAt).Seconds())
		}
		if err := s.sessions.UpdateTimer(txCtx, session.SessionID, ports.WorkSessionTimerUpdate{
			Status:        workflow.SessionPaused,
			ActiveSeconds: accrued,
		}, now); err != nil {
			return err
		}
		if err := s.appendTransition(txCtx, session, session.Status, workflow.SessionPaused, workflow.SessionActionPause, input.ActorID, input.Origin, now, ""); err != nil {
			return err
		}

		session.Status = workflow.SessionPaused
		session.LastStartedAt = nil
		session.ActiveSeconds = accrued
		result.Session = session
		return nil
	}); err != nil {
		return result, err
	}

	if overBudget {
		return result, workflow.Validationf(
			"daily pause budget of %d minutes is exhausted (%d minutes used)",
			active.Config.WorkSession.DailyPauseBudgetMinutes, result.BudgetUsedSeconds/60)
	}
	return result, nil
}

// Resume restarts a paused session. If the ongoing pause already blew the
// daily budget the edge is recorded as an auto-resume, since policy would
// have forced it regardless of who asked.
func (s *Service) Resume(ctx context.Context, input TimerInput) (ResumeResult, error) {
	if err := s.guard(ctx); err != nil {
		return ResumeResult{}, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return ResumeResult{}, err
	}
	budget := time.Duration(active.Config.WorkSession.DailyPauseBudgetMinutes) * time.Minute

	var result ResumeResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		session, err := s.openSessionByTicket(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		if _, err := workflow.NextSessionStatus(workflow.SessionActionResume, session.Status); err != nil {
			return err
		}

		now := s.now().UTC()
		used, err := s.pausedTodayTx(txCtx, session.TechnicianID, now)
		if err != nil {
			return err
		}

		action := workflow.SessionActionResume
		metadata := ""
		if used >= budget {
			action = workflow.SessionActionAutoResume
			metadata = fmt.Sprintf(`{"reason":"pause_budget_exhausted","used_seconds":%d}`, int64(used.Seconds()))
			result.AutoResumed = true
		}

		if err := s.sessions.UpdateTimer(txCtx, session.SessionID, ports.WorkSessionTimerUpdate{
			Status:        workflow.SessionRunning,
			LastStartedAt: &now,
			ActiveSeconds: session.ActiveSeconds,
		}, now); err != nil {
			return err
		}
		if err := s.appendTransition(txCtx, session, session.Status, workflow.SessionRunning, action, input.ActorID, input.Origin, now, metadata); err != nil {
			return err
		}

		session.Status = workflow.SessionRunning
		session.LastStartedAt = &now
		result.Session = session
		return nil
	}); err != nil {
		return ResumeResult{}, err
	}
	return result, nil
}

// Stop freezes the session. Legal from running or paused; active_seconds
// never moves again afterwards.
func (s *Service) Stop(ctx context.Context, input TimerInput) (ports.WorkSession, error) {
	if err := s.guard(ctx); err != nil {
		return ports.WorkSession{}, err
	}

	var stopped ports.WorkSession
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		session, err := s.StopByTicketTx(txCtx, input.TicketID, input.ActorID, input.Origin)
		if err != nil {
			return err
		}
		stopped = session
		return nil
	}); err != nil {
		return ports.WorkSession{}, err
	}

	logging.Info(ctx, "work session stopped",
		slog.Uint64("session_id", stopped.SessionID),
		slog.Uint64("ticket_id", stopped.TicketID),
		slog.Int64("active_seconds", stopped.ActiveSeconds))
	return stopped, nil
}

// StopByTicketTx stops the open session of a ticket inside the caller's
// transaction and returns the frozen session.
func (s *Service) StopByTicketTx(ctx context.Context, ticketID uint64, actorID uint64, origin string) (ports.WorkSession, error) {
	session, err := s.openSessionByTicket(ctx, ticketID)
	if err != nil {
		return ports.WorkSession{}, err
	}
	if _, err := workflow.NextSessionStatus(workflow.SessionActionStop, session.Status); err != nil {
		return ports.WorkSession{}, err
	}

	now := s.now().UTC()
	accrued := session.ActiveSeconds
	if session.Status == workflow.SessionRunning && session.LastStartedAt != nil {
		accrued += int64(now.Sub(*session.LastStartedAt).Seconds())
	}
	if err := s.sessions.UpdateTimer(ctx, session.SessionID, ports.WorkSessionTimerUpdate{
		Status:        workflow.SessionStopped,
		EndedAt:       &now,
		ActiveSeconds: accrued,
	}, now); err != nil {
		return ports.WorkSession{}, err
	}
	if err := s.appendTransition(ctx, session, session.Status, workflow.SessionStopped, workflow.SessionActionStop, actorID, origin, now, ""); err != nil {
		return ports.WorkSession{}, err
	}

	session.Status = workflow.SessionStopped
	session.EndedAt = &now
	session.LastStartedAt = nil
	session.ActiveSeconds = accrued
	return session, nil
}

// OpenByTicket resolves the running-or-paused session of a ticket.
func (s *Service) OpenByTicket(ctx context.Context, ticketID uint64) (ports.WorkSession, error) {
	if err := s.guard(ctx); err != nil {
		return ports.WorkSession{}, err
	}
	return s.openSessionByTicket(ctx, ticketID)
}

// History returns the chronological transition list of a ticket's sessions.
func (s *Service) History(ctx context.Context, ticketID uint64) ([]ports.WorkSessionTransition, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	transitions, err := s.sessions.ListTransitionsByTicket(ctx, ticketID)
	if err != nil {
		return nil, errs.Wrap(err, "list work session history")
	}
	return transitions, nil
}

// PausedToday reports how much of the technician's daily pause budget is
// already consumed.
func (s *Service) PausedToday(ctx context.Context, technicianID uint64) (time.Duration, error) {
	if err := s.guard(ctx); err != nil {
		return 0, err
	}
	return s.pausedTodayTx(ctx, technicianID, s.now().UTC())
}

func (s *Service) openSessionByTicket(ctx context.Context, ticketID uint64) (ports.WorkSession, error) {
	session, err := s.sessions.GetOpenByTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ports.ErrWorkSessionNotFound) {
			return ports.WorkSession{}, workflow.NotFoundf("ticket %d has no open work session", ticketID)
		}
		return ports.WorkSession{}, errs.Wrap(err, "load open work session")
	}
	return session, nil
}

// pausedTodayTx replays the day's transition log. Each session's paused
// intervals are bounded by its paused->running/stopped edges; a still-open
// pause accrues up to now.
func (s *Service) pausedTodayTx(ctx context.Context, technicianID uint64, now time.Time) (time.Duration, error) {
	dayStart, dayEnd := s.businessDayBounds(now)
	transitions, err := s.sessions.ListTransitionsForTechnicianBetween(ctx, technicianID, dayStart, dayEnd)
	if err != nil {
		return 0, errs.Wrap(err, "list work session transitions for pause budget")
	}

	var used time.Duration
	pausedSince := make(map[uint64]time.Time)
	for _, tr := range transitions {
		switch tr.ToStatus {
		case workflow.SessionPaused:
			pausedSince[tr.SessionID] = tr.EventAt
		case workflow.SessionRunning, workflow.SessionStopped:
			if since, ok := pausedSince[tr.SessionID]; ok {
				used += tr.EventAt.Sub(since)
				delete(pausedSince, tr.SessionID)
			}
		}
	}
	for _, since := range pausedSince {
		used += now.Sub(since)
	}
	return used, nil
}

func (s *Service) autoResumeTechnicianTx(ctx context.Context, technicianID uint64, actorID uint64, origin string, now time.Time) ([]uint64, error) {
	paused, err := s.sessions.ListPausedByTechnician(ctx, technicianID)
	if err != nil {
		return nil, errs.Wrap(err, "list paused sessions for auto-resume")
	}

	var resumed []uint64
	for _, session := range paused {
		if err := s.sessions.UpdateTimer(ctx, session.SessionID, ports.WorkSessionTimerUpdate{
			Status:        workflow.SessionRunning,
			LastStartedAt: &now,
			ActiveSeconds: session.ActiveSeconds,
		}, now); err != nil {
			return nil, err
		}
		if err := s.appendTransition(ctx, session, session.Status, workflow.SessionRunning, workflow.SessionActionAutoResume, actorID, origin, now, `{"reason":"pause_budget_exhausted"}`); err != nil {
			return nil, err
		}
		resumed = append(resumed, session.SessionID)
	}
	return resumed, nil
}

func (s *Service) appendTransition(ctx context.Context, session ports.WorkSession, from workflow.SessionStatus, to workflow.SessionStatus, action workflow.SessionAction, actorID uint64, origin string, at time.Time, metadata string) error {
	if metadata == "" {
		metadata = fmt.Sprintf(`{"origin":%q}`, originOrDefault(origin))
	}
	if err := s.sessions.AppendTransition(ctx, ports.WorkSessionTransition{
		SessionID:    session.SessionID,
		TicketID:     session.TicketID,
		TechnicianID: session.TechnicianID,
		FromStatus:   from,
		ToStatus:     to,
		Action:       action,
		ActorID:      actorID,
		EventAt:      at,
		MetadataJSON: metadata,
		CreatedAt:    at,
	}); err != nil {
		return errs.Wrap(err, "append work session transition")
	}
	return nil
}

// businessDayBounds returns the UTC instants of local midnight today and
// tomorrow in the business timezone.
func (s *Service) businessDayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

func originOrDefault(origin string) string {
	if origin == "" {
		return "api"
	}
	return origin
}
