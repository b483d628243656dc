package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

type WorkSessionRepository struct {
	db *gorm.DB
}

var _ ports.WorkSessionRepository = (*WorkSessionRepository)(nil)

func NewWorkSessionRepository(db *gorm.DB) *WorkSessionRepository {
	return &WorkSessionRepository{db: db}
}

func (r *WorkSessionRepository) Create(ctx context.Context, session ports.WorkSession) (ports.WorkSession, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.WorkSession{}, err
	}

	row := model.WorkSession{
		TicketID:      session.TicketID,
		TechnicianID:  session.TechnicianID,
		Status:        string(session.Status),
		StartedAt:     session.StartedAt,
		LastStartedAt: session.LastStartedAt,
		EndedAt:       session.EndedAt,
		ActiveSeconds: session.ActiveSeconds,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.WorkSession{}, errs.Wrap(err, "insert work session")
	}
	return mapWorkSession(row), nil
}

func (r *WorkSessionRepository) Get(ctx context.Context, sessionID uint64) (ports.WorkSession, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.WorkSession{}, err
	}

	var row model.WorkSession
	if err := db.Where("session_id = ?", sessionID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.WorkSession{}, ports.ErrWorkSessionNotFound
		}
		return ports.WorkSession{}, errs.Wrap(err, "query work session")
	}
	return mapWorkSession(row), nil
}

func (r *WorkSessionRepository) GetOpenByTicket(ctx context.Context, ticketID uint64) (ports.WorkSession, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.WorkSession{}, err
	}

	var row model.WorkSession
	if err := db.
		Where("ticket_id = ?", ticketID).
		Where("status IN ?", openSessionStatuses()).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.WorkSession{}, ports.ErrWorkSessionNotFound
		}
		return ports.WorkSession{}, errs.Wrap(err, "query open session by ticket")
	}
	return mapWorkSession(row), nil
}

func (r *WorkSessionRepository) GetOpenByTechnician(ctx context.Context, technicianID uint64) (ports.WorkSession, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.WorkSession{}, err
	}

	var row model.WorkSession
	if err := db.
		Where("technician_id = ?", technicianID).
		Where("status IN ?", openSessionStatuses()).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.WorkSession{}, ports.ErrWorkSessionNotFound
		}
		return ports.WorkSession{}, errs.Wrap(err, "query open session by technician")
	}
	return mapWorkSession(row), nil
}

func (r *WorkSessionRepository) ListPausedByTechnician(ctx context.Context, technicianID uint64) ([]ports.WorkSession, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.WorkSession
	if err := db.
		Where("technician_id = ?", technicianID).
		Where("status = ?", string(workflow.SessionPaused)).
		Order("session_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query paused sessions")
	}

	items := make([]ports.WorkSession, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapWorkSession(row))
	}
	return items, nil
}

func (r *WorkSessionRepository) UpdateTimer(ctx context.Context, sessionID uint64, update ports.WorkSessionTimerUpdate, at time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.WorkSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":          string(update.Status),
			"last_started_at": update.LastStartedAt,
			"ended_at":        update.EndedAt,
			"active_seconds":  update.ActiveSeconds,
			"updated_at":      touchTime(at),
		}).Error; err != nil {
		return errs.Wrap(err, "update work session timer")
	}
	return nil
}

func (r *WorkSessionRepository) AppendTransition(ctx context.Context, transition ports.WorkSessionTransition) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.WorkSessionTransition{
		SessionID:    transition.SessionID,
		TicketID:     transition.TicketID,
		TechnicianID: transition.TechnicianID,
		FromStatus:   string(transition.FromStatus),
		ToStatus:     string(transition.ToStatus),
		Action:       string(transition.Action),
		ActorID:      transition.ActorID,
		EventAt:      transition.EventAt,
		MetadataJSON: transition.MetadataJSON,
		CreatedAt:    transition.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert work session transition")
	}
	return nil
}

func (r *WorkSessionRepository) ListTransitionsByTicket(ctx context.Context, ticketID uint64) ([]ports.WorkSessionTransition, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.WorkSessionTransition
	if err := db.
		Where("ticket_id = ?", ticketID).
		Order("event_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query session transitions by ticket")
	}
	return mapSessionTransitions(rows), nil
}

func (r *WorkSessionRepository) ListTransitionsForTechnicianBetween(ctx context.Context, technicianID uint64, from time.Time, to time.Time) ([]ports.WorkSessionTransition, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.WorkSessionTransition
	if err := db.
		Where("technician_id = ?", technicianID).
		Where("event_at >= ? AND event_at < ?", from, to).
		Order("event_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query session transitions by technician")
	}
	return mapSessionTransitions(rows), nil
}

func mapWorkSession(row model.WorkSession) ports.WorkSession {
	return ports.WorkSession{
		SessionID:     row.SessionID,
		TicketID:      row.TicketID,
		TechnicianID:  row.TechnicianID,
		Status:        workflow.SessionStatus(row.Status),
		StartedAt:     row.StartedAt,
		LastStartedAt: row.LastStartedAt,
		EndedAt:       row.EndedAt,
		ActiveSeconds: row.ActiveSeconds,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func mapSessionTransitions(rows []model.WorkSessionTransition) []ports.WorkSessionTransition {
	items := make([]ports.WorkSessionTransition, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.WorkSessionTransition{
			TransitionID: row.TransitionID,
			SessionID:    row.SessionID,
			TicketID:     row.TicketID,
			TechnicianID: row.TechnicianID,
			FromStatus:   workflow.SessionStatus(row.FromStatus),
			ToStatus:     workflow.SessionStatus(row.ToStatus),
			Action:       workflow.SessionAction(row.Action),
			ActorID:      row.ActorID,
			EventAt:      row.EventAt,
			MetadataJSON: row.MetadataJSON,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items
}

func openSessionStatuses() []string {
	return []string{string(workflow.SessionRunning), string(workflow.SessionPaused)}
}
