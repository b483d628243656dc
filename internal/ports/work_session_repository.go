package ports

import (
	"context"
	"errors"
	"time"

	"fleetops/internal/domain/workflow"
)

var ErrWorkSessionNotFound = errors.New("work session not found")

type WorkSession struct {
	SessionID     uint64
	TicketID      uint64
	TechnicianID  uint64
	Status        workflow.SessionStatus
	StartedAt     time.Time
	LastStartedAt *time.Time
	EndedAt       *time.Time
	ActiveSeconds int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WorkSessionTimerUpdate carries the fields a single timer edge may change.
type WorkSessionTimerUpdate struct {
	Status        workflow.SessionStatus
	LastStartedAt *time.Time
	EndedAt       *time.Time
	ActiveSeconds int64
}

// WorkSessionTransition is one append-only audit row per timer edge.
// EventAt orders history; CreatedAt is the insert time.
type WorkSessionTransition struct {
	TransitionID uint64
	SessionID    uint64
	TicketID     uint64
	TechnicianID uint64
	FromStatus   workflow.SessionStatus
	ToStatus     workflow.SessionStatus
	Action       workflow.SessionAction
	ActorID      uint64
	EventAt      time.Time
	MetadataJSON string
	CreatedAt    time.Time
}

type WorkSessionRepository interface {
	Create(ctx context.Context, session WorkSession) (WorkSession, error)
	Get(ctx context.Context, sessionID uint64) (WorkSession, error)
	// GetOpenByTicket returns the running-or-paused session of a ticket,
	// ErrWorkSessionNotFound if none is open.
	GetOpenByTicket(ctx context.Context, ticketID uint64) (WorkSession, error)
	GetOpenByTechnician(ctx context.Context, technicianID uint64) (WorkSession, error)
	ListPausedByTechnician(ctx context.Context, technicianID uint64) ([]WorkSession, error)
	UpdateTimer(ctx context.Context, sessionID uint64, update WorkSessionTimerUpdate, at time.Time) error
	AppendTransition(ctx context.Context, transition WorkSessionTransition) error
	ListTransitionsByTicket(ctx context.Context, ticketID uint64) ([]WorkSessionTransition, error)
	// ListTransitionsForTechnicianBetween returns transitions with event_at
	// in [from, to) ordered by event_at; pause-budget accounting replays
	// them to reconstruct paused intervals for the business day.
	ListTransitionsForTechnicianBetween(ctx context.Context, technicianID uint64, from time.Time, to time.Time) ([]WorkSessionTransition, error)
}
