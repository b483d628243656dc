package ports

import (
	"context"
	"errors"
	"time"

	"fleetops/internal/domain/workflow"
)

var ErrTicketNotFound = errors.New("ticket not found")

type Ticket struct {
	TicketID        uint64
	InventoryItemID uint64
	MasterID        uint64
	TechnicianID    *uint64
	Status          workflow.TicketStatus
	FlagColor       workflow.FlagColor
	SRTTotalMinutes int
	AssignedAt      *time.Time
	StartedAt       *time.Time
	DoneAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TicketTransition is one append-only audit row per state-machine edge.
type TicketTransition struct {
	TransitionID uint64
	TicketID     uint64
	FromStatus   workflow.TicketStatus
	ToStatus     workflow.TicketStatus
	Action       workflow.TicketAction
	ActorID      uint64
	MetadataJSON string
	CreatedAt    time.Time
}

type TicketFilter struct {
	Statuses     []workflow.TicketStatus
	TechnicianID uint64
	ActiveOnly   bool
}

type TicketRepository interface {
	Create(ctx context.Context, ticket Ticket) (Ticket, error)
	Get(ctx context.Context, ticketID uint64) (Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]Ticket, error)
	// GetActiveByItem returns ErrTicketNotFound when the item has no ticket
	// in an active status.
	GetActiveByItem(ctx context.Context, itemID uint64) (Ticket, error)
	CountInProgressByTechnician(ctx context.Context, technicianID uint64) (int64, error)
	UpdateStatus(ctx context.Context, ticketID uint64, status workflow.TicketStatus, at time.Time) error
	MarkAssigned(ctx context.Context, ticketID uint64, technicianID uint64, at time.Time) error
	MarkStarted(ctx context.Context, ticketID uint64, at time.Time) error
	MarkDone(ctx context.Context, ticketID uint64, at time.Time) error
	AppendTransition(ctx context.Context, transition TicketTransition) error
	ListTransitions(ctx context.Context, ticketID uint64) ([]TicketTransition, error)
	// HasTransition answers "has this ticket ever taken this edge"; the
	// first-pass bonus check reads it before any QC-pass ledger posting.
	HasTransition(ctx context.Context, ticketID uint64, action workflow.TicketAction) (bool, error)
	CountActiveWithFlagAtLeast(ctx context.Context, flag workflow.FlagColor) (int64, error)
	// ListDoneBetween returns tickets whose done_at falls in [from, to).
	ListDoneBetween(ctx context.Context, from time.Time, to time.Time) ([]Ticket, error)
}
