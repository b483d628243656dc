package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSLAEventNotFound         = errors.New("sla automation event not found")
	ErrStockoutIncidentNotFound = errors.New("stockout incident not found")
)

const (
	SLAEventTriggered = "triggered"
	SLAEventResolved  = "resolved"
)

// SLAEvent is one immutable threshold crossing.
type SLAEvent struct {
	EventID        uint64
	EventUID       string
	RuleKey        string
	Status         string
	Severity       string
	MetricValue    float64
	ThresholdValue float64
	PayloadJSON    string
	Delivered      bool
	DeliveredAt    *time.Time
	CreatedAt      time.Time
}

// SLADeliveryAttempt records one escalation delivery try for an event.
type SLADeliveryAttempt struct {
	AttemptID           uint64
	EventID             uint64
	AttemptNumber       int
	Status              string
	Delivered           bool
	ShouldRetry         bool
	RetryBackoffSeconds int
	Reason              string
	CreatedAt           time.Time
}

type SLARepository interface {
	AppendEvent(ctx context.Context, event SLAEvent) (SLAEvent, error)
	GetEvent(ctx context.Context, eventID uint64) (SLAEvent, error)
	// LatestEventByRule returns ErrSLAEventNotFound when the rule never fired.
	LatestEventByRule(ctx context.Context, ruleKey string) (SLAEvent, error)
	ListUndelivered(ctx context.Context, limit int) ([]SLAEvent, error)
	MarkDelivered(ctx context.Context, eventID uint64, at time.Time) error
	CountAttempts(ctx context.Context, eventID uint64) (int64, error)
	AppendAttempt(ctx context.Context, attempt SLADeliveryAttempt) error
	ListAttempts(ctx context.Context, eventID uint64) ([]SLADeliveryAttempt, error)
	ListEvents(ctx context.Context, limit int) ([]SLAEvent, error)
}

// StockoutIncident is one contiguous zero-ready window during business hours.
type StockoutIncident struct {
	IncidentID        uint64
	StartedAt         time.Time
	EndedAt           *time.Time
	IsActive          bool
	DurationMinutes   *int
	ReadyCountAtStart int
	ReadyCountAtEnd   *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type StockoutRepository interface {
	// GetOpen returns the single active incident, ErrStockoutIncidentNotFound
	// if the fleet is not stocked out.
	GetOpen(ctx context.Context) (StockoutIncident, error)
	Open(ctx context.Context, incident StockoutIncident) (StockoutIncident, error)
	Close(ctx context.Context, incidentID uint64, endedAt time.Time, durationMinutes int, readyCountAtEnd int) error
	List(ctx context.Context, limit int) ([]StockoutIncident, error)
}
