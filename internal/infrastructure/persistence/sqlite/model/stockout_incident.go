package model

import "time"

// StockoutIncident: one row per contiguous zero-ready window; the partial
// unique index keeps at most one active incident.
type StockoutIncident struct {
	IncidentID        uint64     `gorm:"column:incident_id;primaryKey;autoIncrement"`
	StartedAt         time.Time  `gorm:"column:started_at;type:datetime;not null"`
	EndedAt           *time.Time `gorm:"column:ended_at;type:datetime"`
	IsActive          bool       `gorm:"column:is_active;not null;index:ux_stockout_active,unique,where:is_active = 1"`
	DurationMinutes   *int       `gorm:"column:duration_minutes"`
	ReadyCountAtStart int        `gorm:"column:ready_count_at_start;not null"`
	ReadyCountAtEnd   *int       `gorm:"column:ready_count_at_end"`
	CreatedAt         time.Time  `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;type:datetime;not null"`
}

func (StockoutIncident) TableName() string {
	return "stockout_incidents"
}
