package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// WorkSession is the per-ticket technician timer. Partial unique indexes
// keep at most one open (running/paused) session per ticket and per
// technician.
type WorkSession struct {
	SessionID     uint64     `gorm:"column:session_id;primaryKey;autoIncrement"`
	TicketID      uint64     `gorm:"column:ticket_id;not null;index:ux_session_ticket_open,unique,where:(status = 'running' OR status = 'paused')"`
	TechnicianID  uint64     `gorm:"column:technician_id;not null;index:ux_session_tech_open,unique,where:(status = 'running' OR status = 'paused')"`
	Status        string     `gorm:"column:status;type:text;not null;index"`
	StartedAt     time.Time  `gorm:"column:started_at;type:datetime;not null"`
	LastStartedAt *time.Time `gorm:"column:last_started_at;type:datetime"`
	EndedAt       *time.Time `gorm:"column:ended_at;type:datetime"`
	ActiveSeconds int64      `gorm:"column:active_seconds;not null;default:0"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:datetime;not null"`
}

func (WorkSession) TableName() string {
	return "work_sessions"
}

// WorkSessionTransition orders history by event_at, not created_at.
type WorkSessionTransition struct {
	TransitionID uint64    `gorm:"column:transition_id;primaryKey;autoIncrement"`
	SessionID    uint64    `gorm:"column:session_id;not null;index"`
	TicketID     uint64    `gorm:"column:ticket_id;not null;index"`
	TechnicianID uint64    `gorm:"column:technician_id;not null;index:idx_ws_transition_tech_event,priority:1"`
	FromStatus   string    `gorm:"column:from_status;type:text;not null"`
	ToStatus     string    `gorm:"column:to_status;type:text;not null"`
	Action       string    `gorm:"column:action;type:text;not null"`
	ActorID      uint64    `gorm:"column:actor_id;not null"`
	EventAt      time.Time `gorm:"column:event_at;type:datetime;not null;index:idx_ws_transition_tech_event,priority:2"`
	MetadataJSON string    `gorm:"column:metadata_json;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:datetime;not null"`
}

func (WorkSessionTransition) TableName() string {
	return "work_session_transitions"
}

func (WorkSessionTransition) BeforeUpdate(*gorm.DB) error {
	return errors.New("work session transitions are append-only")
}

func (WorkSessionTransition) BeforeDelete(*gorm.DB) error {
	return errors.New("work session transitions are append-only")
}
