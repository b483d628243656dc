package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Ticket carries two storage-enforced concurrency contracts: at most one
// active-status ticket per inventory item, and at most one in_progress
// ticket per technician (WIP=1). Both live in partial unique indexes so a
// losing concurrent writer fails on insert/update, not on a stale read.
type Ticket struct {
	TicketID        uint64         `gorm:"column:ticket_id;primaryKey;autoIncrement"`
	InventoryItemID uint64         `gorm:"column:inventory_item_id;not null;index:ux_ticket_item_active,unique,where:deleted_at IS NULL AND (status = 'under_review' OR status = 'new' OR status = 'assigned' OR status = 'in_progress' OR status = 'waiting_qc' OR status = 'rework')"`
	MasterID        uint64         `gorm:"column:master_id;not null"`
	TechnicianID    *uint64        `gorm:"column:technician_id;index:ux_ticket_tech_wip,unique,where:deleted_at IS NULL AND status = 'in_progress'"`
	Status          string         `gorm:"column:status;type:text;not null;index"`
	FlagColor       string         `gorm:"column:flag_color;type:text;not null"`
	SRTTotalMinutes int            `gorm:"column:srt_total_minutes;not null"`
	AssignedAt      *time.Time     `gorm:"column:assigned_at;type:datetime"`
	StartedAt       *time.Time     `gorm:"column:started_at;type:datetime"`
	DoneAt          *time.Time     `gorm:"column:done_at;type:datetime;index"`
	CreatedAt       time.Time      `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;type:datetime;not null"`
	DeletedAt       gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// TicketTransition is the append-only audit log; one row per edge, the
// single source of truth for "has this ticket ever failed QC".
type TicketTransition struct {
	TransitionID uint64    `gorm:"column:transition_id;primaryKey;autoIncrement"`
	TicketID     uint64    `gorm:"column:ticket_id;not null;index"`
	FromStatus   string    `gorm:"column:from_status;type:text;not null"`
	ToStatus     string    `gorm:"column:to_status;type:text;not null"`
	Action       string    `gorm:"column:action;type:text;not null;index"`
	ActorID      uint64    `gorm:"column:actor_id;not null"`
	MetadataJSON string    `gorm:"column:metadata_json;type:text;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;type:datetime;not null"`
}

func (TicketTransition) TableName() string {
	return "ticket_transitions"
}

func (TicketTransition) BeforeUpdate(*gorm.DB) error {
	return errors.New("ticket transitions are append-only")
}

func (TicketTransition) BeforeDelete(*gorm.DB) error {
	return errors.New("ticket transitions are append-only")
}
