package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// LedgerEntry is append-only; the unique reference is the idempotency key
// enforcing at-most-one posting per logical event.
type LedgerEntry struct {
	EntryID     uint64    `gorm:"column:entry_id;primaryKey;autoIncrement"`
	UserID      uint64    `gorm:"column:user_id;not null;index"`
	Amount      int       `gorm:"column:amount;not null"`
	EntryType   string    `gorm:"column:entry_type;type:text;not null;index"`
	Reference   string    `gorm:"column:reference;type:text;not null;uniqueIndex"`
	Description string    `gorm:"column:description;type:text;not null"`
	PayloadJSON string    `gorm:"column:payload_json;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:datetime;not null;index"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

func (LedgerEntry) BeforeUpdate(*gorm.DB) error {
	return errors.New("ledger entries are append-only")
}

func (LedgerEntry) BeforeDelete(*gorm.DB) error {
	return errors.New("ledger entries are append-only")
}
