package ports

import (
	"context"
	"errors"
	"time"
)

var ErrLedgerEntryNotFound = errors.New("ledger entry not found")

// LedgerEntry is one append-only XP posting. Reference is the global
// idempotency key: at most one row per logical event.
type LedgerEntry struct {
	EntryID     uint64
	UserID      uint64
	Amount      int
	EntryType   string
	Reference   string
	Description string
	PayloadJSON string
	CreatedAt   time.Time
}

// UserXPTotal is a per-user aggregation over a time window.
type UserXPTotal struct {
	UserID  uint64
	TotalXP int64
}

type LedgerRepository interface {
	// Insert appends the entry unless its reference already exists; the
	// created flag is false for a duplicate reference.
	Insert(ctx context.Context, entry LedgerEntry) (bool, error)
	GetByReference(ctx context.Context, reference string) (LedgerEntry, error)
	ListForUser(ctx context.Context, userID uint64, limit int) ([]LedgerEntry, error)
	// SumPerUserBetween aggregates amounts for created_at in [from, to).
	SumPerUserBetween(ctx context.Context, from time.Time, to time.Time) ([]UserXPTotal, error)
}
