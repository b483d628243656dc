package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

type LedgerRepository struct {
	db *gorm.DB
}

var _ ports.LedgerRepository = (*LedgerRepository)(nil)

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Insert appends the entry; a duplicate reference is a silent no-op and
// reports created=false. This is the idempotency contract every caller
// relies on under retries.
func (r *LedgerRepository) Insert(ctx context.Context, entry ports.LedgerEntry) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	row := model.LedgerEntry{
		UserID:      entry.UserID,
		Amount:      entry.Amount,
		EntryType:   entry.EntryType,
		Reference:   entry.Reference,
		Description: entry.Description,
		PayloadJSON: entry.PayloadJSON,
		CreatedAt:   entry.CreatedAt,
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reference"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert ledger entry")
	}
	return result.RowsAffected > 0, nil
}

func (r *LedgerRepository) GetByReference(ctx context.Context, reference string) (ports.LedgerEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.LedgerEntry{}, err
	}

	var row model.LedgerEntry
	if err := db.Where("reference = ?", reference).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.LedgerEntry{}, ports.ErrLedgerEntryNotFound
		}
		return ports.LedgerEntry{}, errs.Wrap(err, "query ledger entry by reference")
	}
	return mapLedgerEntry(row), nil
}

func (r *LedgerRepository) ListForUser(ctx context.Context, userID uint64, limit int) ([]ports.LedgerEntry, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.LedgerEntry{}).Where("user_id = ?", userID).Order("entry_id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.LedgerEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query ledger entries")
	}

	items := make([]ports.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapLedgerEntry(row))
	}
	return items, nil
}

func (r *LedgerRepository) SumPerUserBetween(ctx context.Context, from time.Time, to time.Time) ([]ports.UserXPTotal, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var totals []ports.UserXPTotal
	if err := db.Model(&model.LedgerEntry{}).
		Select("user_id, sum(amount) as total_xp").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("user_id").
		Order("user_id asc").
		Scan(&totals).Error; err != nil {
		return nil, errs.Wrap(err, "sum ledger per user")
	}
	return totals, nil
}

func mapLedgerEntry(row model.LedgerEntry) ports.LedgerEntry {
	return ports.LedgerEntry{
		EntryID:     row.EntryID,
		UserID:      row.UserID,
		Amount:      row.Amount,
		EntryType:   row.EntryType,
		Reference:   row.Reference,
		Description: row.Description,
		PayloadJSON: row.PayloadJSON,
		CreatedAt:   row.CreatedAt,
	}
}
