package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"fleetops/internal/ports"
)

// dbFromContext prefers the ambient transaction handle so repository calls
// inside a unit of work share one sqlite transaction.
func dbFromContext(ctx context.Context, base *gorm.DB) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return base.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}
