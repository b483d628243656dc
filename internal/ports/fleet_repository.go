package ports

import (
	"context"
	"errors"
)

var ErrInventoryItemNotFound = errors.New("inventory item not found")

const (
	ItemStatusReady    = "ready"
	ItemStatusInRepair = "in_repair"
	ItemStatusRetired  = "retired"
)

type InventoryItem struct {
	ItemID uint64
	Code   string
	Name   string
	Status string
}

type FleetRepository interface {
	GetItem(ctx context.Context, itemID uint64) (InventoryItem, error)
	GetItemByCode(ctx context.Context, code string) (InventoryItem, error)
	CreateItem(ctx context.Context, item InventoryItem) (InventoryItem, error)
	SetItemStatus(ctx context.Context, itemID uint64, status string) error
	// CountReady is the fleet ready-count the stockout detector samples.
	CountReady(ctx context.Context) (int64, error)
}
