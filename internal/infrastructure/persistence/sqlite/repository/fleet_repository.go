package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

type FleetRepository struct {
	db *gorm.DB
}

var _ ports.FleetRepository = (*FleetRepository)(nil)

func NewFleetRepository(db *gorm.DB) *FleetRepository {
	return &FleetRepository{db: db}
}

func (r *FleetRepository) GetItem(ctx context.Context, itemID uint64) (ports.InventoryItem, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.InventoryItem{}, err
	}

	var row model.InventoryItem
	if err := db.Where("item_id = ?", itemID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.InventoryItem{}, ports.ErrInventoryItemNotFound
		}
		return ports.InventoryItem{}, errs.Wrap(err, "query inventory item")
	}
	return mapInventoryItem(row), nil
}

func (r *FleetRepository) GetItemByCode(ctx context.Context, code string) (ports.InventoryItem, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.InventoryItem{}, err
	}

	var row model.InventoryItem
	if err := db.Where("code = ?", code).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.InventoryItem{}, ports.ErrInventoryItemNotFound
		}
		return ports.InventoryItem{}, errs.Wrap(err, "query inventory item by code")
	}
	return mapInventoryItem(row), nil
}

func (r *FleetRepository) CreateItem(ctx context.Context, item ports.InventoryItem) (ports.InventoryItem, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.InventoryItem{}, err
	}

	now := time.Now().UTC()
	row := model.InventoryItem{
		Code:      item.Code,
		Name:      item.Name,
		Status:    item.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.InventoryItem{}, errs.Wrap(err, "insert inventory item")
	}
	return mapInventoryItem(row), nil
}

func (r *FleetRepository) SetItemStatus(ctx context.Context, itemID uint64, status string) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.InventoryItem{}).
		Where("item_id = ?", itemID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
		return errs.Wrap(err, "update inventory item status")
	}
	return nil
}

func (r *FleetRepository) CountReady(ctx context.Context) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.InventoryItem{}).
		Where("status = ?", ports.ItemStatusReady).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count ready inventory")
	}
	return count, nil
}

func mapInventoryItem(row model.InventoryItem) ports.InventoryItem {
	return ports.InventoryItem{
		ItemID: row.ItemID,
		Code:   row.Code,
		Name:   row.Name,
		Status: row.Status,
	}
}
