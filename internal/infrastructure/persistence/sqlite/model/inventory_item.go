package model

import (
	"time"

	"gorm.io/gorm"
)

type InventoryItem struct {
	ItemID    uint64         `gorm:"column:item_id;primaryKey;autoIncrement"`
	Code      string         `gorm:"column:code;type:text;not null;uniqueIndex"`
	Name      string         `gorm:"column:name;type:text;not null"`
	Status    string         `gorm:"column:status;type:text;not null;index"`
	CreatedAt time.Time      `gorm:"column:created_at;type:datetime;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:datetime;not null"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}
