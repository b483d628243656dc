package model

import "time"

// RulesKV backs the rules-snapshot cache (write-through invalidation).
type RulesKV struct {
	Key       string    `gorm:"column:key;type:text;primaryKey"`
	Value     string    `gorm:"column:value;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:datetime;not null"`
}

func (RulesKV) TableName() string {
	return "rules_kv"
}
