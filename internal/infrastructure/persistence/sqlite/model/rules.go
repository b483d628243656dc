package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// RulesVersion rows are append-only; history is never rewritten, the state
// pointer is repointed instead.
type RulesVersion struct {
	Version       int       `gorm:"column:version;primaryKey;autoIncrement:false"`
	Action        string    `gorm:"column:action;type:text;not null"`
	ConfigJSON    string    `gorm:"column:config_json;type:text;not null"`
	DiffJSON      string    `gorm:"column:diff_json;type:text;not null"`
	Checksum      string    `gorm:"column:checksum;type:text;not null"`
	Reason        string    `gorm:"column:reason;type:text;not null"`
	CreatedBy     *string   `gorm:"column:created_by;type:text"`
	SourceVersion *int      `gorm:"column:source_version"`
	CreatedAt     time.Time `gorm:"column:created_at;type:datetime;not null"`
}

func (RulesVersion) TableName() string {
	return "rules_versions"
}

func (RulesVersion) BeforeUpdate(*gorm.DB) error {
	return errors.New("rules versions are append-only")
}

func (RulesVersion) BeforeDelete(*gorm.DB) error {
	return errors.New("rules versions are append-only")
}

// RulesState is the singleton active-version pointer; exactly one row exists.
type RulesState struct {
	StateID       uint64    `gorm:"column:state_id;primaryKey"`
	ActiveVersion int       `gorm:"column:active_version;not null"`
	CacheKey      string    `gorm:"column:cache_key;type:text;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:datetime;not null"`
}

func (RulesState) TableName() string {
	return "rules_state"
}
