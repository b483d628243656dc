package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// SLAEvent rows are immutable threshold crossings; only the delivery stamp
// changes after insert, deletion is refused outright.
type SLAEvent struct {
	EventID        uint64     `gorm:"column:event_id;primaryKey;autoIncrement"`
	EventUID       string     `gorm:"column:event_uid;type:text;not null;uniqueIndex"`
	RuleKey        string     `gorm:"column:rule_key;type:text;not null;index"`
	Status         string     `gorm:"column:status;type:text;not null"`
	Severity       string     `gorm:"column:severity;type:text;not null"`
	MetricValue    float64    `gorm:"column:metric_value;not null"`
	ThresholdValue float64    `gorm:"column:threshold_value;not null"`
	PayloadJSON    string     `gorm:"column:payload_json;type:text;not null"`
	Delivered      bool       `gorm:"column:delivered;not null;default:0;index"`
	DeliveredAt    *time.Time `gorm:"column:delivered_at;type:datetime"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:datetime;not null;index"`
}

func (SLAEvent) TableName() string {
	return "sla_automation_events"
}

func (SLAEvent) BeforeDelete(*gorm.DB) error {
	return errors.New("sla automation events are append-only")
}

type SLADeliveryAttempt struct {
	AttemptID           uint64    `gorm:"column:attempt_id;primaryKey;autoIncrement"`
	EventID             uint64    `gorm:"column:event_id;not null;index"`
	AttemptNumber       int       `gorm:"column:attempt_number;not null"`
	Status              string    `gorm:"column:status;type:text;not null"`
	Delivered           bool      `gorm:"column:delivered;not null"`
	ShouldRetry         bool      `gorm:"column:should_retry;not null"`
	RetryBackoffSeconds int       `gorm:"column:retry_backoff_seconds;not null"`
	Reason              string    `gorm:"column:reason;type:text;not null"`
	CreatedAt           time.Time `gorm:"column:created_at;type:datetime;not null"`
}

func (SLADeliveryAttempt) TableName() string {
	return "sla_delivery_attempts"
}

func (SLADeliveryAttempt) BeforeUpdate(*gorm.DB) error {
	return errors.New("sla delivery attempts are append-only")
}

func (SLADeliveryAttempt) BeforeDelete(*gorm.DB) error {
	return errors.New("sla delivery attempts are append-only")
}
