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

type SLARepository struct {
	db *gorm.DB
}

var _ ports.SLARepository = (*SLARepository)(nil)

func NewSLARepository(db *gorm.DB) *SLARepository {
	return &SLARepository{db: db}
}

func (r *SLARepository) AppendEvent(ctx context.Context, event ports.SLAEvent) (ports.SLAEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.SLAEvent{}, err
	}

	row := model.SLAEvent{
		EventUID:       event.EventUID,
		RuleKey:        event.RuleKey,
		Status:         event.Status,
		Severity:       event.Severity,
		MetricValue:    event.MetricValue,
		ThresholdValue: event.ThresholdValue,
		PayloadJSON:    event.PayloadJSON,
		Delivered:      event.Delivered,
		DeliveredAt:    event.DeliveredAt,
		CreatedAt:      event.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.SLAEvent{}, errs.Wrap(err, "insert sla automation event")
	}
	return mapSLAEvent(row), nil
}

func (r *SLARepository) GetEvent(ctx context.Context, eventID uint64) (ports.SLAEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.SLAEvent{}, err
	}

	var row model.SLAEvent
	if err := db.Where("event_id = ?", eventID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SLAEvent{}, ports.ErrSLAEventNotFound
		}
		return ports.SLAEvent{}, errs.Wrap(err, "query sla automation event")
	}
	return mapSLAEvent(row), nil
}

func (r *SLARepository) LatestEventByRule(ctx context.Context, ruleKey string) (ports.SLAEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.SLAEvent{}, err
	}

	var row model.SLAEvent
	if err := db.Where("rule_key = ?", ruleKey).
		Order("event_id DESC").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SLAEvent{}, ports.ErrSLAEventNotFound
		}
		return ports.SLAEvent{}, errs.Wrap(err, "query latest sla event for rule")
	}
	return mapSLAEvent(row), nil
}

func (r *SLARepository) ListUndelivered(ctx context.Context, limit int) ([]ports.SLAEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Where("delivered = ?", false).Order("event_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.SLAEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list undelivered sla events")
	}
	return mapSLAEvents(rows), nil
}

func (r *SLARepository) MarkDelivered(ctx context.Context, eventID uint64, at time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.SLAEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"delivered":    true,
			"delivered_at": at,
		}).Error; err != nil {
		return errs.Wrap(err, "mark sla event delivered")
	}
	return nil
}

func (r *SLARepository) CountAttempts(ctx context.Context, eventID uint64) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.SLADeliveryAttempt{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count sla delivery attempts")
	}
	return count, nil
}

func (r *SLARepository) AppendAttempt(ctx context.Context, attempt ports.SLADeliveryAttempt) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.SLADeliveryAttempt{
		EventID:             attempt.EventID,
		AttemptNumber:       attempt.AttemptNumber,
		Status:              attempt.Status,
		Delivered:           attempt.Delivered,
		ShouldRetry:         attempt.ShouldRetry,
		RetryBackoffSeconds: attempt.RetryBackoffSeconds,
		Reason:              attempt.Reason,
		CreatedAt:           attempt.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert sla delivery attempt")
	}
	return nil
}

func (r *SLARepository) ListAttempts(ctx context.Context, eventID uint64) ([]ports.SLADeliveryAttempt, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.SLADeliveryAttempt
	if err := db.Where("event_id = ?", eventID).
		Order("attempt_number ASC").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list sla delivery attempts")
	}

	attempts := make([]ports.SLADeliveryAttempt, 0, len(rows))
	for _, row := range rows {
		attempts = append(attempts, ports.SLADeliveryAttempt{
			AttemptID:           row.AttemptID,
			EventID:             row.EventID,
			AttemptNumber:       row.AttemptNumber,
			Status:              row.Status,
			Delivered:           row.Delivered,
			ShouldRetry:         row.ShouldRetry,
			RetryBackoffSeconds: row.RetryBackoffSeconds,
			Reason:              row.Reason,
			CreatedAt:           row.CreatedAt,
		})
	}
	return attempts, nil
}

func (r *SLARepository) ListEvents(ctx context.Context, limit int) ([]ports.SLAEvent, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Order("event_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.SLAEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list sla automation events")
	}
	return mapSLAEvents(rows), nil
}

func mapSLAEvent(row model.SLAEvent) ports.SLAEvent {
	return ports.SLAEvent{
		EventID:        row.EventID,
		EventUID:       row.EventUID,
		RuleKey:        row.RuleKey,
		Status:         row.Status,
		Severity:       row.Severity,
		MetricValue:    row.MetricValue,
		ThresholdValue: row.ThresholdValue,
		PayloadJSON:    row.PayloadJSON,
		Delivered:      row.Delivered,
		DeliveredAt:    row.DeliveredAt,
		CreatedAt:      row.CreatedAt,
	}
}

func mapSLAEvents(rows []model.SLAEvent) []ports.SLAEvent {
	events := make([]ports.SLAEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, mapSLAEvent(row))
	}
	return events
}

type StockoutRepository struct {
	db *gorm.DB
}

var _ ports.StockoutRepository = (*StockoutRepository)(nil)

func NewStockoutRepository(db *gorm.DB) *StockoutRepository {
	return &StockoutRepository{db: db}
}

func (r *StockoutRepository) GetOpen(ctx context.Context) (ports.StockoutIncident, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.StockoutIncident{}, err
	}

	var row model.StockoutIncident
	if err := db.Where("is_active = ?", true).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.StockoutIncident{}, ports.ErrStockoutIncidentNotFound
		}
		return ports.StockoutIncident{}, errs.Wrap(err, "query open stockout incident")
	}
	return mapStockoutIncident(row), nil
}

func (r *StockoutRepository) Open(ctx context.Context, incident ports.StockoutIncident) (ports.StockoutIncident, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.StockoutIncident{}, err
	}

	row := model.StockoutIncident{
		StartedAt:         incident.StartedAt,
		IsActive:          true,
		ReadyCountAtStart: incident.ReadyCountAtStart,
		CreatedAt:         incident.CreatedAt,
		UpdatedAt:         incident.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.StockoutIncident{}, errs.Wrap(err, "insert stockout incident")
	}
	return mapStockoutIncident(row), nil
}

func (r *StockoutRepository) Close(ctx context.Context, incidentID uint64, endedAt time.Time, durationMinutes int, readyCountAtEnd int) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.StockoutIncident{}).
		Where("incident_id = ?", incidentID).
		Updates(map[string]any{
			"is_active":          false,
			"ended_at":           endedAt,
			"duration_minutes":   durationMinutes,
			"ready_count_at_end": readyCountAtEnd,
			"updated_at":         touchTime(endedAt),
		}).Error; err != nil {
		return errs.Wrap(err, "close stockout incident")
	}
	return nil
}

func (r *StockoutRepository) List(ctx context.Context, limit int) ([]ports.StockoutIncident, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Order("incident_id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.StockoutIncident
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "list stockout incidents")
	}

	incidents := make([]ports.StockoutIncident, 0, len(rows))
	for _, row := range rows {
		incidents = append(incidents, mapStockoutIncident(row))
	}
	return incidents, nil
}

func mapStockoutIncident(row model.StockoutIncident) ports.StockoutIncident {
	return ports.StockoutIncident{
		IncidentID:        row.IncidentID,
		StartedAt:         row.StartedAt,
		EndedAt:           row.EndedAt,
		IsActive:          row.IsActive,
		DurationMinutes:   row.DurationMinutes,
		ReadyCountAtStart: row.ReadyCountAtStart,
		ReadyCountAtEnd:   row.ReadyCountAtEnd,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}
