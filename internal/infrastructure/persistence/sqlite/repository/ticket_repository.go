package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

type TicketRepository struct {
	db *gorm.DB
}

var _ ports.TicketRepository = (*TicketRepository)(nil)

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, ticket ports.Ticket) (ports.Ticket, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Ticket{}, err
	}

	row := model.Ticket{
		InventoryItemID: ticket.InventoryItemID,
		MasterID:        ticket.MasterID,
		TechnicianID:    ticket.TechnicianID,
		Status:          string(ticket.Status),
		FlagColor:       string(ticket.FlagColor),
		SRTTotalMinutes: ticket.SRTTotalMinutes,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Ticket{}, errs.Wrap(err, "insert ticket")
	}
	return mapTicket(row), nil
}

func (r *TicketRepository) Get(ctx context.Context, ticketID uint64) (ports.Ticket, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Ticket{}, err
	}

	var row model.Ticket
	if err := db.Where("ticket_id = ?", ticketID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Ticket{}, ports.ErrTicketNotFound
		}
		return ports.Ticket{}, errs.Wrap(err, "query ticket")
	}
	return mapTicket(row), nil
}

func (r *TicketRepository) List(ctx context.Context, filter ports.TicketFilter) ([]ports.Ticket, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Ticket{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", statusStrings(filter.Statuses))
	}
	if filter.ActiveOnly {
		query = query.Where("status IN ?", statusStrings(workflow.ActiveTicketStatuses()))
	}
	if filter.TechnicianID != 0 {
		query = query.Where("technician_id = ?", filter.TechnicianID)
	}

	var rows []model.Ticket
	if err := query.Order("ticket_id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query tickets")
	}

	items := make([]ports.Ticket, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapTicket(row))
	}
	return items, nil
}

func (r *TicketRepository) GetActiveByItem(ctx context.Context, itemID uint64) (ports.Ticket, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.Ticket{}, err
	}

	var row model.Ticket
	if err := db.
		Where("inventory_item_id = ?", itemID).
		Where("status IN ?", statusStrings(workflow.ActiveTicketStatuses())).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Ticket{}, ports.ErrTicketNotFound
		}
		return ports.Ticket{}, errs.Wrap(err, "query active ticket by item")
	}
	return mapTicket(row), nil
}

func (r *TicketRepository) CountInProgressByTechnician(ctx context.Context, technicianID uint64) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Ticket{}).
		Where("technician_id = ?", technicianID).
		Where("status = ?", string(workflow.TicketInProgress)).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count in-progress tickets")
	}
	return count, nil
}

func (r *TicketRepository) UpdateStatus(ctx context.Context, ticketID uint64, status workflow.TicketStatus, at time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": touchTime(at),
		}).Error; err != nil {
		return errs.Wrap(err, "update ticket status")
	}
	return nil
}

func (r *TicketRepository) MarkAssigned(ctx context.Context, ticketID uint64, technicianID uint64, at time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	stamp := touchTime(at)
	if err := db.Model(&model.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Updates(map[string]any{
			"status":        string(workflow.TicketAssigned),
			"technician_id": technicianID,
			"assigned_at":   stamp,
			"updated_at":    stamp,
		}).Error; err != nil {
		return errs.Wrap(err, "mark ticket assigned")
	}
	return nil
}

func (r *TicketRepository) MarkStarted(ctx context.Context, ticketID uint64, at time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	stamp := touchTime(at)
	if err := db.Model(&model.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Updates(map[string]any{
			"status":     string(workflow.TicketInProgress),
			"started_at": stamp,
			"updated_at": stamp,
		}).Error; err != nil {
		return errs.Wrap(err, "mark ticket started")
	}
	return nil
}

func (r *TicketRepository) MarkDone(ctx context.Context, ticketID uint64, at time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	stamp := touchTime(at)
	if err := db.Model(&model.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Updates(map[string]any{
			"status":     string(workflow.TicketDone),
			"done_at":    stamp,
			"updated_at": stamp,
		}).Error; err != nil {
		return errs.Wrap(err, "mark ticket done")
	}
	return nil
}

func (r *TicketRepository) AppendTransition(ctx context.Context, transition ports.TicketTransition) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.TicketTransition{
		TicketID:     transition.TicketID,
		FromStatus:   string(transition.FromStatus),
		ToStatus:     string(transition.ToStatus),
		Action:       string(transition.Action),
		ActorID:      transition.ActorID,
		MetadataJSON: transition.MetadataJSON,
		CreatedAt:    transition.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert ticket transition")
	}
	return nil
}

func (r *TicketRepository) ListTransitions(ctx context.Context, ticketID uint64) ([]ports.TicketTransition, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.TicketTransition
	if err := db.
		Where("ticket_id = ?", ticketID).
		Order("transition_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query ticket transitions")
	}

	items := make([]ports.TicketTransition, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.TicketTransition{
			TransitionID: row.TransitionID,
			TicketID:     row.TicketID,
			FromStatus:   workflow.TicketStatus(row.FromStatus),
			ToStatus:     workflow.TicketStatus(row.ToStatus),
			Action:       workflow.TicketAction(row.Action),
			ActorID:      row.ActorID,
			MetadataJSON: row.MetadataJSON,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *TicketRepository) HasTransition(ctx context.Context, ticketID uint64, action workflow.TicketAction) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.TicketTransition{}).
		Where("ticket_id = ? AND action = ?", ticketID, string(action)).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count ticket transitions by action")
	}
	return count > 0, nil
}

func (r *TicketRepository) CountActiveWithFlagAtLeast(ctx context.Context, flag workflow.FlagColor) (int64, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	colors := workflow.FlagsAtLeast(flag)
	colorStrings := make([]string, 0, len(colors))
	for _, color := range colors {
		colorStrings = append(colorStrings, string(color))
	}

	var count int64
	if err := db.Model(&model.Ticket{}).
		Where("status IN ?", statusStrings(workflow.ActiveTicketStatuses())).
		Where("flag_color IN ?", colorStrings).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count backlog by flag")
	}
	return count, nil
}

func (r *TicketRepository) ListDoneBetween(ctx context.Context, from time.Time, to time.Time) ([]ports.Ticket, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Ticket
	if err := db.
		Where("status = ?", string(workflow.TicketDone)).
		Where("done_at >= ? AND done_at < ?", from, to).
		Order("done_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query done tickets")
	}

	items := make([]ports.Ticket, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapTicket(row))
	}
	return items, nil
}

func mapTicket(row model.Ticket) ports.Ticket {
	return ports.Ticket{
		TicketID:        row.TicketID,
		InventoryItemID: row.InventoryItemID,
		MasterID:        row.MasterID,
		TechnicianID:    row.TechnicianID,
		Status:          workflow.TicketStatus(row.Status),
		FlagColor:       workflow.FlagColor(row.FlagColor),
		SRTTotalMinutes: row.SRTTotalMinutes,
		AssignedAt:      row.AssignedAt,
		StartedAt:       row.StartedAt,
		DoneAt:          row.DoneAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func statusStrings(statuses []workflow.TicketStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
