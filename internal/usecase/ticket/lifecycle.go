package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/ports"
)

// Create opens a ticket for an inventory item and parks it in review. The
// one-active-ticket-per-item invariant is checked here and backed by the
// storage-level unique index.
func (s *Service) Create(ctx context.Context, input CreateInput) (ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return ports.Ticket{}, err
	}

	flag, err := workflow.ParseFlagColor(input.FlagColor)
	if err != nil {
		return ports.Ticket{}, err
	}
	if input.SRTTotalMinutes <= 0 {
		return ports.Ticket{}, workflow.Validationf("srt_total_minutes must be positive")
	}
	code := strings.TrimSpace(input.ItemCode)
	if code == "" {
		return ports.Ticket{}, workflow.Validationf("inventory item code is required")
	}

	var created ports.Ticket
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.loadActorTx(txCtx, input.MasterID)
		if err != nil {
			return err
		}
		if err := s.requireCapability(actor, workflow.CapCreateTickets); err != nil {
			return err
		}

		item, err := s.fleet.GetItemByCode(txCtx, code)
		if err != nil {
			if errors.Is(err, ports.ErrInventoryItemNotFound) {
				return workflow.NotFoundf("inventory item %q not found", code)
			}
			return err
		}
		if item.Status == ports.ItemStatusRetired {
			return workflow.Validationf("inventory item %q is retired", code)
		}

		if existing, err := s.tickets.GetActiveByItem(txCtx, item.ItemID); err == nil {
			return workflow.Conflictf("inventory item %q already has active ticket %d", code, existing.TicketID)
		} else if !errors.Is(err, ports.ErrTicketNotFound) {
			return err
		}

		now := s.now().UTC()
		created, err = s.tickets.Create(txCtx, ports.Ticket{
			InventoryItemID: item.ItemID,
			MasterID:        input.MasterID,
			Status:          workflow.TicketUnderReview,
			FlagColor:       flag,
			SRTTotalMinutes: input.SRTTotalMinutes,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return err
		}
		if err := s.fleet.SetItemStatus(txCtx, item.ItemID, ports.ItemStatusInRepair); err != nil {
			return err
		}
		return s.appendTransitionTx(txCtx, created.TicketID, "", workflow.TicketUnderReview, workflow.ActionCreate, input.MasterID, input.Origin, "", now)
	}); err != nil {
		return ports.Ticket{}, err
	}

	logging.Info(ctx, "ticket created",
		slog.Uint64("ticket_id", created.TicketID),
		slog.String("flag_color", string(created.FlagColor)),
		slog.Int("srt_total_minutes", created.SRTTotalMinutes))
	return created, nil
}

// ApproveReview moves a ticket out of intake review.
func (s *Service) ApproveReview(ctx context.Context, input ActionInput) (ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return ports.Ticket{}, err
	}

	var updated ports.Ticket
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.loadActorTx(txCtx, input.ActorID)
		if err != nil {
			return err
		}
		if err := s.requireCapability(actor, workflow.CapReviewTickets); err != nil {
			return err
		}

		ticket, err := s.loadTicketTx(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		next, err := workflow.NextTicketStatus(workflow.ActionApproveReview, ticket.Status)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.tickets.UpdateStatus(txCtx, ticket.TicketID, next, now); err != nil {
			return err
		}
		if err := s.appendTransitionTx(txCtx, ticket.TicketID, ticket.Status, next, workflow.ActionApproveReview, input.ActorID, input.Origin, "", now); err != nil {
			return err
		}
		ticket.Status = next
		ticket.UpdatedAt = now
		updated = ticket
		return nil
	}); err != nil {
		return ports.Ticket{}, err
	}
	return updated, nil
}

// Assign hands a reviewed ticket to a technician. WIP=1: a technician with
// an in-progress ticket cannot take another one; the partial unique index
// on in_progress rows backs the check under concurrency.
func (s *Service) Assign(ctx context.Context, input AssignInput) (ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return ports.Ticket{}, err
	}

	var updated ports.Ticket
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.loadActorTx(txCtx, input.ActorID)
		if err != nil {
			return err
		}
		if err := s.requireCapability(actor, workflow.CapAssignTickets); err != nil {
			return err
		}

		technician, err := s.users.GetByID(txCtx, input.TechnicianID)
		if err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				return workflow.NotFoundf("technician %d not found", input.TechnicianID)
			}
			return err
		}
		if !workflow.HasRole(technician.Roles, workflow.RoleTechnician) {
			return workflow.Validationf("user %q is not a technician", technician.Username)
		}

		wip, err := s.tickets.CountInProgressByTechnician(txCtx, input.TechnicianID)
		if err != nil {
			return err
		}
		if wip > 0 {
			return workflow.Validationf("technician %q already has a ticket in progress", technician.Username)
		}

		ticket, err := s.loadTicketTx(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		next, err := workflow.NextTicketStatus(workflow.ActionAssign, ticket.Status)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.tickets.MarkAssigned(txCtx, ticket.TicketID, input.TechnicianID, now); err != nil {
			return err
		}
		metadata := fmt.Sprintf(`{"technician_id":%d}`, input.TechnicianID)
		if err := s.appendTransitionTx(txCtx, ticket.TicketID, ticket.Status, next, workflow.ActionAssign, input.ActorID, input.Origin, metadata, now); err != nil {
			return err
		}

		ticket.Status = next
		ticket.TechnicianID = &input.TechnicianID
		ticket.AssignedAt = &now
		ticket.UpdatedAt = now
		updated = ticket
		return nil
	}); err != nil {
		return ports.Ticket{}, err
	}

	logging.Info(ctx, "ticket assigned",
		slog.Uint64("ticket_id", updated.TicketID),
		slog.Uint64("technician_id", input.TechnicianID))
	return updated, nil
}
