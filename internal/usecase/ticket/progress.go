package ticket

import (
	"context"
	"errors"
	"log/slog"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/ports"
)

// Start moves an assigned or rework ticket into progress and opens the
// technician's work session in the same transaction.
func (s *Service) Start(ctx context.Context, input ActionInput) (ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return ports.Ticket{}, err
	}

	var updated ports.Ticket
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		ticket, err := s.loadTicketTx(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		if ticket.TechnicianID == nil || *ticket.TechnicianID != input.ActorID {
			return workflow.Validationf("only the assigned technician may start ticket %d", input.TicketID)
		}

		next, err := workflow.NextTicketStatus(workflow.ActionStart, ticket.Status)
		if err != nil {
			return err
		}

		wip, err := s.tickets.CountInProgressByTechnician(txCtx, input.ActorID)
		if err != nil {
			return err
		}
		if wip > 0 {
			return workflow.Validationf("technician already has a ticket in progress")
		}

		now := s.now().UTC()
		if err := s.tickets.MarkStarted(txCtx, ticket.TicketID, now); err != nil {
			return err
		}
		if _, err := s.sessions.OpenTx(txCtx, ticket.TicketID, input.ActorID, input.ActorID, input.Origin, now); err != nil {
			return err
		}
		if err := s.appendTransitionTx(txCtx, ticket.TicketID, ticket.Status, next, workflow.ActionStart, input.ActorID, input.Origin, "", now); err != nil {
			return err
		}

		ticket.Status = next
		ticket.StartedAt = &now
		ticket.UpdatedAt = now
		updated = ticket
		return nil
	}); err != nil {
		return ports.Ticket{}, err
	}

	logging.Info(ctx, "ticket started",
		slog.Uint64("ticket_id", updated.TicketID),
		slog.Uint64("technician_id", input.ActorID))
	return updated, nil
}

// ToWaitingQC hands a ticket over to QC. The timer must already be stopped:
// no open session may cross into the QC queue.
func (s *Service) ToWaitingQC(ctx context.Context, input ActionInput) (ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return ports.Ticket{}, err
	}

	var updated ports.Ticket
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		ticket, err := s.loadTicketTx(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		if ticket.TechnicianID == nil || *ticket.TechnicianID != input.ActorID {
			return workflow.Validationf("only the assigned technician may submit ticket %d for qc", input.TicketID)
		}

		next, err := workflow.NextTicketStatus(workflow.ActionToWaitingQC, ticket.Status)
		if err != nil {
			return err
		}

		if _, err := s.sessions.OpenByTicket(txCtx, ticket.TicketID); err == nil {
			return workflow.Validationf("stop the work session before submitting ticket %d for qc", input.TicketID)
		} else if !workflow.IsNotFound(err) {
			return err
		}

		now := s.now().UTC()
		if err := s.tickets.UpdateStatus(txCtx, ticket.TicketID, next, now); err != nil {
			return err
		}
		if err := s.appendTransitionTx(txCtx, ticket.TicketID, ticket.Status, next, workflow.ActionToWaitingQC, input.ActorID, input.Origin, "", now); err != nil {
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

// Get resolves one ticket.
func (s *Service) Get(ctx context.Context, ticketID uint64) (ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return ports.Ticket{}, err
	}
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ports.ErrTicketNotFound) {
			return ports.Ticket{}, workflow.NotFoundf("ticket %d not found", ticketID)
		}
		return ports.Ticket{}, err
	}
	return ticket, nil
}

// List filters tickets for boards and the audit feed.
func (s *Service) List(ctx context.Context, filter ports.TicketFilter) ([]ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	return s.tickets.List(ctx, filter)
}

// Transitions returns the full audit trail of a ticket.
func (s *Service) Transitions(ctx context.Context, ticketID uint64) ([]ports.TicketTransition, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	return s.tickets.ListTransitions(ctx, ticketID)
}
