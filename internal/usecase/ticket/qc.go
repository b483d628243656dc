package ticket

import (
	"context"
	"fmt"
	"log/slog"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/ports"
	ledgeruc "fleetops/internal/usecase/ledger"
)

// QCPass accepts the repair. In one transaction: the DONE edge, its audit
// row, the base-XP posting keyed by ticket, and the first-pass bonus iff the
// ticket never failed QC. The bonus lookup reads the transition log, the one
// source of truth for "has this ticket ever failed".
func (s *Service) QCPass(ctx context.Context, input ActionInput) (QCResult, error) {
	if err := s.guard(ctx); err != nil {
		return QCResult{}, err
	}

	active, err := s.rules.GetActive(ctx)
	if err != nil {
		return QCResult{}, err
	}
	gam := active.Config.Gamification

	var result QCResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.loadActorTx(txCtx, input.ActorID)
		if err != nil {
			return err
		}
		if err := s.requireCapability(actor, workflow.CapQCTickets); err != nil {
			return err
		}

		ticket, err := s.loadTicketTx(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		if ticket.TechnicianID == nil {
			return workflow.Validationf("ticket %d has no assigned technician", input.TicketID)
		}

		next, err := workflow.NextTicketStatus(workflow.ActionQCPass, ticket.Status)
		if err != nil {
			return err
		}

		failedBefore, err := s.tickets.HasTransition(txCtx, ticket.TicketID, workflow.ActionQCFail)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.tickets.MarkDone(txCtx, ticket.TicketID, now); err != nil {
			return err
		}
		if err := s.fleet.SetItemStatus(txCtx, ticket.InventoryItemID, ports.ItemStatusReady); err != nil {
			return err
		}

		baseXP := ceilDiv(ticket.SRTTotalMinutes, gam.SRTMinutesPerXP)
		created, err := s.ledger.AppendTx(txCtx, ledgeruc.AppendInput{
			UserID:      *ticket.TechnicianID,
			Amount:      baseXP,
			EntryType:   "ticket_base_xp",
			Reference:   fmt.Sprintf("ticket_base_xp:%d", ticket.TicketID),
			Description: fmt.Sprintf("base xp for ticket %d", ticket.TicketID),
			PayloadJSON: fmt.Sprintf(`{"srt_total_minutes":%d,"srt_minutes_per_xp":%d}`, ticket.SRTTotalMinutes, gam.SRTMinutesPerXP),
		})
		if err != nil {
			return err
		}
		result.BaseXP = baseXP
		result.LedgerCreated = created

		if !failedBefore && gam.FirstPassBonusXP > 0 {
			if _, err := s.ledger.AppendTx(txCtx, ledgeruc.AppendInput{
				UserID:      *ticket.TechnicianID,
				Amount:      gam.FirstPassBonusXP,
				EntryType:   "ticket_qc_first_pass_bonus",
				Reference:   fmt.Sprintf("ticket_qc_first_pass_bonus:%d", ticket.TicketID),
				Description: fmt.Sprintf("first-pass qc bonus for ticket %d", ticket.TicketID),
			}); err != nil {
				return err
			}
			result.BonusXP = gam.FirstPassBonusXP
		}
		result.FirstPass = !failedBefore

		metadata := fmt.Sprintf(`{"base_xp":%d,"bonus_xp":%d,"first_pass":%t}`, result.BaseXP, result.BonusXP, result.FirstPass)
		if err := s.appendTransitionTx(txCtx, ticket.TicketID, ticket.Status, next, workflow.ActionQCPass, input.ActorID, input.Origin, metadata, now); err != nil {
			return err
		}

		ticket.Status = next
		ticket.DoneAt = &now
		ticket.UpdatedAt = now
		result.Ticket = ticket
		return nil
	}); err != nil {
		return QCResult{}, err
	}

	logging.Info(ctx, "ticket passed qc",
		slog.Uint64("ticket_id", result.Ticket.TicketID),
		slog.Int("base_xp", result.BaseXP),
		slog.Int("bonus_xp", result.BonusXP),
		slog.Bool("first_pass", result.FirstPass))
	return result, nil
}

// QCFail bounces the ticket back to rework. No XP moves.
func (s *Service) QCFail(ctx context.Context, input ActionInput) (ports.Ticket, error) {
	if err := s.guard(ctx); err != nil {
		return ports.Ticket{}, err
	}

	var updated ports.Ticket
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.loadActorTx(txCtx, input.ActorID)
		if err != nil {
			return err
		}
		if err := s.requireCapability(actor, workflow.CapQCTickets); err != nil {
			return err
		}

		ticket, err := s.loadTicketTx(txCtx, input.TicketID)
		if err != nil {
			return err
		}
		next, err := workflow.NextTicketStatus(workflow.ActionQCFail, ticket.Status)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.tickets.UpdateStatus(txCtx, ticket.TicketID, next, now); err != nil {
			return err
		}
		if err := s.appendTransitionTx(txCtx, ticket.TicketID, ticket.Status, next, workflow.ActionQCFail, input.ActorID, input.Origin, "", now); err != nil {
			return err
		}

		ticket.Status = next
		ticket.UpdatedAt = now
		updated = ticket
		return nil
	}); err != nil {
		return ports.Ticket{}, err
	}

	logging.Info(ctx, "ticket failed qc", slog.Uint64("ticket_id", updated.TicketID))
	return updated, nil
}

func ceilDiv(numerator int, divisor int) int {
	if divisor <= 0 {
		return 0
	}
	return (numerator + divisor - 1) / divisor
}
