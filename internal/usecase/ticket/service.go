package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
	ledgeruc "fleetops/internal/usecase/ledger"
	rulesuc "fleetops/internal/usecase/rules"
	"fleetops/internal/usecase/worksession"
)

// Service drives the ticket lifecycle. Every edge runs in one transaction,
// appends exactly one audit transition, and the QC-pass edge additionally
// posts XP through the idempotent ledger.
type Service struct {
	tickets  ports.TicketRepository
	users    ports.UserRepository
	fleet    ports.FleetRepository
	sessions *worksession.Service
	ledger   *ledgeruc.Service
	rules    *rulesuc.Service
	uow      ports.UnitOfWork
	now      func() time.Time
}

func NewService(
	tickets ports.TicketRepository,
	users ports.UserRepository,
	fleet ports.FleetRepository,
	sessions *worksession.Service,
	ledger *ledgeruc.Service,
	rulesSvc *rulesuc.Service,
	uow ports.UnitOfWork,
) *Service {
	return &Service{
		tickets:  tickets,
		users:    users,
		fleet:    fleet,
		sessions: sessions,
		ledger:   ledger,
		rules:    rulesSvc,
		uow:      uow,
		now:      time.Now,
	}
}

type CreateInput struct {
	ItemCode        string
	MasterID        uint64
	FlagColor       string
	SRTTotalMinutes int
	Origin          string
}

type ActionInput struct {
	TicketID uint64
	ActorID  uint64
	Origin   string
}

type AssignInput struct {
	TicketID     uint64
	TechnicianID uint64
	ActorID      uint64
	Origin       string
}

type QCResult struct {
	Ticket        ports.Ticket
	BaseXP        int
	BonusXP       int
	FirstPass     bool
	LedgerCreated bool
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.tickets == nil {
		return errors.New("ticket repository is required")
	}
	if s.uow == nil {
		return errors.New("ticket unit of work is required")
	}
	return nil
}

func (s *Service) loadTicketTx(ctx context.Context, ticketID uint64) (ports.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ports.ErrTicketNotFound) {
			return ports.Ticket{}, workflow.NotFoundf("ticket %d not found", ticketID)
		}
		return ports.Ticket{}, errs.Wrap(err, "load ticket")
	}
	return ticket, nil
}

func (s *Service) loadActorTx(ctx context.Context, actorID uint64) (ports.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return ports.User{}, workflow.NotFoundf("actor %d not found", actorID)
		}
		return ports.User{}, errs.Wrap(err, "load actor")
	}
	return actor, nil
}

func (s *Service) requireCapability(actor ports.User, cap workflow.Capability) error {
	if !workflow.ResolveCapabilities(actor.Roles).Has(cap) {
		return workflow.Validationf("user %q lacks the %s capability", actor.Username, cap)
	}
	return nil
}

func (s *Service) appendTransitionTx(ctx context.Context, ticketID uint64, from workflow.TicketStatus, to workflow.TicketStatus, action workflow.TicketAction, actorID uint64, origin string, metadata string, at time.Time) error {
	if metadata == "" {
		metadata = fmt.Sprintf(`{"origin":%q}`, originOrDefault(origin))
	}
	if err := s.tickets.AppendTransition(ctx, ports.TicketTransition{
		TicketID:     ticketID,
		FromStatus:   from,
		ToStatus:     to,
		Action:       action,
		ActorID:      actorID,
		MetadataJSON: metadata,
		CreatedAt:    at,
	}); err != nil {
		return errs.Wrap(err, "append ticket transition")
	}
	return nil
}

func originOrDefault(origin string) string {
	if origin == "" {
		return "api"
	}
	return origin
}
