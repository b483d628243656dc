package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

// Service is the only write path into the XP ledger. Every posting is
// keyed by a reference string; replays are absorbed, never duplicated.
type Service struct {
	repo  ports.LedgerRepository
	users ports.UserRepository
	uow   ports.UnitOfWork
	now   func() time.Time
}

func NewService(repo ports.LedgerRepository, users ports.UserRepository, uow ports.UnitOfWork) *Service {
	return &Service{
		repo:  repo,
		users: users,
		uow:   uow,
		now:   time.Now,
	}
}

type AppendInput struct {
	UserID      uint64
	Amount      int
	EntryType   string
	Reference   string
	Description string
	PayloadJSON string
}

type AppendResult struct {
	Created bool
	Entry   ports.LedgerEntry
}

type AdjustInput struct {
	ActorID     uint64
	UserID      uint64
	Amount      int
	Description string
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("ledger repository is required")
	}
	return nil
}

// Append posts one entry unless its reference was already posted. The
// created flag distinguishes a first posting from an absorbed replay.
func (s *Service) Append(ctx context.Context, input AppendInput) (AppendResult, error) {
	if err := s.guard(ctx); err != nil {
		return AppendResult{}, err
	}

	entry, err := s.buildEntry(input)
	if err != nil {
		return AppendResult{}, err
	}

	created, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return AppendResult{}, errs.Wrap(err, "append ledger entry")
	}

	stored, err := s.repo.GetByReference(ctx, entry.Reference)
	if err != nil {
		return AppendResult{}, errs.Wrap(err, "load ledger entry after append")
	}
	if !created {
		logging.Info(ctx, "ledger reference already posted, replay absorbed",
			slog.String("reference", entry.Reference))
	}
	return AppendResult{Created: created, Entry: stored}, nil
}

// AppendTx is Append for callers already inside a unit-of-work boundary;
// it does not re-read the stored row.
func (s *Service) AppendTx(ctx context.Context, input AppendInput) (bool, error) {
	entry, err := s.buildEntry(input)
	if err != nil {
		return false, err
	}
	created, err := s.repo.Insert(ctx, entry)
	if err != nil {
		return false, errs.Wrap(err, "append ledger entry")
	}
	return created, nil
}

// Adjust posts a manual correction on behalf of a manager. Each call mints
// a fresh reference, so corrections are never deduplicated against each
// other.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (ports.LedgerEntry, error) {
	if err := s.guard(ctx); err != nil {
		return ports.LedgerEntry{}, err
	}
	if s.users == nil {
		return ports.LedgerEntry{}, errors.New("user repository is required")
	}
	if s.uow == nil {
		return ports.LedgerEntry{}, errors.New("ledger unit of work is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return ports.LedgerEntry{}, workflow.Validationf("adjustment description is required")
	}

	reference := "manual_adjustment:" + uuid.NewString()
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		actor, err := s.users.GetByID(txCtx, input.ActorID)
		if err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				return workflow.NotFoundf("actor %d not found", input.ActorID)
			}
			return err
		}
		if !workflow.ResolveCapabilities(actor.Roles).Has(workflow.CapAdjustLedger) {
			return workflow.Validationf("user %q may not adjust the ledger", actor.Username)
		}
		if _, err := s.users.GetByID(txCtx, input.UserID); err != nil {
			if errors.Is(err, ports.ErrUserNotFound) {
				return workflow.NotFoundf("user %d not found", input.UserID)
			}
			return err
		}

		created, err := s.AppendTx(txCtx, AppendInput{
			UserID:      input.UserID,
			Amount:      input.Amount,
			EntryType:   "manual_adjustment",
			Reference:   reference,
			Description: input.Description,
		})
		if err != nil {
			return err
		}
		if !created {
			return workflow.Conflictf("adjustment reference collision, retry")
		}
		return nil
	}); err != nil {
		return ports.LedgerEntry{}, err
	}

	entry, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		return ports.LedgerEntry{}, errs.Wrap(err, "load adjustment entry")
	}
	logging.Info(ctx, "manual ledger adjustment posted",
		slog.Uint64("user_id", input.UserID),
		slog.Int("amount", input.Amount),
		slog.String("reference", reference))
	return entry, nil
}

// GetByReference resolves one posting by its idempotency key.
func (s *Service) GetByReference(ctx context.Context, reference string) (ports.LedgerEntry, error) {
	if err := s.guard(ctx); err != nil {
		return ports.LedgerEntry{}, err
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ports.LedgerEntry{}, workflow.Validationf("reference is required")
	}

	entry, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ports.ErrLedgerEntryNotFound) {
			return ports.LedgerEntry{}, workflow.NotFoundf("no ledger entry for reference %q", reference)
		}
		return ports.LedgerEntry{}, errs.Wrap(err, "load ledger entry")
	}
	return entry, nil
}

// ListForUser returns the newest-first postings of one user.
func (s *Service) ListForUser(ctx context.Context, userID uint64, limit int) ([]ports.LedgerEntry, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, errs.Wrap(err, "list ledger entries")
	}
	return entries, nil
}

func (s *Service) buildEntry(input AppendInput) (ports.LedgerEntry, error) {
	if input.Amount == 0 {
		return ports.LedgerEntry{}, workflow.Validationf("ledger amount must not be zero")
	}
	if input.UserID == 0 {
		return ports.LedgerEntry{}, workflow.Validationf("ledger user is required")
	}

	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return ports.LedgerEntry{}, workflow.Validationf("ledger reference is required")
	}
	entryType := strings.TrimSpace(input.EntryType)
	if entryType == "" {
		return ports.LedgerEntry{}, workflow.Validationf("ledger entry type is required")
	}

	payload := strings.TrimSpace(input.PayloadJSON)
	if payload == "" {
		payload = "{}"
	}

	return ports.LedgerEntry{
		UserID:      input.UserID,
		Amount:      input.Amount,
		EntryType:   entryType,
		Reference:   reference,
		Description: strings.TrimSpace(input.Description),
		PayloadJSON: payload,
		CreatedAt:   s.now().UTC(),
	}, nil
}
