package rules

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"fleetops/internal/bootstrap/logging"
	"fleetops/internal/domain/rules"
	"fleetops/internal/domain/workflow"
	"fleetops/internal/errs"
	"fleetops/internal/ports"
)

// Service owns the versioned rules document: bootstrap, update, rollback and
// the cached active-snapshot read path every engine depends on.
type Service struct {
	repo  ports.RulesRepository
	uow   ports.UnitOfWork
	cache ports.Cache
	now   func() time.Time
}

func NewService(repo ports.RulesRepository, uow ports.UnitOfWork, cache ports.Cache) *Service {
	return &Service{
		repo:  repo,
		uow:   uow,
		cache: cache,
		now:   time.Now,
	}
}

// ActiveRules is the resolved active document plus its version identity.
type ActiveRules struct {
	Version   int
	Checksum  string
	CacheKey  string
	UpdatedAt time.Time
	Config    rules.Config
}

type UpdateInput struct {
	DocumentTOML []byte
	Reason       string
	Actor        string
}

type UpdateResult struct {
	Version  int
	Checksum string
	Changed  bool
}

type RollbackInput struct {
	ToVersion int
	Reason    string
	Actor     string
}

type RollbackResult struct {
	Version       int
	SourceVersion int
	Checksum      string
}

func (s *Service) guard(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("rules repository is required")
	}
	if s.uow == nil {
		return errors.New("rules unit of work is required")
	}
	return nil
}

// Bootstrap writes version 1 with the default document when the log is
// empty. Calling it on an initialized store is a no-op.
func (s *Service) Bootstrap(ctx context.Context) (ActiveRules, error) {
	if err := s.guard(ctx); err != nil {
		return ActiveRules{}, err
	}

	var active ActiveRules
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.LatestVersion(txCtx); err == nil {
			resolved, err := s.resolveActiveTx(txCtx)
			if err != nil {
				return err
			}
			active = resolved
			return nil
		} else if !errors.Is(err, ports.ErrRulesVersionNotFound) {
			return err
		}

		cfg := rules.Default()
		stored, err := cfg.MarshalStored()
		if err != nil {
			return err
		}
		checksum, err := rules.Checksum(cfg)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.repo.CreateVersion(txCtx, ports.RulesVersion{
			Version:    1,
			Action:     string(rules.ActionBootstrap),
			ConfigJSON: string(stored),
			DiffJSON:   "{}",
			Checksum:   checksum,
			Reason:     "bootstrap default rules",
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		if err := s.repo.SaveState(txCtx, ports.RulesState{
			ActiveVersion: 1,
			CacheKey:      cacheKeyFor(checksum),
			UpdatedAt:     now,
		}); err != nil {
			return err
		}

		active = ActiveRules{Version: 1, Checksum: checksum, CacheKey: cacheKeyFor(checksum), UpdatedAt: now, Config: cfg}
		return nil
	}); err != nil {
		return ActiveRules{}, errs.Wrap(err, "bootstrap rules")
	}

	s.cacheActiveBestEffort(ctx, active)
	return active, nil
}

// GetActive resolves the active document, preferring the cache snapshot and
// falling back to the version log.
func (s *Service) GetActive(ctx context.Context) (ActiveRules, error) {
	if err := s.guard(ctx); err != nil {
		return ActiveRules{}, err
	}

	state, err := s.repo.GetState(ctx)
	if err != nil {
		if errors.Is(err, ports.ErrRulesStateNotFound) {
			return s.Bootstrap(ctx)
		}
		return ActiveRules{}, errs.Wrap(err, "load rules state")
	}

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, state.CacheKey); err == nil && ok {
			cfg, err := rules.ParseJSON([]byte(raw))
			if err == nil {
				return ActiveRules{
					Version:   state.ActiveVersion,
					Checksum:  checksumFromKey(state.CacheKey),
					CacheKey:  state.CacheKey,
					UpdatedAt: state.UpdatedAt,
					Config:    cfg,
				}, nil
			}
			logging.Warn(ctx, "cached rules snapshot is corrupt, falling back to version log", slog.String("cache_key", state.CacheKey))
		}
	}

	version, err := s.repo.GetVersion(ctx, state.ActiveVersion)
	if err != nil {
		return ActiveRules{}, errs.Wrap(err, "load active rules version")
	}
	cfg, err := rules.ParseJSON([]byte(version.ConfigJSON))
	if err != nil {
		return ActiveRules{}, errs.Wrap(err, "decode active rules version")
	}

	active := ActiveRules{
		Version:   version.Version,
		Checksum:  version.Checksum,
		CacheKey:  state.CacheKey,
		UpdatedAt: state.UpdatedAt,
		Config:    cfg,
	}
	s.cacheActiveBestEffort(ctx, active)
	return active, nil
}

// Update validates a full-document replacement, appends it as the next
// version and repoints the active state. A document identical to the active
// one changes nothing.
func (s *Service) Update(ctx context.Context, input UpdateInput) (UpdateResult, error) {
	if err := s.guard(ctx); err != nil {
		return UpdateResult{}, err
	}

	next, err := rules.ParseTOML(input.DocumentTOML)
	if err != nil {
		return UpdateResult{}, err
	}
	if err := next.Validate(); err != nil {
		return UpdateResult{}, err
	}

	var (
		result UpdateResult
		active ActiveRules
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		latest, err := s.repo.LatestVersion(txCtx)
		if err != nil {
			return err
		}
		current, err := rules.ParseJSON([]byte(latest.ConfigJSON))
		if err != nil {
			return errs.Wrap(err, "decode latest rules version")
		}

		checksum, err := rules.Checksum(next)
		if err != nil {
			return err
		}
		if checksum == latest.Checksum {
			result = UpdateResult{Version: latest.Version, Checksum: latest.Checksum, Changed: false}
			active = ActiveRules{Version: latest.Version, Checksum: latest.Checksum, Config: current}
			return nil
		}

		diff, err := rules.Diff(current, next)
		if err != nil {
			return err
		}
		diffJSON, err := marshalDiff(diff)
		if err != nil {
			return err
		}
		stored, err := next.MarshalStored()
		if err != nil {
			return err
		}

		now := s.now().UTC()
		version := latest.Version + 1
		created := ports.RulesVersion{
			Version:    version,
			Action:     string(rules.ActionUpdate),
			ConfigJSON: string(stored),
			DiffJSON:   diffJSON,
			Checksum:   checksum,
			Reason:     input.Reason,
			CreatedAt:  now,
		}
		if actor := trimPtr(input.Actor); actor != nil {
			created.CreatedBy = actor
		}
		if err := s.repo.CreateVersion(txCtx, created); err != nil {
			return err
		}
		if err := s.repo.SaveState(txCtx, ports.RulesState{
			ActiveVersion: version,
			CacheKey:      cacheKeyFor(checksum),
			UpdatedAt:     now,
		}); err != nil {
			return err
		}

		result = UpdateResult{Version: version, Checksum: checksum, Changed: true}
		active = ActiveRules{Version: version, Checksum: checksum, Config: next}
		return nil
	}); err != nil {
		return UpdateResult{}, errs.Wrap(err, "update rules")
	}

	if result.Changed {
		s.cacheActiveBestEffort(ctx, active)
		logging.Info(ctx, "rules updated", slog.Int("version", result.Version), slog.String("checksum", result.Checksum))
	}
	return result, nil
}

// Rollback appends a new version carrying an old document verbatim. History
// stays monotonic: rolling back never deletes or renumbers anything.
func (s *Service) Rollback(ctx context.Context, input RollbackInput) (RollbackResult, error) {
	if err := s.guard(ctx); err != nil {
		return RollbackResult{}, err
	}

	var (
		result RollbackResult
		active ActiveRules
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		source, err := s.repo.GetVersion(txCtx, input.ToVersion)
		if err != nil {
			if errors.Is(err, ports.ErrRulesVersionNotFound) {
				return workflow.NotFoundf("rules version %d not found", input.ToVersion)
			}
			return err
		}
		latest, err := s.repo.LatestVersion(txCtx)
		if err != nil {
			return err
		}
		if source.Version == latest.Version {
			return workflow.Conflictf("rules version %d is already active", input.ToVersion)
		}

		current, err := rules.ParseJSON([]byte(latest.ConfigJSON))
		if err != nil {
			return errs.Wrap(err, "decode latest rules version")
		}
		restored, err := rules.ParseJSON([]byte(source.ConfigJSON))
		if err != nil {
			return errs.Wrap(err, "decode rollback source version")
		}

		diff, err := rules.Diff(current, restored)
		if err != nil {
			return err
		}
		diffJSON, err := marshalDiff(diff)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		version := latest.Version + 1
		sourceVersion := source.Version
		created := ports.RulesVersion{
			Version:       version,
			Action:        string(rules.ActionRollback),
			ConfigJSON:    source.ConfigJSON,
			DiffJSON:      diffJSON,
			Checksum:      source.Checksum,
			Reason:        input.Reason,
			SourceVersion: &sourceVersion,
			CreatedAt:     now,
		}
		if actor := trimPtr(input.Actor); actor != nil {
			created.CreatedBy = actor
		}
		if err := s.repo.CreateVersion(txCtx, created); err != nil {
			return err
		}
		if err := s.repo.SaveState(txCtx, ports.RulesState{
			ActiveVersion: version,
			CacheKey:      cacheKeyFor(source.Checksum),
			UpdatedAt:     now,
		}); err != nil {
			return err
		}

		result = RollbackResult{Version: version, SourceVersion: source.Version, Checksum: source.Checksum}
		active = ActiveRules{Version: version, Checksum: source.Checksum, Config: restored}
		return nil
	}); err != nil {
		return RollbackResult{}, errs.Wrap(err, "rollback rules")
	}

	s.cacheActiveBestEffort(ctx, active)
	logging.Info(ctx, "rules rolled back", slog.Int("version", result.Version), slog.Int("source_version", result.SourceVersion))
	return result, nil
}

// History returns the newest-first version log.
func (s *Service) History(ctx context.Context, limit int) ([]ports.RulesVersion, error) {
	if err := s.guard(ctx); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, limit)
	if err != nil {
		return nil, errs.Wrap(err, "list rules versions")
	}
	return versions, nil
}

// GetVersion resolves one historical version.
func (s *Service) GetVersion(ctx context.Context, version int) (ports.RulesVersion, error) {
	if err := s.guard(ctx); err != nil {
		return ports.RulesVersion{}, err
	}
	row, err := s.repo.GetVersion(ctx, version)
	if err != nil {
		if errors.Is(err, ports.ErrRulesVersionNotFound) {
			return ports.RulesVersion{}, workflow.NotFoundf("rules version %d not found", version)
		}
		return ports.RulesVersion{}, errs.Wrapf(err, "load rules version %d", version)
	}
	return row, nil
}

func (s *Service) resolveActiveTx(ctx context.Context) (ActiveRules, error) {
	state, err := s.repo.GetState(ctx)
	if err != nil {
		return ActiveRules{}, errs.Wrap(err, "load rules state")
	}
	version, err := s.repo.GetVersion(ctx, state.ActiveVersion)
	if err != nil {
		return ActiveRules{}, errs.Wrap(err, "load active rules version")
	}
	cfg, err := rules.ParseJSON([]byte(version.ConfigJSON))
	if err != nil {
		return ActiveRules{}, errs.Wrap(err, "decode active rules version")
	}
	return ActiveRules{
		Version:   version.Version,
		Checksum:  version.Checksum,
		CacheKey:  state.CacheKey,
		UpdatedAt: state.UpdatedAt,
		Config:    cfg,
	}, nil
}

func (s *Service) cacheActiveBestEffort(ctx context.Context, active ActiveRules) {
	if s.cache == nil {
		return
	}
	stored, err := active.Config.MarshalStored()
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyFor(active.Checksum), string(stored), 0); err != nil {
		logging.Warn(ctx, "cache active rules snapshot failed", slog.Any("error", err))
	}
}
