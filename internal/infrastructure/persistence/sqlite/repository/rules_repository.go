package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleetops/internal/errs"
	"fleetops/internal/infrastructure/persistence/sqlite/model"
	"fleetops/internal/ports"
)

const rulesStateRowID = 1

type RulesRepository struct {
	db *gorm.DB
}

var _ ports.RulesRepository = (*RulesRepository)(nil)

func NewRulesRepository(db *gorm.DB) *RulesRepository {
	return &RulesRepository{db: db}
}

func (r *RulesRepository) GetState(ctx context.Context) (ports.RulesState, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.RulesState{}, err
	}

	var row model.RulesState
	if err := db.Where("state_id = ?", rulesStateRowID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RulesState{}, ports.ErrRulesStateNotFound
		}
		return ports.RulesState{}, errs.Wrap(err, "query rules state")
	}

	return ports.RulesState{
		ActiveVersion: row.ActiveVersion,
		CacheKey:      row.CacheKey,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (r *RulesRepository) SaveState(ctx context.Context, state ports.RulesState) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.RulesState{
		StateID:       rulesStateRowID,
		ActiveVersion: state.ActiveVersion,
		CacheKey:      state.CacheKey,
		UpdatedAt:     state.UpdatedAt,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "state_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"active_version": row.ActiveVersion,
			"cache_key":      row.CacheKey,
			"updated_at":     row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert rules state")
	}
	return nil
}

func (r *RulesRepository) GetVersion(ctx context.Context, version int) (ports.RulesVersion, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.RulesVersion{}, err
	}

	var row model.RulesVersion
	if err := db.Where("version = ?", version).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RulesVersion{}, ports.ErrRulesVersionNotFound
		}
		return ports.RulesVersion{}, errs.Wrap(err, "query rules version")
	}
	return mapRulesVersion(row), nil
}

func (r *RulesRepository) LatestVersion(ctx context.Context) (ports.RulesVersion, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return ports.RulesVersion{}, err
	}

	var row model.RulesVersion
	if err := db.Order("version desc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.RulesVersion{}, ports.ErrRulesVersionNotFound
		}
		return ports.RulesVersion{}, errs.Wrap(err, "query latest rules version")
	}
	return mapRulesVersion(row), nil
}

func (r *RulesRepository) CreateVersion(ctx context.Context, version ports.RulesVersion) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.RulesVersion{
		Version:       version.Version,
		Action:        version.Action,
		ConfigJSON:    version.ConfigJSON,
		DiffJSON:      version.DiffJSON,
		Checksum:      version.Checksum,
		Reason:        version.Reason,
		CreatedBy:     version.CreatedBy,
		SourceVersion: version.SourceVersion,
		CreatedAt:     version.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert rules version")
	}
	return nil
}

func (r *RulesRepository) ListVersions(ctx context.Context, limit int) ([]ports.RulesVersion, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.RulesVersion{}).Order("version desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.RulesVersion
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query rules versions")
	}

	items := make([]ports.RulesVersion, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRulesVersion(row))
	}
	return items, nil
}

func mapRulesVersion(row model.RulesVersion) ports.RulesVersion {
	return ports.RulesVersion{
		Version:       row.Version,
		Action:        row.Action,
		ConfigJSON:    row.ConfigJSON,
		DiffJSON:      row.DiffJSON,
		Checksum:      row.Checksum,
		Reason:        row.Reason,
		CreatedBy:     row.CreatedBy,
		SourceVersion: row.SourceVersion,
		CreatedAt:     row.CreatedAt,
	}
}

// touchTime keeps update stamps consistent across repositories.
func touchTime(at time.Time) time.Time {
	return at.UTC()
}
