package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRulesVersionNotFound = errors.New("rules version not found")
	ErrRulesStateNotFound   = errors.New("rules state not initialized")
)

// RulesVersion is one immutable row of the append-only rules log.
type RulesVersion struct {
	Version       int
	Action        string
	ConfigJSON    string
	DiffJSON      string
	Checksum      string
	Reason        string
	CreatedBy     *string
	SourceVersion *int
	CreatedAt     time.Time
}

// RulesState is the singleton pointer at the active version.
type RulesState struct {
	ActiveVersion int
	CacheKey      string
	UpdatedAt     time.Time
}

type RulesRepository interface {
	GetState(ctx context.Context) (RulesState, error)
	// SaveState upserts the one-and-only state row.
	SaveState(ctx context.Context, state RulesState) error
	GetVersion(ctx context.Context, version int) (RulesVersion, error)
	// LatestVersion returns ErrRulesVersionNotFound when the log is empty.
	LatestVersion(ctx context.Context) (RulesVersion, error)
	CreateVersion(ctx context.Context, version RulesVersion) error
	// ListVersions returns newest-first history.
	ListVersions(ctx context.Context, limit int) ([]RulesVersion, error)
}
