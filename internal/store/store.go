// Package store persists the history of preparation runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/referral-cli/internal/model"
)

// ErrRunNotFound is returned by GetRun and FinishRun for an unknown run id.
var ErrRunNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for preparation runs.
type Store interface {
	// CreateRun records a run as it starts.
	CreateRun(ctx context.Context, run model.PreparationRun) error
	// FinishRun replaces the stored digest of a run with its final state.
	FinishRun(ctx context.Context, run model.PreparationRun) error
	GetRun(ctx context.Context, runID string) (*model.PreparationRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PreparationRun, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres") and runs its
// migration.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite", "":
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

const defaultListLimit = 100

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return defaultListLimit
	}
	return filter.Limit
}
