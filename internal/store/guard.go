package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/referral-cli/internal/model"
	"github.com/sells-group/referral-cli/internal/resilience"
)

// Guarded routes run operations through a circuit breaker so an unreachable
// database fails fast. Transient errors are retried before they count
// against the breaker. ErrRunNotFound is neither retried nor counted.
type Guarded struct {
	Store
	cb    *resilience.Breaker
	retry resilience.RetryConfig
}

// Guard wraps s with a breaker built from cfg and the default retry policy.
func Guard(s Store, cfg resilience.BreakerConfig) *Guarded {
	if cfg.Ignore == nil {
		cfg.Ignore = IsNotFound
	}
	return &Guarded{
		Store: s,
		cb:    resilience.NewBreaker(cfg),
		retry: resilience.DefaultRetryConfig(),
	}
}

// WithRetry replaces the retry policy. ShouldRetry is always IsTransient.
func (g *Guarded) WithRetry(cfg resilience.RetryConfig) *Guarded {
	g.retry = cfg
	return g
}

// IsNotFound reports whether err is ErrRunNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsTransient reports whether a store error is worth retrying: an error
// already marked transient, a busy or locked SQLite database, or a Postgres
// error that pgconn reports as safe to retry.
func IsTransient(err error) bool {
	if err == nil || IsNotFound(err) {
		return false
	}
	var te *resilience.TransientError
	if errors.As(err, &te) || pgconn.SafeToRetry(err) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// attempt runs fn under the retry policy, marking transient store errors so
// the retry loop picks them up.
func (g *Guarded) attempt(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cfg := g.retry
	cfg.ShouldRetry = resilience.IsTransient
	cfg.OnRetry = resilience.RetryLogger("store", op)

	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		err := fn(ctx)
		if IsTransient(err) {
			return resilience.NewTransientError(err)
		}
		return err
	})
}

func (g *Guarded) CreateRun(ctx context.Context, run model.PreparationRun) error {
	return g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.attempt(ctx, "create_run", func(ctx context.Context) error {
			return g.Store.CreateRun(ctx, run)
		})
	})
}

func (g *Guarded) FinishRun(ctx context.Context, run model.PreparationRun) error {
	return g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.attempt(ctx, "finish_run", func(ctx context.Context) error {
			return g.Store.FinishRun(ctx, run)
		})
	})
}

func (g *Guarded) GetRun(ctx context.Context, runID string) (*model.PreparationRun, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) (*model.PreparationRun, error) {
		var run *model.PreparationRun
		err := g.attempt(ctx, "get_run", func(ctx context.Context) error {
			var err error
			run, err = g.Store.GetRun(ctx, runID)
			return err
		})
		return run, err
	})
}

func (g *Guarded) ListRuns(ctx context.Context, filter RunFilter) ([]model.PreparationRun, error) {
	return resilience.ExecuteVal(ctx, g.cb, func(ctx context.Context) ([]model.PreparationRun, error) {
		var runs []model.PreparationRun
		err := g.attempt(ctx, "list_runs", func(ctx context.Context) error {
			var err error
			runs, err = g.Store.ListRuns(ctx, filter)
			return err
		})
		return runs, err
	})
}
