package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/referral-cli/internal/ingest"
	"github.com/sells-group/referral-cli/internal/resilience"
	"github.com/sells-group/referral-cli/internal/store"
)

// appEnv holds the dependencies shared by the data commands.
type appEnv struct {
	Manager *ingest.Manager
	// Store is nil when run history could not be opened.
	Store store.Store
}

// Close releases the run store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	dsn := cfg.Store.DatabaseURL
	if cfg.Store.Driver == "sqlite" && dsn == "" {
		dsn = "referral.db"
	}
	st, err := store.Open(ctx, cfg.Store.Driver, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}
	return st, nil
}

// initEnv validates the config for mode and builds the ingestion manager.
// With withRuns, run history is attached when the store opens, behind a
// circuit breaker; a store failure only disables history.
func initEnv(ctx context.Context, mode string, withRuns bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	opts, err := ingest.OptionsFromConfig(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "load mappings")
	}

	env := &appEnv{}
	if withRuns {
		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("run history disabled", zap.Error(err))
		} else {
			g := store.Guard(st, resilience.BreakerConfig{})
			env.Store = g
			opts.Runs = g
		}
	}
	env.Manager = ingest.NewManager(opts)
	return env, nil
}
