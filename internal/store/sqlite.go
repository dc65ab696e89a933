package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/referral-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS preparation_runs (
	id          TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	digest      TEXT NOT NULL,
	error       TEXT,
	started_at  TEXT NOT NULL,
	finished_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_preparation_runs_status ON preparation_runs(status);
CREATE INDEX IF NOT EXISTS idx_preparation_runs_started_at ON preparation_runs(started_at);
`

// sqliteTime sorts lexically in chronological order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.PreparationRun) error {
	digest, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preparation_runs (id, source_path, status, digest, error, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourcePath, string(run.Status), string(digest), nullString(run.Error), formatTime(run.StartedAt),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run model.PreparationRun) error {
	digest, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE preparation_runs SET status = ?, digest = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), string(digest), nullString(run.Error), formatTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "sqlite: finish run %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.PreparationRun, error) {
	var digest string
	err := s.db.QueryRowContext(ctx,
		`SELECT digest FROM preparation_runs WHERE id = ?`, runID,
	).Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return decodeRun([]byte(digest))
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PreparationRun, error) {
	query := `SELECT digest FROM preparation_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.PreparationRun
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r, err := decodeRun([]byte(digest))
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

func decodeRun(digest []byte) (*model.PreparationRun, error) {
	var r model.PreparationRun
	if err := json.Unmarshal(digest, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run")
	}
	return &r, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(sqliteTime)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
