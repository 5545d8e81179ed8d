package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/triguard/subro-cli/internal/feature"
	"github.com/triguard/subro-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	config     TEXT,
	metrics    TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS artifacts (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS models (
	run_id     TEXT PRIMARY KEY REFERENCES runs(id),
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	claim_number TEXT NOT NULL,
	probability  REAL NOT NULL,
	label        INTEGER NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_predictions_run_id ON predictions(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, configJSON string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, config, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), configJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Config:    configJSON,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, metrics *model.RunMetrics) error {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, metrics = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(metricsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), runErr.Error(), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, config, metrics, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) LatestCompleteRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, config, metrics, error, created_at, updated_at FROM runs
		 WHERE status = ? ORDER BY created_at DESC LIMIT 1`,
		string(model.RunStatusComplete),
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, config, metrics, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveArtifacts(ctx context.Context, runID string, arts feature.Artifacts) error {
	payload, err := json.Marshal(arts)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal artifacts")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (run_id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET payload = excluded.payload`,
		runID, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save artifacts for run %s", runID)
}

func (s *SQLiteStore) GetArtifacts(ctx context.Context, runID string) (feature.Artifacts, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM artifacts WHERE run_id = ?`, runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("artifacts not found for run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get artifacts")
	}

	var arts feature.Artifacts
	if err := json.Unmarshal([]byte(payload), &arts); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal artifacts")
	}
	return arts, nil
}

func (s *SQLiteStore) SaveBundle(ctx context.Context, runID string, bundle []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO models (run_id, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET payload = excluded.payload`,
		runID, string(bundle), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save bundle for run %s", runID)
}

func (s *SQLiteStore) GetBundle(ctx context.Context, runID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM models WHERE run_id = ?`, runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("bundle not found for run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get bundle")
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) SavePredictions(ctx context.Context, runID string, preds []model.Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin predictions tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO predictions (id, run_id, claim_number, probability, label, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare predictions insert")
	}
	defer stmt.Close()

	for _, p := range preds {
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), runID, p.ClaimNumber, p.Probability, p.Label, now); err != nil {
			return eris.Wrapf(err, "sqlite: insert prediction %s", p.ClaimNumber)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit predictions")
}

func (s *SQLiteStore) ListPredictions(ctx context.Context, runID string) ([]model.Prediction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT claim_number, probability, label FROM predictions WHERE run_id = ? ORDER BY created_at, claim_number`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list predictions")
	}
	defer rows.Close()

	var preds []model.Prediction
	for rows.Next() {
		var p model.Prediction
		if err := rows.Scan(&p.ClaimNumber, &p.Probability, &p.Label); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prediction")
		}
		preds = append(preds, p)
	}
	return preds, eris.Wrap(rows.Err(), "sqlite: list predictions iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var config, errMsg sql.NullString
	var metricsJSON sql.NullString

	err := row.Scan(&r.ID, &r.Status, &config, &metricsJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Config = config.String
	r.Error = errMsg.String
	if metricsJSON.Valid {
		r.Metrics = &model.RunMetrics{}
		if err := json.Unmarshal([]byte(metricsJSON.String), r.Metrics); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
		}
	}
	return &r, nil
}
