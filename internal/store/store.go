package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andresmejia3/tactset/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL run catalog.
type Store struct {
	conn *pgx.Conn
}

// Run is one dataset build.
type Run struct {
	ID         uuid.UUID
	BasePath   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Written    int
	Skipped    int
	Error      string // empty unless the build failed
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the catalog tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS dataset_runs (
			id UUID PRIMARY KEY,
			base_path TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			written INT NOT NULL DEFAULT 0,
			skipped INT NOT NULL DEFAULT 0,
			error TEXT
		);
		CREATE TABLE IF NOT EXISTS dataset_samples (
			run_id UUID NOT NULL REFERENCES dataset_runs(id) ON DELETE CASCADE,
			idx INT NOT NULL,
			source_path TEXT NOT NULL,
			source_sha TEXT NOT NULL,
			center_x INT NOT NULL,
			center_y INT NOT NULL,
			radius INT NOT NULL,
			color_path TEXT NOT NULL,
			normal_path TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
		CREATE INDEX IF NOT EXISTS dataset_samples_source_sha_idx ON dataset_samples (source_sha);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// BeginRun registers a new build and returns its ID.
func (s *Store) BeginRun(ctx context.Context, basePath string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.conn.Exec(ctx, `INSERT INTO dataset_runs (id, base_path) VALUES ($1, $2)`, id, basePath)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// RecordSample stores one written pair. Re-recording an index overwrites it.
func (s *Store) RecordSample(ctx context.Context, runID uuid.UUID, rec types.SampleRecord) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO dataset_samples (run_id, idx, source_path, source_sha, center_x, center_y, radius, color_path, normal_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, idx) DO UPDATE SET
			source_path = EXCLUDED.source_path,
			source_sha = EXCLUDED.source_sha,
			center_x = EXCLUDED.center_x,
			center_y = EXCLUDED.center_y,
			radius = EXCLUDED.radius,
			color_path = EXCLUDED.color_path,
			normal_path = EXCLUDED.normal_path
	`, runID, rec.Index, rec.SourcePath, rec.SourceSHA, rec.Circle.CenterX, rec.Circle.CenterY, rec.Circle.Radius, rec.ColorPath, rec.NormalPath)
	return err
}

// FinishRun stamps the run with its totals.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, written, skipped int) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE dataset_runs SET finished_at = NOW(), written = $2, skipped = $3 WHERE id = $1
	`, runID, written, skipped)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// FailRun closes a run that aborted, keeping the totals reached so far.
func (s *Store) FailRun(ctx context.Context, runID uuid.UUID, written, skipped int, cause string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE dataset_runs SET finished_at = NOW(), written = $2, skipped = $3, error = $4 WHERE id = $1
	`, runID, written, skipped, cause)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, base_path, started_at, finished_at, written, skipped, COALESCE(error, '')
		FROM dataset_runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.BasePath, &r.StartedAt, &r.FinishedAt, &r.Written, &r.Skipped, &r.Error); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunSamples returns the recorded samples of a run in index order.
func (s *Store) RunSamples(ctx context.Context, runID uuid.UUID) ([]types.SampleRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT idx, source_path, source_sha, center_x, center_y, radius, color_path, normal_path
		FROM dataset_samples WHERE run_id = $1 ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []types.SampleRecord
	for rows.Next() {
		var r types.SampleRecord
		if err := rows.Scan(&r.Index, &r.SourcePath, &r.SourceSHA, &r.Circle.CenterX, &r.Circle.CenterY, &r.Circle.Radius, &r.ColorPath, &r.NormalPath); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS dataset_samples CASCADE;
		DROP TABLE IF EXISTS dataset_runs CASCADE;
	`)
	return err
}
