package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datallboy/gofetch/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS resume_records (
    staging_path      TEXT PRIMARY KEY,
    url               TEXT NOT NULL DEFAULT '',
    transferred_bytes BIGINT NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transfer_history (
    id            TEXT PRIMARY KEY,
    url           TEXT NOT NULL,
    path          TEXT NOT NULL,
    bytes         BIGINT NOT NULL,
    average_speed DOUBLE PRECISION NOT NULL DEFAULT 0,
    peak_speed    DOUBLE PRECISION NOT NULL DEFAULT 0,
    elapsed_ms    BIGINT NOT NULL DEFAULT 0,
    started_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transfer_history_started_at ON transfer_history (started_at);
`

// PostgresStore is the shared-database backend for deployments that run
// several gofetch servers against one ledger.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Lookup(ctx context.Context, stagingPath string) (int64, bool, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT transferred_bytes FROM resume_records WHERE staging_path = $1", stagingPath).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup resume record: %w", err)
	}
	return n, true, nil
}

func (s *PostgresStore) SaveResume(ctx context.Context, rec domain.ResumeRecord) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
        INSERT INTO resume_records (staging_path, url, transferred_bytes, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (staging_path) DO UPDATE
        SET url = EXCLUDED.url, transferred_bytes = EXCLUDED.transferred_bytes, updated_at = EXCLUDED.updated_at`,
		rec.StagingPath, rec.URL, rec.TransferredBytes, updated)
	if err != nil {
		return fmt.Errorf("save resume record: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteResume(ctx context.Context, stagingPath string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM resume_records WHERE staging_path = $1", stagingPath)
	return err
}

func (s *PostgresStore) AddHistory(ctx context.Context, rec domain.HistoryRecord) error {
	var dbo historyDBO
	dbo.FromDomain(rec)

	_, err := s.pool.Exec(ctx, `
        INSERT INTO transfer_history (id, url, path, bytes, average_speed, peak_speed, elapsed_ms, started_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO NOTHING`,
		dbo.ID, dbo.URL, dbo.Path, dbo.Bytes, dbo.AverageSpeed, dbo.PeakSpeed, dbo.ElapsedMS,
		time.Unix(dbo.StartedAt, 0))
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	query := `SELECT id, url, path, bytes, average_speed, peak_speed, elapsed_ms, started_at
        FROM transfer_history ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.HistoryRecord, 0)
	for rows.Next() {
		var dbo historyDBO
		var started time.Time
		if err := rows.Scan(&dbo.ID, &dbo.URL, &dbo.Path, &dbo.Bytes, &dbo.AverageSpeed, &dbo.PeakSpeed, &dbo.ElapsedMS, &started); err != nil {
			return nil, err
		}
		dbo.StartedAt = started.Unix()
		records = append(records, dbo.ToDomain())
	}

	return records, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
