package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/datallboy/gofetch/internal/domain"
)

// Lookup returns the recorded byte count for stagingPath. A missing record
// is reported as ok == false, not as an error.
func (s *PersistentStore) Lookup(ctx context.Context, stagingPath string) (int64, bool, error) {
	rec, err := s.GetResume(ctx, stagingPath)
	if err != nil {
		return 0, false, fmt.Errorf("lookup resume record: %w", err)
	}
	if rec == nil {
		return 0, false, nil
	}
	return rec.TransferredBytes, true, nil
}

func (s *PersistentStore) SaveResume(ctx context.Context, rec domain.ResumeRecord) error {
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	query := `INSERT OR REPLACE INTO resume_records (staging_path, url, transferred_bytes, updated_at)
              VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, rec.StagingPath, rec.URL, rec.TransferredBytes, updated.Unix())
	if err != nil {
		return fmt.Errorf("save resume record: %w", err)
	}
	return nil
}

func (s *PersistentStore) DeleteResume(ctx context.Context, stagingPath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM resume_records WHERE staging_path = ?", stagingPath)
	return err
}

// GetResume returns the full record, or nil when none exists.
func (s *PersistentStore) GetResume(ctx context.Context, stagingPath string) (*domain.ResumeRecord, error) {
	rec := &domain.ResumeRecord{}
	var updated int64

	err := s.db.QueryRowContext(ctx,
		"SELECT staging_path, url, transferred_bytes, updated_at FROM resume_records WHERE staging_path = ?",
		stagingPath).Scan(&rec.StagingPath, &rec.URL, &rec.TransferredBytes, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.UpdatedAt = time.Unix(updated, 0)
	return rec, nil
}
