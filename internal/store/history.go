package store

import (
	"context"
	"fmt"

	"github.com/datallboy/gofetch/internal/domain"
)

func (s *PersistentStore) AddHistory(ctx context.Context, rec domain.HistoryRecord) error {
	var dbo historyDBO
	dbo.FromDomain(rec)

	query := `INSERT OR REPLACE INTO transfer_history
              (id, url, path, bytes, average_speed, peak_speed, elapsed_ms, started_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		dbo.ID,
		dbo.URL,
		dbo.Path,
		dbo.Bytes,
		dbo.AverageSpeed,
		dbo.PeakSpeed,
		dbo.ElapsedMS,
		dbo.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// ListHistory returns the newest records first. limit <= 0 means all.
func (s *PersistentStore) ListHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, url, path, bytes, average_speed, peak_speed, elapsed_ms, started_at
        FROM transfer_history ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.HistoryRecord, 0)
	for rows.Next() {
		var dbo historyDBO
		if err := rows.Scan(&dbo.ID, &dbo.URL, &dbo.Path, &dbo.Bytes, &dbo.AverageSpeed, &dbo.PeakSpeed, &dbo.ElapsedMS, &dbo.StartedAt); err != nil {
			return nil, err
		}
		records = append(records, dbo.ToDomain())
	}

	return records, rows.Err()
}
