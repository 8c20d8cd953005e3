package store

import (
	"time"

	"github.com/datallboy/gofetch/internal/domain"
)

// historyDBO maps to the transfer_history table
type historyDBO struct {
	ID           string  `db:"id"`
	URL          string  `db:"url"`
	Path         string  `db:"path"`
	Bytes        int64   `db:"bytes"`
	AverageSpeed float64 `db:"average_speed"`
	PeakSpeed    float64 `db:"peak_speed"`
	ElapsedMS    int64   `db:"elapsed_ms"`
	StartedAt    int64   `db:"started_at"`
}

// Mapper: DBO to Domain HistoryRecord
func (h *historyDBO) ToDomain() domain.HistoryRecord {
	return domain.HistoryRecord{
		ID:           h.ID,
		URL:          h.URL,
		Path:         h.Path,
		Bytes:        h.Bytes,
		AverageSpeed: h.AverageSpeed,
		PeakSpeed:    h.PeakSpeed,
		Elapsed:      time.Duration(h.ElapsedMS) * time.Millisecond,
		StartedAt:    time.Unix(h.StartedAt, 0),
	}
}

// Mapper: Domain HistoryRecord to DBO
func (h *historyDBO) FromDomain(rec domain.HistoryRecord) {
	h.ID = rec.ID
	h.URL = rec.URL
	h.Path = rec.Path
	h.Bytes = rec.Bytes
	h.AverageSpeed = rec.AverageSpeed
	h.PeakSpeed = rec.PeakSpeed
	h.ElapsedMS = rec.Elapsed.Milliseconds()

	if !rec.StartedAt.IsZero() {
		h.StartedAt = rec.StartedAt.Unix()
	} else {
		h.StartedAt = time.Now().Unix()
	}
}
