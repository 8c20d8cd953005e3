package domain

import "time"

// ResumeRecord says how many bytes of a staging file are already valid on disk.
type ResumeRecord struct {
	StagingPath      string    `json:"staging_path"`
	URL              string    `json:"url"`
	TransferredBytes int64     `json:"transferred_bytes"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Stats are the figures reported when a transfer finishes.
type Stats struct {
	Elapsed      time.Duration `json:"elapsed"`
	AverageSpeed float64       `json:"average_speed"`
	PeakSpeed    float64       `json:"peak_speed"`
}

// Summary is the outcome of one engine run.
type Summary struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Path        string `json:"path"`
	StagingPath string `json:"staging_path"`
	State       State  `json:"state"`
	// Bytes received during this run.
	Bytes int64 `json:"bytes"`
	// BytesOnDisk includes the resumed offset.
	BytesOnDisk int64 `json:"bytes_on_disk"`
	TotalBytes  int64 `json:"total_bytes"`
	Stats       Stats `json:"stats"`
}

// HistoryRecord is a finished transfer kept for listing.
type HistoryRecord struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	Path         string        `json:"path"`
	Bytes        int64         `json:"bytes"`
	AverageSpeed float64       `json:"average_speed"`
	PeakSpeed    float64       `json:"peak_speed"`
	Elapsed      time.Duration `json:"elapsed"`
	StartedAt    time.Time     `json:"started_at"`
}
