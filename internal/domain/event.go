package domain

import "time"

type EventKind string

const (
	EventRequestCreated   EventKind = "request_created"
	EventResponseReceived EventKind = "response_received"
	EventDownloadStarted  EventKind = "download_started"
	EventProgress         EventKind = "progress"
	EventFinished         EventKind = "finished"
	EventError            EventKind = "error"
)

// Event is what the engine publishes to observers. Only the fields
// relevant to Kind are set.
type Event struct {
	Kind       EventKind `json:"kind"`
	TransferID string    `json:"transfer_id"`
	URL        string    `json:"url,omitempty"`

	// download_started: full resource size, -1 when unknown
	TotalBytes int64 `json:"total_bytes,omitempty"`

	// progress and finished: bytes on disk so far. download_started: the
	// resumed offset.
	Fetched int64   `json:"fetched,omitempty"`
	Speed   float64 `json:"speed,omitempty"`

	// finished
	Path  string `json:"path,omitempty"`
	Stats Stats  `json:"stats,omitempty"`

	Err error `json:"-"`

	Timestamp time.Time `json:"timestamp"`
}

// NamingConflict is raised when the server's file name differs from the
// requested one.
type NamingConflict struct {
	Requested string
	Server    string
}
