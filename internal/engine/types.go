package engine

import (
	"context"
	"time"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/events"
	"github.com/datallboy/gofetch/internal/httpclient"
	"github.com/datallboy/gofetch/internal/infra/logger"
)

const (
	DefaultStagingSuffix = ".partial"
	DefaultPollInterval  = time.Second
	DefaultWindow        = 5 * time.Second
)

// ResumeLedger tells the engine how many bytes of a staging file are
// already valid.
type ResumeLedger interface {
	Lookup(ctx context.Context, stagingPath string) (int64, bool, error)
}

// Store is the persistence the Manager needs on top of ResumeLedger.
type Store interface {
	ResumeLedger
	SaveResume(ctx context.Context, rec domain.ResumeRecord) error
	DeleteResume(ctx context.Context, stagingPath string) error
	AddHistory(ctx context.Context, rec domain.HistoryRecord) error
	ListHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error)
}

// ConflictResolver decides whether the server's file name replaces the
// requested one. It runs synchronously on the download goroutine.
type ConflictResolver func(c domain.NamingConflict) bool

// UseServerName adopts the server's name without asking.
func UseServerName(domain.NamingConflict) bool { return true }

type Options struct {
	URL  string
	Dir  string
	Name string

	// ID is reused by every Start; a fresh ksuid is generated when empty.
	ID string

	StagingSuffix  string
	UseMemoryCache bool
	ChunkSize      int
	PollInterval   time.Duration
	Window         time.Duration

	Client          *httpclient.Client
	Ledger          ResumeLedger
	Logger          *logger.Logger
	Listeners       []events.Listener
	ResolveConflict ConflictResolver

	now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.StagingSuffix == "" {
		o.StagingSuffix = DefaultStagingSuffix
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Client == nil {
		o.Client = httpclient.NewClient(httpclient.DefaultOptions())
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.now == nil {
		o.now = time.Now
	}
}
