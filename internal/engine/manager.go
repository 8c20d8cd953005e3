package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/events"
	"github.com/datallboy/gofetch/internal/infra/logger"
)

// maxFinished bounds how many finished transfers stay queryable in memory.
const maxFinished = 256

// Request describes one transfer submitted to the Manager.
type Request struct {
	URL            string
	Dir            string
	Name           string
	UseMemoryCache bool

	ResolveConflict ConflictResolver
	Listeners       []events.Listener
}

type job struct {
	id      string
	url     string
	dl      *Downloader
	done    chan struct{}
	stopped atomic.Bool
}

func (j *job) info() domain.Info {
	if t := j.dl.Transfer(); t != nil {
		return t.Snapshot()
	}
	return domain.Info{ID: j.id, URL: j.url, State: domain.StateNotStarted, TotalBytes: -1}
}

// Manager owns every running Downloader, keeps at most one per URL and
// persists resume records and history as transfers end.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	log      *logger.Logger
	defaults Options

	active   map[string]*job
	byURL    map[string]string
	finished map[string]domain.Info

	wg sync.WaitGroup
}

// NewManager takes defaults for every Downloader it creates. store may be
// nil, in which case nothing is persisted and resume is disabled.
func NewManager(store Store, log *logger.Logger, defaults Options) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	defaults.Logger = log
	if store != nil {
		defaults.Ledger = store
	}
	defaults.applyDefaults()

	return &Manager{
		store:    store,
		log:      log,
		defaults: defaults,
		active:   make(map[string]*job),
		byURL:    make(map[string]string),
		finished: make(map[string]domain.Info),
	}
}

func (m *Manager) register(req Request) (*job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byURL[req.URL]; ok {
		return nil, domain.NewError(domain.KindState, "start "+id, domain.ErrTransferActive)
	}

	opts := m.defaults
	opts.ID = ksuid.New().String()
	opts.URL = req.URL
	opts.Name = req.Name
	opts.UseMemoryCache = req.UseMemoryCache
	opts.ResolveConflict = req.ResolveConflict
	if req.Dir != "" {
		opts.Dir = req.Dir
	}
	opts.Listeners = append(append([]events.Listener{}, m.defaults.Listeners...), req.Listeners...)

	j := &job{
		id:   opts.ID,
		url:  req.URL,
		dl:   NewDownloader(opts),
		done: make(chan struct{}),
	}
	m.active[j.id] = j
	m.byURL[req.URL] = j.id
	return j, nil
}

// Download runs a transfer on the calling goroutine.
func (m *Manager) Download(ctx context.Context, req Request) (*domain.Summary, error) {
	j, err := m.register(req)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, j)
}

// Start runs a transfer in the background and returns its initial view.
// The transfer outlives ctx; use Stop to end it.
func (m *Manager) Start(ctx context.Context, req Request) (domain.Info, error) {
	j, err := m.register(req)
	if err != nil {
		return domain.Info{}, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_, _ = m.run(context.WithoutCancel(ctx), j)
	}()

	return j.info(), nil
}

func (m *Manager) run(ctx context.Context, j *job) (*domain.Summary, error) {
	defer close(j.done)

	if j.stopped.Load() {
		err := canceledError("start")
		m.finalizeJob(j, err)
		return nil, err
	}

	summary, err := j.dl.Start(ctx)
	m.persist(ctx, j, summary, err)
	m.finalizeJob(j, err)
	return summary, err
}

// persist records where a stopped transfer can resume from, or moves a
// completed one into history.
func (m *Manager) persist(ctx context.Context, j *job, summary *domain.Summary, err error) {
	if m.store == nil || summary == nil || summary.StagingPath == "" {
		return
	}

	// the caller's ctx may be what canceled the transfer
	ctx = context.WithoutCancel(ctx)

	if err == nil {
		if derr := m.store.DeleteResume(ctx, summary.StagingPath); derr != nil {
			m.log.Warn("Could not clear resume record for %s: %v", summary.StagingPath, derr)
		}

		rec := domain.HistoryRecord{
			ID:           summary.ID,
			URL:          summary.URL,
			Path:         summary.Path,
			Bytes:        summary.BytesOnDisk,
			AverageSpeed: summary.Stats.AverageSpeed,
			PeakSpeed:    summary.Stats.PeakSpeed,
			Elapsed:      summary.Stats.Elapsed,
			StartedAt:    j.startedAt(),
		}
		if herr := m.store.AddHistory(ctx, rec); herr != nil {
			m.log.Error("Failed to save history for %s: %v", summary.ID, herr)
		}
		return
	}

	if summary.BytesOnDisk <= 0 || j.dl.UseMemoryCache() {
		return
	}

	rec := domain.ResumeRecord{
		StagingPath:      summary.StagingPath,
		URL:              summary.URL,
		TransferredBytes: summary.BytesOnDisk,
		UpdatedAt:        time.Now(),
	}
	if serr := m.store.SaveResume(ctx, rec); serr != nil {
		m.log.Error("Failed to save resume record for %s: %v", summary.StagingPath, serr)
		return
	}
	m.log.Info("Saved resume point for %s at %d bytes", summary.StagingPath, summary.BytesOnDisk)
}

func (j *job) startedAt() time.Time {
	if t := j.dl.Transfer(); t != nil {
		return t.StartedAt
	}
	return time.Now()
}

func (m *Manager) finalizeJob(j *job, err error) {
	info := j.info()
	if err != nil {
		if domain.IsCanceled(err) || errors.Is(err, context.Canceled) {
			info.Error = "Cancelled by user"
		} else {
			info.Error = err.Error()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, j.id)
	if m.byURL[j.url] == j.id {
		delete(m.byURL, j.url)
	}

	m.finished[j.id] = info
	if len(m.finished) > maxFinished {
		// ksuids sort by creation time
		oldest := ""
		for id := range m.finished {
			if oldest == "" || id < oldest {
				oldest = id
			}
		}
		delete(m.finished, oldest)
	}
}

// Stop cancels a running transfer and waits for it to wind down.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.RLock()
	j, ok := m.active[id]
	m.mu.RUnlock()

	if !ok {
		return domain.NewError(domain.KindState, "stop "+id, domain.ErrTransferNotFound)
	}

	j.stopped.Store(true)

	// A background job may not have reached Start yet; keep stopping until
	// it has either seen the flag or been canceled mid-run.
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := j.dl.Stop(ctx); err != nil {
			return err
		}

		select {
		case <-j.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// StopAll cancels every running transfer.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := m.Stop(ctx, id); err != nil && !errors.Is(err, domain.ErrTransferNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every background transfer has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Get searches running transfers first, then recently finished ones.
func (m *Manager) Get(id string) (domain.Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if j, ok := m.active[id]; ok {
		return j.info(), true
	}
	info, ok := m.finished[id]
	return info, ok
}

// List returns running transfers ordered by ID, oldest first.
func (m *Manager) List() []domain.Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.Info, 0, len(m.active))
	for _, j := range m.active {
		items = append(items, j.info())
	}
	sort.Slice(items, func(a, b int) bool { return items[a].ID < items[b].ID })
	return items
}

func (m *Manager) History(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.ListHistory(ctx, limit)
}
