package engine

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"
	"golang.org/x/sync/errgroup"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/events"
	"github.com/datallboy/gofetch/internal/httpclient"
	"github.com/datallboy/gofetch/internal/infra/logger"
)

// Downloader runs one transfer at a time for a single URL. Start may be
// called again after a previous run ended, which is how a canceled
// transfer is resumed.
type Downloader struct {
	opts Options

	mu        sync.Mutex
	active    bool
	useMemory bool
	transfer  *domain.Transfer
	done      chan struct{}
	abort     context.CancelFunc
}

func NewDownloader(opts Options) *Downloader {
	opts.applyDefaults()
	return &Downloader{
		opts:      opts,
		useMemory: opts.UseMemoryCache,
	}
}

func (d *Downloader) UseMemoryCache() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.useMemory
}

// SetUseMemoryCache switches the sink mode for the next Start.
func (d *Downloader) SetUseMemoryCache(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return domain.NewError(domain.KindState, "set memory cache", domain.ErrTransferActive)
	}
	d.useMemory = on
	return nil
}

func (d *Downloader) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Transfer returns the transfer of the current or most recent run, or nil
// before the first Start.
func (d *Downloader) Transfer() *domain.Transfer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transfer
}

// Start runs the transfer to completion, cancellation or failure. The
// returned Summary is non-nil whenever the transfer got past the state
// check, including on error.
func (d *Downloader) Start(ctx context.Context) (*domain.Summary, error) {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return nil, domain.NewError(domain.KindState, "start", domain.ErrTransferActive)
	}

	id := d.opts.ID
	if id == "" {
		id = ksuid.New().String()
	}

	t := domain.NewTransfer(id, d.opts.URL, d.opts.Dir, d.opts.Name, d.opts.StagingSuffix)
	runCtx, abort := context.WithCancel(ctx)
	done := make(chan struct{})

	d.active = true
	d.transfer = t
	d.done = done
	d.abort = abort
	useMemory := d.useMemory
	d.mu.Unlock()

	s := &session{
		ctx:       runCtx,
		opts:      &d.opts,
		t:         t,
		bus:       events.NewBus(d.opts.Listeners...),
		log:       d.opts.Logger.With("transfer", id),
		useMemory: useMemory,
	}

	defer func() {
		// listeners drain before Stop returns
		s.bus.Close()
		abort()

		d.mu.Lock()
		d.active = false
		d.abort = nil
		d.mu.Unlock()
		close(done)
	}()

	summary, err := s.execute()
	if err != nil {
		next := domain.StateFailed
		if domain.IsCanceled(err) {
			next = domain.StateCanceled
			s.log.Info("Transfer canceled: %s", t.URL)
		} else {
			s.log.Error("Transfer failed: %s: %v", t.URL, err)
		}
		_ = t.Advance(next)
		summary.State = t.State()
		s.emit(domain.Event{Kind: domain.EventError, Err: err})
	}

	return summary, err
}

// Stop cancels the running transfer and blocks until both the stream and
// progress loops have exited, or ctx is done.
func (d *Downloader) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return nil
	}
	t, done, abort := d.transfer, d.done, d.abort
	d.mu.Unlock()

	t.Cancel()
	// Waiting on headers is not a chunk read; do not sit out the timeout.
	if t.State() <= domain.StateRequesting && abort != nil {
		abort()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// session is the state of a single Start.
type session struct {
	ctx       context.Context
	opts      *Options
	t         *domain.Transfer
	bus       *events.Bus
	log       *logger.Logger
	useMemory bool
	clock     *Clock
}

func (s *session) emit(evt domain.Event) {
	evt.TransferID = s.t.ID
	if evt.URL == "" {
		evt.URL = s.t.URL
	}
	s.bus.Publish(evt)
}

func (s *session) interrupted() bool {
	return s.t.Canceled() || s.ctx.Err() != nil
}

func canceledError(op string) error {
	return domain.NewError(domain.KindCanceled, op, domain.ErrCanceledByUser)
}

func (s *session) execute() (*domain.Summary, error) {
	t := s.t
	summary := &domain.Summary{
		ID:         t.ID,
		URL:        t.URL,
		State:      t.State(),
		TotalBytes: -1,
	}

	if err := t.Advance(domain.StateRequesting); err != nil {
		return summary, err
	}

	u, err := httpclient.ParseURL(t.URL)
	if err != nil {
		return summary, err
	}

	if t.Name() == "" {
		name := NameFromURL(u)
		if name == "" {
			name = fallbackName
		}
		t.SetName(name)
	}

	tentative := t.StagingPath()
	offset := s.resumeOffset(tentative)

	s.emit(domain.Event{Kind: domain.EventRequestCreated})
	resp, err := s.opts.Client.Get(s.ctx, t.URL, offset)
	if err != nil {
		if s.interrupted() {
			return summary, canceledError("request")
		}
		return summary, err
	}
	defer func() { resp.Body.Close() }()

	s.emit(domain.Event{Kind: domain.EventResponseReceived, URL: resp.FinalURL.String()})

	s.resolveName(resp.FinalURL)
	staging := t.StagingPath()
	summary.StagingPath = staging
	summary.Path = staging

	if staging != tentative {
		// the first request was shaped for the tentative staging file
		again := s.resumeOffset(staging)
		if resp.Partial || again > 0 {
			resp.Body.Close()
			retry, err := s.opts.Client.Get(s.ctx, t.URL, again)
			if err != nil {
				if s.interrupted() {
					return summary, canceledError("request")
				}
				return summary, err
			}
			resp = retry
		}
	}

	if err := os.MkdirAll(t.Dir, 0755); err != nil {
		return summary, domain.NewError(domain.KindIO, "prepare", fmt.Errorf("failed to create out_dir: %w", err))
	}

	var startOffset int64
	if resp.Partial {
		startOffset = resp.StartOffset
	}

	sink, err := s.openSink(staging, startOffset, resp.ContentLength)
	if err != nil {
		return summary, err
	}

	total := resp.TotalSize
	t.SetTotalBytes(total)
	t.AddTransferred(startOffset)
	summary.TotalBytes = total

	if startOffset > 0 {
		s.log.Info("Resuming %s at %s of %s", t.Name(), humanize.Bytes(uint64(startOffset)), sizeLabel(total))
	} else {
		s.log.Info("Starting download for: %s (%s)", t.Name(), sizeLabel(total))
	}
	s.emit(domain.Event{Kind: domain.EventDownloadStarted, TotalBytes: total, Fetched: startOffset})

	if err := t.Advance(domain.StateStreaming); err != nil {
		sink.Close(false)
		return summary, err
	}

	completed, peak, streamErr := s.stream(resp.Body, sink, startOffset)

	summary.Bytes = s.clock.Total()
	summary.BytesOnDisk = startOffset + summary.Bytes

	if streamErr != nil || !completed {
		_ = sink.Close(false)
		if s.useMemory {
			summary.BytesOnDisk = 0
		}
		if streamErr != nil && !s.interrupted() {
			return summary, streamErr
		}
		return summary, canceledError("stream")
	}

	return s.finalize(summary, sink, peak)
}

// resumeOffset returns the ledger offset for staging when the file on disk
// still matches it. Memory mode always starts at zero.
func (s *session) resumeOffset(staging string) int64 {
	if s.useMemory || s.opts.Ledger == nil {
		return 0
	}

	n, ok, err := s.opts.Ledger.Lookup(s.ctx, staging)
	if err != nil {
		s.log.Warn("Resume lookup failed for %s: %v", staging, err)
		return 0
	}
	if !ok || n <= 0 {
		return 0
	}

	info, err := os.Stat(staging)
	if err != nil || info.Size() != n {
		s.log.Info("Ignoring resume record for %s: staging file does not match %d bytes", staging, n)
		return 0
	}
	return n
}

func (s *session) resolveName(finalURL *url.URL) {
	server := NameFromURL(finalURL)
	requested := s.t.Name()
	if server == "" || server == requested {
		return
	}

	if s.opts.ResolveConflict == nil {
		return
	}
	if s.opts.ResolveConflict(domain.NamingConflict{Requested: requested, Server: server}) {
		s.log.Info("Using server file name %q instead of %q", server, requested)
		s.t.SetName(server)
	}
}

func (s *session) openSink(staging string, offset, contentLength int64) (Sink, error) {
	if s.useMemory {
		return newMemorySink(staging, contentLength), nil
	}

	sink, err := openDiskSink(staging, offset)
	if err != nil {
		return nil, err
	}
	if sink.Offset() != offset {
		sink.Close(false)
		return nil, domain.NewError(domain.KindIO, "open staging file",
			fmt.Errorf("%s changed size since the resume lookup", staging))
	}
	return sink, nil
}

// stream runs the chunk loop and the progress loop side by side. The
// progress loop stops once done is closed, before finalize runs.
func (s *session) stream(body io.Reader, sink Sink, startOffset int64) (bool, float64, error) {
	s.clock = newClock(s.opts.now)

	reporter := &progressReporter{
		clock:    s.clock,
		interval: s.opts.PollInterval,
		window:   s.opts.Window,
		baseline: startOffset,
		canceled: s.interrupted,
		emit:     s.emit,
	}

	reader := NewStreamReader(s.opts.ChunkSize, func(n int) {
		s.clock.Record(int64(n))
		s.t.AddTransferred(int64(n))
	}, s.interrupted)

	done := make(chan struct{})
	var completed bool

	g, gctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		defer close(done)
		c, err := reader.Copy(body, sink)
		completed = c
		return err
	})
	g.Go(func() error {
		reporter.Run(gctx, done)
		return nil
	})

	err := g.Wait()
	return completed, reporter.Peak(), err
}

func (s *session) finalize(summary *domain.Summary, sink Sink, peak float64) (*domain.Summary, error) {
	t := s.t
	if err := t.Advance(domain.StateFinalizing); err != nil {
		sink.Close(false)
		return summary, err
	}

	if err := sink.Close(true); err != nil {
		return summary, err
	}

	if total := t.TotalBytes(); total >= 0 && summary.BytesOnDisk != total {
		return summary, domain.NewError(domain.KindIO, "verify length",
			fmt.Errorf("%w: have %d of %d bytes", domain.ErrShortTransfer, summary.BytesOnDisk, total))
	}

	final, err := NextAvailablePath(t.FinalPath())
	if err != nil {
		return summary, domain.NewError(domain.KindIO, "finalize", err)
	}

	if err := os.Rename(summary.StagingPath, final); err != nil {
		return summary, domain.NewError(domain.KindIO, "finalize", err)
	}

	stats := domain.Stats{
		Elapsed:      s.clock.Elapsed(),
		AverageSpeed: s.clock.AverageSpeed(),
		PeakSpeed:    peak,
	}

	if err := t.Advance(domain.StateCompleted); err != nil {
		return summary, err
	}

	summary.Path = final
	summary.State = domain.StateCompleted
	summary.Stats = stats

	s.log.Info("Finished %s: %s in %s (avg %s/s)", final,
		humanize.Bytes(uint64(summary.BytesOnDisk)), stats.Elapsed, humanize.Bytes(uint64(stats.AverageSpeed)))

	s.emit(domain.Event{
		Kind:    domain.EventFinished,
		Fetched: summary.BytesOnDisk,
		Path:    final,
		Stats:   stats,
	})

	return summary, nil
}

func sizeLabel(total int64) string {
	if total < 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(total))
}
