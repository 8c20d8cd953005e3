package engine

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/events"
)

type memStore struct {
	*memLedger
	mu      sync.Mutex
	history []domain.HistoryRecord
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{memLedger: newMemLedger()}
}

func (s *memStore) SaveResume(_ context.Context, rec domain.ResumeRecord) error {
	s.set(rec.StagingPath, rec.TransferredBytes)
	return nil
}

func (s *memStore) DeleteResume(_ context.Context, stagingPath string) error {
	s.memLedger.mu.Lock()
	delete(s.offsets, stagingPath)
	s.memLedger.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, stagingPath)
	return nil
}

func (s *memStore) AddHistory(_ context.Context, rec domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec)
	return nil
}

func (s *memStore) ListHistory(_ context.Context, limit int) ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.HistoryRecord(nil), s.history...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func TestManagerDownloadRecordsHistory(t *testing.T) {
	data := payload(5000)
	srv := httptest.NewServer(&fileServer{data: data})
	defer srv.Close()

	store := newMemStore()
	m := NewManager(store, nil, Options{Dir: t.TempDir()})

	summary, err := m.Download(context.Background(), Request{URL: srv.URL + "/a.bin"})
	require.NoError(t, err)

	history, err := m.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, summary.ID, history[0].ID)
	require.Equal(t, summary.Path, history[0].Path)
	require.EqualValues(t, 5000, history[0].Bytes)
	require.Equal(t, []string{summary.StagingPath}, store.deleted)

	info, ok := m.Get(summary.ID)
	require.True(t, ok)
	require.Equal(t, domain.StateCompleted, info.State)
	require.Empty(t, info.Error)
	require.Empty(t, m.List())
}

func TestManagerStopSavesResumePointAndResumes(t *testing.T) {
	data := payload(10000)
	fs := &fileServer{data: data, chunk: 1000, honorRange: true, gate: make(chan struct{}), gateAt: 5000}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	dir := t.TempDir()
	store := newMemStore()
	m := NewManager(store, nil, Options{Dir: dir})

	info, err := m.Start(context.Background(), Request{URL: srv.URL + "/big.iso"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, ok := m.Get(info.ID)
		return ok && cur.Transferred >= 5000
	}, 5*time.Second, 5*time.Millisecond)

	_, err = m.Start(context.Background(), Request{URL: srv.URL + "/big.iso"})
	require.ErrorIs(t, err, domain.ErrTransferActive, "one active transfer per URL")

	stopped := make(chan error, 1)
	go func() { stopped <- m.Stop(context.Background(), info.ID) }()

	require.Eventually(t, func() bool {
		m.mu.RLock()
		defer m.mu.RUnlock()
		j, ok := m.active[info.ID]
		return !ok || (j.dl.Transfer() != nil && j.dl.Transfer().Canceled())
	}, time.Second, time.Millisecond)
	close(fs.gate)

	require.NoError(t, <-stopped)
	m.Wait()

	staging := filepath.Join(dir, "big.iso.partial")
	offset, ok, err := store.Lookup(context.Background(), staging)
	require.NoError(t, err)
	require.True(t, ok)

	st, err := os.Stat(staging)
	require.NoError(t, err)
	require.Equal(t, st.Size(), offset)

	canceled, ok := m.Get(info.ID)
	require.True(t, ok)
	require.Equal(t, domain.StateCanceled, canceled.State)
	require.Equal(t, "Cancelled by user", canceled.Error)

	summary, err := m.Download(context.Background(), Request{URL: srv.URL + "/big.iso"})
	require.NoError(t, err)
	require.Equal(t, offset, summary.BytesOnDisk-summary.Bytes)

	got, err := os.ReadFile(summary.Path)
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got))

	_, ok, err = store.Lookup(context.Background(), staging)
	require.NoError(t, err)
	require.False(t, ok, "resume record cleared after completion")
}

func TestManagerStopUnknownID(t *testing.T) {
	m := NewManager(nil, nil, Options{})
	err := m.Stop(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestManagerRequestListenersReceiveEvents(t *testing.T) {
	srv := httptest.NewServer(&fileServer{data: payload(100)})
	defer srv.Close()

	global := &recorder{}
	local := &recorder{}
	m := NewManager(nil, nil, Options{Dir: t.TempDir(), Listeners: []events.Listener{global}})

	_, err := m.Download(context.Background(), Request{URL: srv.URL + "/x", Listeners: []events.Listener{local}})
	require.NoError(t, err)

	require.Equal(t, domain.EventFinished, global.last().Kind)
	require.Equal(t, domain.EventFinished, local.last().Kind)

	history, err := m.History(context.Background(), 10)
	require.NoError(t, err)
	require.Nil(t, history)
}

func TestManagerFailedTransferIsQueryable(t *testing.T) {
	m := NewManager(newMemStore(), nil, Options{Dir: t.TempDir()})

	summary, err := m.Download(context.Background(), Request{URL: "ftp://example.com/x"})
	require.ErrorIs(t, err, domain.ErrUnsupportedScheme)

	info, ok := m.Get(summary.ID)
	require.True(t, ok)
	require.Equal(t, domain.StateFailed, info.State)
	require.Contains(t, info.Error, "unsupported request scheme")
}
