package domain

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateNotStarted State = iota
	StateRequesting
	StateStreaming
	StateFinalizing
	StateCompleted
	StateCanceled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateCanceled:
		return "canceled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCanceled || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transfer is a single attempt at fetching URL into Dir.
// A new Transfer is created for every start; states only move forward.
type Transfer struct {
	ID            string
	URL           string
	Dir           string
	StagingSuffix string
	StartedAt     time.Time

	mu   sync.RWMutex
	name string

	state       atomic.Int32
	transferred atomic.Int64
	totalBytes  atomic.Int64
	canceled    atomic.Bool
}

func NewTransfer(id, rawURL, dir, name, stagingSuffix string) *Transfer {
	t := &Transfer{
		ID:            id,
		URL:           rawURL,
		Dir:           dir,
		StagingSuffix: stagingSuffix,
		StartedAt:     time.Now(),
		name:          name,
	}
	t.totalBytes.Store(-1)
	return t
}

func (t *Transfer) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *Transfer) SetName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

// FinalPath is the preferred destination; finalization may pick a
// disambiguated variant if it is taken.
func (t *Transfer) FinalPath() string {
	return filepath.Join(t.Dir, t.Name())
}

func (t *Transfer) StagingPath() string {
	return t.FinalPath() + t.StagingSuffix
}

func (t *Transfer) State() State {
	return State(t.state.Load())
}

// Advance moves the transfer to next. Going backwards, staying put, or
// leaving a terminal state is rejected.
func (t *Transfer) Advance(next State) error {
	for {
		cur := State(t.state.Load())
		if cur.Terminal() || next <= cur {
			return NewError(KindState, "advance", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next))
		}
		if t.state.CompareAndSwap(int32(cur), int32(next)) {
			return nil
		}
	}
}

// InProgress is true between the first request and a terminal state.
func (t *Transfer) InProgress() bool {
	s := t.State()
	return s != StateNotStarted && !s.Terminal()
}

func (t *Transfer) Cancel() {
	t.canceled.Store(true)
}

func (t *Transfer) Canceled() bool {
	return t.canceled.Load()
}

// AddTransferred accounts n bytes received in this attempt.
func (t *Transfer) AddTransferred(n int64) {
	t.transferred.Add(n)
}

func (t *Transfer) Transferred() int64 {
	return t.transferred.Load()
}

// SetTotalBytes records the full resource size, -1 when unknown.
func (t *Transfer) SetTotalBytes(n int64) {
	t.totalBytes.Store(n)
}

func (t *Transfer) TotalBytes() int64 {
	return t.totalBytes.Load()
}

// Info is a point-in-time, JSON friendly view of a Transfer.
type Info struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	StagingPath string    `json:"staging_path"`
	State       State     `json:"state"`
	Transferred int64     `json:"transferred"`
	TotalBytes  int64     `json:"total_bytes"`
	StartedAt   time.Time `json:"started_at"`
	Error       string    `json:"error,omitempty"`
}

func (t *Transfer) Snapshot() Info {
	return Info{
		ID:          t.ID,
		URL:         t.URL,
		Name:        t.Name(),
		StagingPath: t.StagingPath(),
		State:       t.State(),
		Transferred: t.Transferred(),
		TotalBytes:  t.TotalBytes(),
		StartedAt:   t.StartedAt,
	}
}
