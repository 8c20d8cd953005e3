// Package events delivers transfer events to zero or more observers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/datallboy/gofetch/internal/domain"
)

// Listener observes transfer events. Handle runs on a goroutine owned by
// the bus, never on the emitter's goroutine.
type Listener interface {
	Handle(evt domain.Event)
}

type ListenerFunc func(evt domain.Event)

func (f ListenerFunc) Handle(evt domain.Event) { f(evt) }

const (
	defaultBuffer      = 64
	defaultSendTimeout = time.Second
)

type subscriber struct {
	ch       chan domain.Event
	listener Listener
}

// Bus fans events out to its subscribers. Publish waits at most
// SendTimeout per slow subscriber, then drops the event for it.
type Bus struct {
	mu          sync.RWMutex
	subs        []*subscriber
	closed      bool
	wg          sync.WaitGroup
	dropped     atomic.Int64
	sendTimeout time.Duration
}

func NewBus(listeners ...Listener) *Bus {
	b := &Bus{sendTimeout: defaultSendTimeout}
	for _, l := range listeners {
		b.Subscribe(l)
	}
	return b
}

// WithSendTimeout overrides how long Publish waits on a full subscriber.
func (b *Bus) WithSendTimeout(d time.Duration) *Bus {
	b.sendTimeout = d
	return b
}

func (b *Bus) Subscribe(l Listener) {
	if l == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	s := &subscriber{ch: make(chan domain.Event, defaultBuffer), listener: l}
	b.subs = append(b.subs, s)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for evt := range s.ch {
			deliver(s.listener, evt)
		}
	}()
}

// deliver isolates the bus from a panicking listener
func deliver(l Listener, evt domain.Event) {
	defer func() { _ = recover() }()
	l.Handle(evt)
}

func (b *Bus) Publish(evt domain.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, s := range b.subs {
		select {
		case s.ch <- evt:
			continue
		default:
		}

		timer := time.NewTimer(b.sendTimeout)
		select {
		case s.ch <- evt:
		case <-timer.C:
			b.dropped.Add(1)
		}
		timer.Stop()
	}
}

// Close stops accepting events and waits until every queued event has
// been handled.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
}

// Dropped counts events discarded because a subscriber was too slow.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
