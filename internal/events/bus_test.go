package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datallboy/gofetch/internal/domain"
)

func TestBusDeliversInOrderToEverySubscriber(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]int64{}

	record := func(name string) Listener {
		return ListenerFunc(func(evt domain.Event) {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], evt.Fetched)
		})
	}

	b := NewBus(record("a"), record("b"))
	for i := range 100 {
		b.Publish(domain.Event{Kind: domain.EventProgress, Fetched: int64(i)})
	}
	b.Close()

	require.Len(t, got["a"], 100)
	require.Equal(t, got["a"], got["b"])
	for i, v := range got["a"] {
		require.EqualValues(t, i, v)
	}
}

func TestBusStampsTimestamp(t *testing.T) {
	var ts time.Time
	b := NewBus(ListenerFunc(func(evt domain.Event) { ts = evt.Timestamp }))
	b.Publish(domain.Event{Kind: domain.EventRequestCreated})
	b.Close()

	require.False(t, ts.IsZero())
}

func TestBusSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	release := make(chan struct{})
	var handled atomic.Int64

	slow := ListenerFunc(func(domain.Event) {
		<-release
		handled.Add(1)
	})
	b := NewBus(slow).WithSendTimeout(time.Millisecond)

	start := time.Now()
	for range defaultBuffer + 10 {
		b.Publish(domain.Event{Kind: domain.EventProgress})
	}
	require.Less(t, time.Since(start), 5*time.Second)
	require.Positive(t, b.Dropped())

	close(release)
	b.Close()
	require.Equal(t, int64(defaultBuffer+10)-b.Dropped(), handled.Load())
}

func TestBusSurvivesPanickingListener(t *testing.T) {
	var calls atomic.Int64
	b := NewBus(ListenerFunc(func(domain.Event) {
		calls.Add(1)
		panic("boom")
	}))

	b.Publish(domain.Event{Kind: domain.EventProgress})
	b.Publish(domain.Event{Kind: domain.EventProgress})
	b.Close()

	require.EqualValues(t, 2, calls.Load())
}

func TestBusIgnoresPublishAfterClose(t *testing.T) {
	var calls atomic.Int64
	b := NewBus(ListenerFunc(func(domain.Event) { calls.Add(1) }))
	b.Close()
	b.Close()

	b.Publish(domain.Event{Kind: domain.EventProgress})
	b.Subscribe(ListenerFunc(func(domain.Event) { calls.Add(1) }))
	require.Zero(t, calls.Load())
}
