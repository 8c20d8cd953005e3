package engine

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// minElapsed is the shortest span AverageSpeed divides by. Below it the
// total byte count is returned as-is.
const minElapsed = time.Millisecond

// Sample is one chunk as seen by the Clock.
type Sample struct {
	Seq   uint64
	Start time.Time
	End   time.Time
	Bytes int64
}

// Clock records received chunks and answers speed questions about them.
// A Sample starts where the previous one ended, so gaps between reads are
// attributed to the next chunk.
type Clock struct {
	mu  sync.Mutex
	now func() time.Time

	started time.Time
	first   *Sample
	samples []Sample
	next    uint64
	total   int64
	lastEnd time.Time
}

func newClock(now func() time.Time) *Clock {
	c := &Clock{now: now}
	c.started = now()
	return c
}

// Record adds a chunk of n bytes ending now.
func (c *Clock) Record(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.now()
	start := c.started
	if !c.lastEnd.IsZero() {
		start = c.lastEnd
	}

	s := Sample{Seq: c.next, Start: start, End: end, Bytes: n}
	c.next++
	c.total += n
	c.lastEnd = end
	c.samples = append(c.samples, s)
	if c.first == nil {
		first := s
		c.first = &first
	}
}

// SpeedNow is the rate of the most recent chunk alone.
func (c *Clock) SpeedNow() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.samples) == 0 {
		return 0
	}
	last := c.samples[len(c.samples)-1]

	d := last.End.Sub(last.Start)
	if d < minElapsed {
		return float64(last.Bytes)
	}
	return float64(last.Bytes) / d.Seconds()
}

// SpeedAverage is bytes received inside the trailing window divided by the
// window length, in bytes per second. Samples that fell out of the window are
// discarded afterwards, except the first one which anchors AverageSpeed.
func (c *Clock) SpeedAverage(window time.Duration) float64 {
	if window <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	inWindow := func(s Sample) bool { return now.Sub(s.End) <= window }

	sum := lo.SumBy(c.samples, func(s Sample) int64 {
		if inWindow(s) {
			return s.Bytes
		}
		return 0
	})

	c.samples = lo.Filter(c.samples, func(s Sample, _ int) bool {
		return s.Seq == 0 || inWindow(s)
	})

	return float64(sum) / window.Seconds()
}

// Elapsed is the span from the start of the first sample to the end of the
// last one.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.first == nil {
		return 0
	}
	return c.lastEnd.Sub(c.first.Start)
}

// AverageSpeed is the total byte count over Elapsed, in bytes per second.
func (c *Clock) AverageSpeed() float64 {
	elapsed := c.Elapsed()
	total := c.Total()

	if total == 0 {
		return 0
	}
	if elapsed < minElapsed {
		return float64(total)
	}
	return float64(total) / elapsed.Seconds()
}

// Total is the number of bytes recorded so far.
func (c *Clock) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
