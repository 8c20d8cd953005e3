package engine

import (
	"context"
	"time"

	"github.com/datallboy/gofetch/internal/domain"
)

// progressReporter polls the Clock on a fixed cadence and emits progress
// events until the stream loop closes done.
type progressReporter struct {
	clock    *Clock
	interval time.Duration
	window   time.Duration
	// baseline is the resumed offset added to every fetched figure.
	baseline int64
	canceled func() bool
	emit     func(domain.Event)

	peak float64
}

func (p *progressReporter) Run(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// done may have been closed while this tick was pending
			select {
			case <-done:
				return
			default:
			}
			if p.canceled() {
				return
			}
			p.tick()
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *progressReporter) tick() {
	speed := p.clock.SpeedAverage(p.window)
	if speed > p.peak {
		p.peak = speed
	}

	p.emit(domain.Event{
		Kind:    domain.EventProgress,
		Fetched: p.baseline + p.clock.Total(),
		Speed:   speed,
	})
}

// Peak is only safe to read after Run has returned.
func (p *progressReporter) Peak() float64 {
	return p.peak
}
