// Package metrics exposes Prometheus metrics for gofetch transfers.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datallboy/gofetch/internal/domain"
)

var (
	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gofetch_bytes_downloaded_total",
			Help: "Total bytes received from origin servers",
		},
	)

	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gofetch_transfers_total",
			Help: "Total number of finished transfers by outcome",
		},
		[]string{"status"},
	)

	transfersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gofetch_transfers_active",
			Help: "Number of transfers currently streaming",
		},
	)

	transferSpeed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gofetch_transfer_speed_bytes_per_second",
			Help: "Most recently reported windowed speed of any transfer",
		},
	)

	transferDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gofetch_transfer_duration_seconds",
			Help:    "Duration of completed transfers",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gofetch_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)
)

const (
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusFailed    = "failed"
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest counts one API request.
func RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// Listener turns engine events into metric updates. One Listener can
// observe many transfers.
type Listener struct {
	mu   sync.Mutex
	seen map[string]int64
}

func NewListener() *Listener {
	return &Listener{seen: make(map[string]int64)}
}

func (l *Listener) Handle(evt domain.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch evt.Kind {
	case domain.EventDownloadStarted:
		l.seen[evt.TransferID] = evt.Fetched
		transfersActive.Inc()

	case domain.EventProgress:
		l.addBytes(evt)
		transferSpeed.Set(evt.Speed)

	case domain.EventFinished:
		l.addBytes(evt)
		l.end(evt.TransferID)
		transfersTotal.WithLabelValues(StatusCompleted).Inc()
		transferDuration.Observe(evt.Stats.Elapsed.Seconds())

	case domain.EventError:
		l.end(evt.TransferID)
		status := StatusFailed
		if domain.IsCanceled(evt.Err) {
			status = StatusCanceled
		}
		transfersTotal.WithLabelValues(status).Inc()
	}
}

func (l *Listener) addBytes(evt domain.Event) {
	last, ok := l.seen[evt.TransferID]
	if !ok {
		return
	}
	if delta := evt.Fetched - last; delta > 0 {
		bytesDownloaded.Add(float64(delta))
		l.seen[evt.TransferID] = evt.Fetched
	}
}

func (l *Listener) end(id string) {
	if _, ok := l.seen[id]; ok {
		delete(l.seen, id)
		transfersActive.Dec()
	}
}
