// Package console renders transfer events for an interactive terminal.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/gofetch/internal/domain"
	"github.com/datallboy/gofetch/internal/engine"
)

const barWidth = 20

// Progress prints one status line per event and redraws a progress bar in
// place on every progress tick.
type Progress struct {
	mu    sync.Mutex
	out   io.Writer
	total int64
	start time.Time
}

func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out, total: -1}
}

func (p *Progress) Handle(evt domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch evt.Kind {
	case domain.EventRequestCreated:
		fmt.Fprintf(p.out, "Requesting %s\n", evt.URL)
	case domain.EventResponseReceived:
		fmt.Fprintf(p.out, "Response from %s\n", evt.URL)
	case domain.EventDownloadStarted:
		p.total = evt.TotalBytes
		p.start = evt.Timestamp
		size := "unknown size"
		if evt.TotalBytes >= 0 {
			size = humanize.Bytes(uint64(evt.TotalBytes))
		}
		if evt.Fetched > 0 {
			fmt.Fprintf(p.out, "Resuming at %s of %s\n", humanize.Bytes(uint64(evt.Fetched)), size)
		} else {
			fmt.Fprintf(p.out, "Downloading %s\n", size)
		}
	case domain.EventProgress:
		fmt.Fprint(p.out, p.render(evt.Fetched, evt.Speed))
	case domain.EventFinished:
		fmt.Fprintf(p.out, "\nSaved %s | %s in %s | Avg: %s/s | Peak: %s/s\n",
			evt.Path,
			humanize.Bytes(uint64(evt.Fetched)),
			evt.Stats.Elapsed.Truncate(time.Millisecond),
			humanize.Bytes(uint64(evt.Stats.AverageSpeed)),
			humanize.Bytes(uint64(evt.Stats.PeakSpeed)))
	case domain.EventError:
		if domain.IsCanceled(evt.Err) {
			fmt.Fprintln(p.out, "\nDownload canceled; partial data kept for resume")
			return
		}
		fmt.Fprintf(p.out, "\nDownload failed: %v\n", evt.Err)
	}
}

// render builds: [=====>    ]  50.0% | 1.2 MB/s | ETA: 2m30s | 5.0 MB/10 MB
func (p *Progress) render(fetched int64, speed float64) string {
	speedStr := humanize.Bytes(uint64(speed)) + "/s"

	if p.total <= 0 {
		return fmt.Sprintf("\r%s | %s      ", humanize.Bytes(uint64(fetched)), speedStr)
	}

	percent := float64(fetched) / float64(p.total) * 100
	if percent > 100 {
		percent = 100
	}

	completedWidth := int(percent / 100 * barWidth)
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	eta := "calc..."
	if speed > 0 {
		remaining := float64(p.total-fetched) / speed
		eta = (time.Duration(remaining) * time.Second).String()
	}

	return fmt.Sprintf("\r[%s] %5.1f%% | %s | ETA: %-7s | %s/%s      ",
		bar, percent, speedStr, eta, humanize.Bytes(uint64(fetched)), humanize.Bytes(uint64(p.total)))
}

// ConflictPrompt asks on out whether to adopt the server's file name and
// reads the answer from in. Anything but "y" or "yes" keeps the requested
// name.
func ConflictPrompt(in io.Reader, out io.Writer) engine.ConflictResolver {
	reader := bufio.NewReader(in)
	return func(c domain.NamingConflict) bool {
		fmt.Fprintf(out, "Server names this file %q instead of %q. Use the server name? [y/N] ", c.Server, c.Requested)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

