package engine

import (
	"errors"
	"io"

	"github.com/datallboy/gofetch/internal/domain"
)

const DefaultChunkSize = 1024

// StreamReader copies a response body to a sink one chunk at a time.
type StreamReader struct {
	chunkSize int
	onChunk   func(n int)
	canceled  func() bool
}

// NewStreamReader builds a reader. onChunk runs for every non-empty chunk
// before it is written; canceled is polled before every read.
func NewStreamReader(chunkSize int, onChunk func(n int), canceled func() bool) *StreamReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if onChunk == nil {
		onChunk = func(int) {}
	}
	if canceled == nil {
		canceled = func() bool { return false }
	}
	return &StreamReader{chunkSize: chunkSize, onChunk: onChunk, canceled: canceled}
}

// Copy reports completed == true when src reached its end, and false when
// the copy stopped because canceled returned true.
func (r *StreamReader) Copy(src io.Reader, dst io.Writer) (completed bool, err error) {
	buf := make([]byte, r.chunkSize)

	for {
		if r.canceled() {
			return false, nil
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			r.onChunk(n)
			if _, err := dst.Write(buf[:n]); err != nil {
				return false, domain.NewError(domain.KindIO, "write chunk", err)
			}
		}

		switch {
		case errors.Is(readErr, io.EOF):
			return true, nil
		case readErr != nil:
			if r.canceled() {
				return false, nil
			}
			return false, domain.NewError(domain.KindTransport, "read body", readErr)
		case n == 0:
			// a zero-length read without error is treated as end of stream
			return true, nil
		}
	}
}
