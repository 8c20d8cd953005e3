package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/datallboy/gofetch/internal/domain"
)

// maxPrealloc caps how much memory a declared Content-Length may reserve up
// front in memory mode.
const maxPrealloc = 256 << 20

// Sink receives streamed bytes and owns the staging file.
type Sink interface {
	io.Writer
	// Offset is the staging file position the first written byte lands on.
	Offset() int64
	// Close releases the sink. With commit set the staging file is made
	// durable; without it a disk sink keeps what it wrote and a memory
	// sink discards its buffer.
	Close(commit bool) error
}

type diskSink struct {
	mu     sync.Mutex
	file   *os.File
	offset int64
}

// openDiskSink opens path for appending at offset. When the file is not
// exactly offset bytes long it is truncated and writing starts at 0.
func openDiskSink(path string, offset int64) (*diskSink, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, domain.NewError(domain.KindIO, "open staging file", err)
	}

	if offset > 0 {
		info, err := f.Stat()
		if err != nil || info.Size() != offset {
			offset = 0
		}
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, domain.NewError(domain.KindIO, "seek staging file", err)
		}
	} else {
		offset = 0
		if err := f.Truncate(0); err != nil {
			f.Close()
			return nil, domain.NewError(domain.KindIO, "truncate staging file", err)
		}
	}

	return &diskSink{file: f, offset: offset}, nil
}

func (s *diskSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Write(p)
}

func (s *diskSink) Offset() int64 { return s.offset }

func (s *diskSink) Close(_ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	// Sync either way: a canceled transfer must leave valid bytes behind
	// for the next resume.
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil

	if syncErr != nil {
		return domain.NewError(domain.KindIO, "sync staging file", syncErr)
	}
	if closeErr != nil {
		return domain.NewError(domain.KindIO, "close staging file", closeErr)
	}
	return nil
}

// memorySink buffers the whole body and writes the staging file once, on
// a committed Close.
type memorySink struct {
	mu   sync.Mutex
	path string
	buf  bytes.Buffer
}

func newMemorySink(path string, sizeHint int64) *memorySink {
	s := &memorySink{path: path}
	if sizeHint > 0 {
		s.buf.Grow(int(min(sizeHint, maxPrealloc)))
	}
	return s
}

func (s *memorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *memorySink) Offset() int64 { return 0 }

func (s *memorySink) Close(commit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer s.buf.Reset()
	if !commit {
		return nil
	}

	if err := os.WriteFile(s.path, s.buf.Bytes(), 0644); err != nil {
		return domain.NewError(domain.KindIO, "write staging file", fmt.Errorf("%s: %w", s.path, err))
	}
	return nil
}
