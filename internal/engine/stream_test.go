package engine

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datallboy/gofetch/internal/domain"
)

// chunkReader yields count chunks of size bytes each, then io.EOF.
type chunkReader struct {
	count int
	size  int
	sent  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.sent == r.count {
		return 0, io.EOF
	}
	n := min(len(p), r.size)
	for i := range n {
		p[i] = byte(r.sent)
	}
	r.sent++
	return n, nil
}

type zeroReader struct{ calls int }

func (r *zeroReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls == 1 {
		return copy(p, "abc"), nil
	}
	return 0, nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStreamReaderCompletes(t *testing.T) {
	var chunks []int
	r := NewStreamReader(1000, func(n int) { chunks = append(chunks, n) }, nil)

	var dst bytes.Buffer
	completed, err := r.Copy(&chunkReader{count: 10, size: 1000}, &dst)

	require.NoError(t, err)
	require.True(t, completed)
	require.Len(t, chunks, 10)
	require.Equal(t, 10000, dst.Len())
}

func TestStreamReaderChunkCallbackRunsBeforeWrite(t *testing.T) {
	var dst bytes.Buffer
	var seenAtCallback []int

	r := NewStreamReader(4, func(int) { seenAtCallback = append(seenAtCallback, dst.Len()) }, nil)
	_, err := r.Copy(bytes.NewReader([]byte("abcdefgh")), &dst)

	require.NoError(t, err)
	require.Equal(t, []int{0, 4}, seenAtCallback)
}

func TestStreamReaderCancel(t *testing.T) {
	var received int
	r := NewStreamReader(100, func(n int) { received += n }, func() bool { return received >= 300 })

	var dst bytes.Buffer
	completed, err := r.Copy(&chunkReader{count: 10, size: 100}, &dst)

	require.NoError(t, err)
	require.False(t, completed)
	require.Equal(t, 300, dst.Len())
}

func TestStreamReaderZeroLengthReadEndsStream(t *testing.T) {
	src := &zeroReader{}
	var dst bytes.Buffer

	completed, err := NewStreamReader(0, nil, nil).Copy(src, &dst)

	require.NoError(t, err)
	require.True(t, completed)
	require.Equal(t, "abc", dst.String())
	require.Equal(t, 2, src.calls)
}

func TestStreamReaderErrors(t *testing.T) {
	_, err := NewStreamReader(0, nil, nil).Copy(&chunkReader{count: 1, size: 10}, failingWriter{})
	require.Equal(t, domain.KindIO, domain.KindOf(err))

	_, err = NewStreamReader(0, nil, nil).Copy(io.MultiReader(bytes.NewReader([]byte("ab")), iotestErrReader{}), io.Discard)
	require.Equal(t, domain.KindTransport, domain.KindOf(err))
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
