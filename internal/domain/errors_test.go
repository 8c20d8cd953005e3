package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransferErrorWrapping(t *testing.T) {
	err := NewError(KindNegotiation, "read response", ErrEmptyResponse)
	wrapped := fmt.Errorf("start: %w", err)

	require.ErrorIs(t, wrapped, ErrEmptyResponse)
	require.Equal(t, KindNegotiation, KindOf(wrapped))
	require.Equal(t, "read response (negotiation): the server returned an empty response", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("x")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

func TestIsCanceled(t *testing.T) {
	require.True(t, IsCanceled(NewError(KindCanceled, "stream", ErrCanceledByUser)))
	require.False(t, IsCanceled(NewError(KindTransport, "read body", context.DeadlineExceeded)))
}
