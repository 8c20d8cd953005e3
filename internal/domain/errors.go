package domain

import (
	"errors"
	"fmt"
)

// ErrTransferActive indicates start was called while a transfer is running
var ErrTransferActive = errors.New("transfer already active")

// ErrInvalidTransition indicates a backwards or post-terminal state change
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrEmptyResponse indicates the server answered without a body
var ErrEmptyResponse = errors.New("the server returned an empty response")

// ErrUnsupportedScheme indicates a URL that is not http or https
var ErrUnsupportedScheme = errors.New("unsupported request scheme")

// ErrInvalidURL indicates a malformed source URL
var ErrInvalidURL = errors.New("invalid url")

// ErrCanceledByUser is the cause reported when a transfer is stopped on purpose
var ErrCanceledByUser = errors.New("download was canceled by user")

// ErrShortTransfer indicates the stream ended before the declared length
var ErrShortTransfer = errors.New("transfer ended before declared content length")

// ErrTransferNotFound indicates an unknown transfer ID
var ErrTransferNotFound = errors.New("transfer not found")

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindState
	KindNegotiation
	KindTransport
	KindIO
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindNegotiation:
		return "negotiation"
	case KindTransport:
		return "transport"
	case KindIO:
		return "io"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TransferError carries the failure class next to the cause.
type TransferError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) error {
	return &TransferError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the class of the first TransferError in err's chain.
func KindOf(err error) ErrorKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceledByUser)
}
