package subscription

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
)

// Store is the read side of a fact log as consumed by the engine.
//
// ScanFrom returns facts with a serial greater than after, ascending by
// serial. Implementations may pre-filter by specs (namespace, type) but the
// engine re-checks every fact, so returning extra facts is harmless.
// A limit of zero means unbounded; otherwise fewer than limit facts are
// returned only when no more facts exist above after at scan time.
//
// LatestSerial is non-decreasing, and no fact with a serial at or below a
// value it has returned may be committed afterwards.
//
// SubscribeToAppends returns a channel that receives at least one value
// after any commit. Signals may be coalesced or lost. The channel is closed
// when ctx is done or the source gives up.
type Store interface {
	ScanFrom(ctx context.Context, after uint64, specs []fact.Spec, limit int) ([]fact.Fact, error)
	LatestSerial(ctx context.Context) (uint64, error)
	SubscribeToAppends(ctx context.Context) (<-chan struct{}, error)
}

// SerialResolver is implemented by stores that can map a fact id to its
// serial. It is required for id cursors.
type SerialResolver interface {
	SerialOf(ctx context.Context, id uuid.UUID) (serial uint64, found bool, err error)
}

// ErrStoreUnavailable wraps every failure surfaced from the Store.
var ErrStoreUnavailable = errors.New("store unavailable")

// ErrClosed is returned by Subscribe once the Manager is closed.
var ErrClosed = errors.New("subscription manager closed")

// ErrInvalidRequest is fact.ErrInvalidRequest, re-exported for callers that
// only import this package.
var ErrInvalidRequest = fact.ErrInvalidRequest

// storeError classifies a backend failure as ErrStoreUnavailable while
// keeping the backend error in the chain.
type storeError struct {
	op    string
	cause error
}

func (e *storeError) Error() string {
	return ErrStoreUnavailable.Error() + ": " + e.op + ": " + e.cause.Error()
}

func (e *storeError) Is(target error) bool { return target == ErrStoreUnavailable }
func (e *storeError) Unwrap() error        { return e.cause }
func (e *storeError) Cause() error         { return e.cause }

func storeErr(err error, op string) error {
	return &storeError{op: op, cause: err}
}
