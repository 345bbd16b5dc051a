package roster

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"
)

// FetchResult carries a read result together with its freshness. Fresh
// results came from the live path; stale results carry the capture time
// of the snapshot they were served from, so callers can render a
// "cached as of" notice.
type FetchResult[T any] struct {
	Data  T         `json:"data"`
	Fresh bool      `json:"fresh"`
	AsOf  time.Time `json:"as_of,omitempty"`
}

// FallbackRead attempts the live read once; on a transport-level failure
// it degrades to the cached snapshot. Application-level errors from a
// server that was actually reached propagate unchanged, since stale data
// would be misleading for a request the server explicitly rejected.
//
// There is no retry or backoff here: each invocation is a single
// attempt, and the decision depends only on this request's outcome.
func FallbackRead[T any](
	ctx context.Context,
	live func(context.Context) (T, error),
	cached func() (T, time.Time, error),
) (FetchResult[T], error) {
	data, err := live(ctx)
	if err == nil {
		return FetchResult[T]{Data: data, Fresh: true}, nil
	}

	if !isTransportFailure(err) {
		var zero FetchResult[T]
		return zero, err
	}

	snap, asOf, cacheErr := cached()
	if cacheErr != nil {
		var zero FetchResult[T]
		// No snapshot to serve; surface the original transport failure.
		if errors.Is(cacheErr, ErrNoSnapshot) {
			return zero, err
		}
		return zero, cacheErr
	}

	return FetchResult[T]{Data: snap, Fresh: false, AsOf: asOf}, nil
}

// isTransportFailure classifies an error as transport-level: connection
// refused, timeout, DNS failure, or any sync error that never produced
// an HTTP response. A caller-initiated cancellation is not a transport
// failure; the caller asked to stop, not to degrade.
func isTransportFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if IsTransport(err) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
