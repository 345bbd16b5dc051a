package roster

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestFallbackRead_LiveSuccess verifies that a successful live read is
// returned fresh and the cache is never consulted.
func TestFallbackRead_LiveSuccess(t *testing.T) {
	cacheCalled := false
	result, err := FallbackRead(context.Background(),
		func(ctx context.Context) (string, error) { return "live", nil },
		func() (string, time.Time, error) {
			cacheCalled = true
			return "", time.Time{}, nil
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fresh || result.Data != "live" {
		t.Errorf("expected fresh live data, got %+v", result)
	}
	if cacheCalled {
		t.Error("cache should not be consulted on live success")
	}
}

// TestFallbackRead_TransportFailure verifies degradation to the cached
// snapshot with its capture time.
func TestFallbackRead_TransportFailure(t *testing.T) {
	asOf := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	result, err := FallbackRead(context.Background(),
		func(ctx context.Context) (string, error) {
			return "", &SyncError{Operation: "status", Err: errors.New("connection refused")}
		},
		func() (string, time.Time, error) { return "cached", asOf, nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fresh {
		t.Error("fallback result should not be fresh")
	}
	if result.Data != "cached" {
		t.Errorf("expected cached data, got %q", result.Data)
	}
	if !result.AsOf.Equal(asOf) {
		t.Errorf("expected capture time %v, got %v", asOf, result.AsOf)
	}
}

// TestFallbackRead_ApplicationError verifies that server rejections
// propagate instead of degrading to stale data.
func TestFallbackRead_ApplicationError(t *testing.T) {
	appErr := &SyncError{Operation: "status", StatusCode: 403, Err: errors.New("forbidden")}
	cacheCalled := false
	_, err := FallbackRead(context.Background(),
		func(ctx context.Context) (string, error) { return "", appErr },
		func() (string, time.Time, error) {
			cacheCalled = true
			return "cached", time.Now(), nil
		},
	)
	if !errors.Is(err, appErr) {
		t.Fatalf("expected application error to propagate, got %v", err)
	}
	if cacheCalled {
		t.Error("cache should not be consulted for application errors")
	}
}

// TestFallbackRead_Canceled verifies that caller cancellation propagates.
func TestFallbackRead_Canceled(t *testing.T) {
	_, err := FallbackRead(context.Background(),
		func(ctx context.Context) (string, error) { return "", context.Canceled },
		func() (string, time.Time, error) { return "cached", time.Now(), nil },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// TestFallbackRead_DeadlineExceeded verifies that a timeout counts as a
// transport failure and falls back.
func TestFallbackRead_DeadlineExceeded(t *testing.T) {
	result, err := FallbackRead(context.Background(),
		func(ctx context.Context) (string, error) { return "", context.DeadlineExceeded },
		func() (string, time.Time, error) { return "cached", time.Now(), nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Fresh || result.Data != "cached" {
		t.Errorf("expected stale cached data, got %+v", result)
	}
}

// TestFallbackRead_NoSnapshot verifies that a missing snapshot surfaces
// the original transport failure, not ErrNoSnapshot.
func TestFallbackRead_NoSnapshot(t *testing.T) {
	transportErr := &SyncError{Operation: "status", Err: errors.New("refused")}
	_, err := FallbackRead(context.Background(),
		func(ctx context.Context) (string, error) { return "", transportErr },
		func() (string, time.Time, error) { return "", time.Time{}, ErrNoSnapshot },
	)
	if !errors.Is(err, transportErr) {
		t.Fatalf("expected the transport failure, got %v", err)
	}
}
