package vendorhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultDelays is the backoff before each login POST attempt.
var DefaultDelays = []time.Duration{0, 1500 * time.Millisecond, 3 * time.Second}

// ErrRetriesExhausted is returned when every attempt hit a retryable status.
var ErrRetriesExhausted = errors.New("vendorhttp: retries exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs a call up to len(Delays) times. Only HTTP 403 and transport
// errors are retried; any other response ends the loop immediately.
type Retry struct {
	Delays []time.Duration
	Sleep  SleepFunc
}

// Attempt describes one try, passed to the observer.
type Attempt struct {
	N      int
	Status int
	Err    error
}

// Do calls fn according to the policy. The last response (possibly a 403)
// is returned alongside ErrRetriesExhausted so callers can report its status.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context) (*Response, error), observe func(Attempt)) (*Response, error) {
	delays := r.Delays
	if len(delays) == 0 {
		delays = DefaultDelays
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var (
		last    *Response
		lastErr error
	)
	for i, d := range delays {
		// Backoff ends early only when ctx does; keep its error visible.
		if err := sleep(ctx, d); err != nil {
			return last, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		resp, err := fn(ctx)
		if observe != nil {
			a := Attempt{N: i + 1, Err: err}
			if resp != nil {
				a.Status = resp.StatusCode
			}
			observe(a)
		}

		switch {
		case err != nil && errors.Is(err, ErrTransport):
			last, lastErr = nil, err
			continue
		case err != nil:
			return nil, err
		case resp.StatusCode == http.StatusForbidden:
			last, lastErr = resp, nil
			continue
		default:
			return resp, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return last, ErrRetriesExhausted
}
