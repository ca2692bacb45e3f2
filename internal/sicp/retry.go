package sicp

import (
	"context"
	"time"
)

// RetryExecutor wraps a Sender operation with a bounded number of retries
// and a fixed inter-attempt delay.
//
// Only connection failures are retried: a *ProtocolError means a reply was
// received but malformed, which another attempt is unlikely to fix and
// which should surface immediately. After the final failed attempt the
// last connection error is returned unchanged.
//
// RetryExecutor is a plain value with no I/O of its own, so the retry
// policy is testable in isolation from the network.
type RetryExecutor struct {
	// Retries is the number of additional attempts after the first.
	Retries int

	// Delay is the pause between attempts. No pause follows the last one.
	Delay time.Duration
}

// Send attempts sender.Send up to Retries+1 times.
func (r RetryExecutor) Send(ctx context.Context, sender Sender, frame Frame, expectReply bool) ([]byte, error) {
	attempts := r.Retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		reply, err := sender.Send(ctx, frame, expectReply)
		if err == nil {
			return reply, nil
		}
		if !IsConnectionError(err) {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if !r.pause(ctx) {
			// Cancelled mid-backoff; the transport error is still the
			// most useful thing to report.
			break
		}
	}
	return nil, lastErr
}

// pause sleeps for Delay or until the context is cancelled. It reports
// whether the full delay elapsed.
func (r RetryExecutor) pause(ctx context.Context) bool {
	if r.Delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(r.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
