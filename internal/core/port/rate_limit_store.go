package port

import (
	"context"
	"time"
)

// RateLimitStore keeps a per-identifier log of attempt timestamps. Window
// queries cover [reference-window, reference].
type RateLimitStore interface {
	// TrimWindow drops attempts older than the window.
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	// OldestAttempt reports false when the window is empty.
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
