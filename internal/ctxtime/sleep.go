// Package ctxtime provides context-aware time helpers.
package ctxtime

import (
	"context"
	"time"
)

// Sleep pauses for d or until ctx is done, whichever comes first. It
// returns the context error when interrupted.
func Sleep(ctx context.Context, d time.Duration) error {
	if ctx == nil || d <= 0 {
		time.Sleep(d)
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	return nil
}
