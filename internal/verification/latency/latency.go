// Package latency models the bounded delay of simulated remote checks.
package latency

import (
	"context"
	"time"
)

// Wait blocks for d or until ctx is done, whichever comes first. A zero or
// negative d returns immediately unless ctx is already done.
func Wait(ctx context.Context, d time.Duration) error {
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
