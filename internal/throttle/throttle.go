// Package throttle holds the politeness policy applied between batches.
package throttle

import (
	"context"
	"time"
)

// Barrier blocks for a fixed delay between consecutive batches. The first call
// to Wait after Reset does not block; every later one does.
type Barrier struct {
	Delay time.Duration

	// After is swapped in tests; nil means time.After.
	After func(time.Duration) <-chan time.Time

	passed bool
}

func NewBarrier(delay time.Duration) *Barrier {
	return &Barrier{Delay: delay}
}

// Wait returns once the delay has elapsed since it was called, or with the
// context error if ctx ends first.
func (b *Barrier) Wait(ctx context.Context) error {
	if !b.passed {
		b.passed = true
		return ctx.Err()
	}
	if b.Delay <= 0 {
		return ctx.Err()
	}
	after := b.After
	if after == nil {
		after = time.After
	}
	select {
	case <-after(b.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset makes the next Wait pass immediately.
func (b *Barrier) Reset() {
	b.passed = false
}
