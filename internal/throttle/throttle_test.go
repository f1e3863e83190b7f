package throttle

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBarrierFirstWaitPasses(t *testing.T) {
	var waited []time.Duration
	b := NewBarrier(5 * time.Second)
	b.After = func(d time.Duration) <-chan time.Time {
		waited = append(waited, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	for i := 0; i < 3; i++ {
		if err := b.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if len(waited) != 2 {
		t.Fatalf("waited %d times, want 2", len(waited))
	}
	if waited[0] != 5*time.Second {
		t.Errorf("delay = %v, want 5s", waited[0])
	}

	b.Reset()
	if err := b.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(waited) != 2 {
		t.Errorf("wait after reset should not block")
	}
}

func TestBarrierCancelled(t *testing.T) {
	b := NewBarrier(time.Hour)
	b.After = func(time.Duration) <-chan time.Time { return make(chan time.Time) }
	_ = b.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait = %v, want context.Canceled", err)
	}
}

func TestBarrierZeroDelay(t *testing.T) {
	b := NewBarrier(0)
	b.After = func(time.Duration) <-chan time.Time {
		t.Fatal("zero delay must not wait")
		return nil
	}
	for i := 0; i < 2; i++ {
		if err := b.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
}
