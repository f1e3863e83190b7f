package session_test

import (
	"context"
	"testing"

	"harvest/internal/session"
	"harvest/internal/session/sessiontest"
)

func TestPoolAcquireRelease(t *testing.T) {
	factory := &sessiontest.Factory{Site: sessiontest.NewSite()}
	released := 0
	pool := session.NewPool(factory, func(n int) { released += n })

	sessions, err := pool.Acquire(context.Background(), 5)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(sessions) != 5 || pool.Size() != 5 {
		t.Fatalf("sessions = %d, size = %d, want 5", len(sessions), pool.Size())
	}

	if err := pool.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := pool.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if got := factory.Closed(); got != 5 {
		t.Fatalf("closed = %d, want 5", got)
	}
	if released != 5 {
		t.Fatalf("onClose total = %d, want 5", released)
	}
}

func TestPoolAcquireFailureClosesOpened(t *testing.T) {
	factory := &sessiontest.Factory{Site: sessiontest.NewSite(), FailOpenAt: 3}
	pool := session.NewPool(factory, nil)

	if _, err := pool.Acquire(context.Background(), 5); err == nil {
		t.Fatalf("expected acquire error")
	}
	if got := factory.Closed(); got != 2 {
		t.Fatalf("closed = %d, want 2", got)
	}
	if pool.Size() != 0 {
		t.Fatalf("pool should hold no sessions after failure")
	}
}

func TestPoolAcquireRejectsZeroWidth(t *testing.T) {
	pool := session.NewPool(&sessiontest.Factory{Site: sessiontest.NewSite()}, nil)
	if _, err := pool.Acquire(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestParseBlockSet(t *testing.T) {
	set, err := session.ParseBlockSet([]string{"Image", " stylesheet", "font"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, rt := range []session.ResourceType{"image", "stylesheet", "font", "Image"} {
		if !set.Blocks(rt) {
			t.Fatalf("expected %q to be blocked", rt)
		}
	}
	if set.Blocks(session.ResourceScript) {
		t.Fatalf("script should not be blocked")
	}
	if _, err := session.ParseBlockSet([]string{"document"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
