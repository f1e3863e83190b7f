package session

import (
	"context"
	"errors"
	"fmt"
)

// Pool is a fixed-width set of sessions owned by one batch.
type Pool struct {
	factory  Factory
	sessions []Session
	onClose  func(n int)
}

// NewPool returns an empty pool that opens sessions from factory.
// onClose, if set, is called with the number of sessions released.
func NewPool(factory Factory, onClose func(n int)) *Pool {
	return &Pool{factory: factory, onClose: onClose}
}

// Acquire opens n sessions. If any of them fails to open, the ones already
// opened are closed and the error is returned.
func (p *Pool) Acquire(ctx context.Context, n int) ([]Session, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pool width must be positive, got %d", n)
	}
	if len(p.sessions) > 0 {
		return nil, errors.New("pool already acquired")
	}

	sessions := make([]Session, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			closeAll(sessions)
			return nil, err
		}
		s, err := p.factory.Open(ctx)
		if err != nil {
			closeAll(sessions)
			return nil, fmt.Errorf("open session %d/%d: %w", i+1, n, err)
		}
		sessions = append(sessions, s)
	}
	p.sessions = sessions
	return sessions, nil
}

// Release closes every acquired session. It is safe to call more than once.
func (p *Pool) Release() error {
	n := len(p.sessions)
	err := closeAll(p.sessions)
	p.sessions = nil
	if p.onClose != nil && n > 0 {
		p.onClose(n)
	}
	return err
}

// Size returns the number of sessions currently held.
func (p *Pool) Size() int {
	return len(p.sessions)
}

func closeAll(sessions []Session) error {
	var errs []error
	for _, s := range sessions {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
