// Package wake provides the close-and-replace append signal used by the SQL
// backends to wake in-process subscribers after a commit.
package wake

import (
	"context"
	"sync"
)

// Signal fans a commit out to every waiter. The zero value is not usable;
// construct it with New.
type Signal struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed chan struct{}
	once   sync.Once
}

// New returns an open Signal.
func New() *Signal {
	return &Signal{ch: make(chan struct{}), closed: make(chan struct{})}
}

// Fire wakes every current waiter.
func (s *Signal) Fire() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// C returns the channel closed by the next Fire.
func (s *Signal) C() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Closed is closed once Close has been called.
func (s *Signal) Closed() <-chan struct{} { return s.closed }

// Close ends every Subscribe forwarder. It is idempotent.
func (s *Signal) Close() { s.once.Do(func() { close(s.closed) }) }

// Subscribe forwards each Fire to the returned channel, coalescing bursts.
// The channel is closed when ctx is done or the Signal is closed.
func (s *Signal) Subscribe(ctx context.Context) <-chan struct{} {
	ch := s.C()
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case <-ch:
				ch = s.C()
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
