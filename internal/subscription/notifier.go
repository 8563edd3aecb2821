package subscription

import (
	"context"
	"sync"
	"time"

	"gopkg.in/tomb.v2"

	logpkg "github.com/otbe/factcast/pkg/log"
)

// resubscribeBackoff spaces re-subscription attempts after a failed one.
const resubscribeBackoff = time.Second

// AppendSource yields the raw append signals a Notifier fans out.
type AppendSource interface {
	SubscribeToAppends(ctx context.Context) (<-chan struct{}, error)
}

// Notifier turns one store signal source into a broadcast. Every waiter
// takes the current channel with Channel; the channel is closed, and
// replaced, on the next signal, so a single close wakes every waiter and a
// waiter that took the channel before scanning cannot miss a signal sent
// after it.
//
// The source subscription is opened lazily on first use and runs as a
// session with its own tomb. If the source closes its channel the session
// ends, waiters fall back to their timers, and the next Channel call opens
// a new session.
type Notifier struct {
	src    AppendSource
	logger logpkg.Logger

	mu          sync.Mutex
	ch          chan struct{}
	session     *tomb.Tomb
	started     bool
	subscribing bool
	retryAt     time.Time
	closed      bool
}

// NewNotifier builds a Notifier over src.
func NewNotifier(src AppendSource, logger logpkg.Logger) *Notifier {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Notifier{
		src:    src,
		logger: logger.WithComponent("notifier"),
		ch:     make(chan struct{}),
	}
}

// Channel returns the channel that will be closed on the next append
// signal. The first call subscribes to the source; a failure there is
// returned and retried on the next call. After the source has gone away a
// failed re-subscription is only logged and Channel returns a nil channel,
// which never fires, until the next attempt. A closed Notifier always
// returns nil.
func (n *Notifier) Channel() (<-chan struct{}, error) {
	n.mu.Lock()
	ch := n.ch
	switch {
	case n.closed:
		n.mu.Unlock()
		return nil, nil
	case n.session != nil, n.subscribing:
		n.mu.Unlock()
		return ch, nil
	case n.started && time.Now().Before(n.retryAt):
		n.mu.Unlock()
		return nil, nil
	}
	n.subscribing = true
	resubscribe := n.started
	n.mu.Unlock()

	// The source may dial; other callers keep using the current channel.
	t := &tomb.Tomb{}
	sig, err := n.src.SubscribeToAppends(t.Context(context.Background()))

	n.mu.Lock()
	defer n.mu.Unlock()
	n.subscribing = false
	if err != nil {
		t.Kill(nil)
		if !resubscribe {
			return nil, err
		}
		n.retryAt = time.Now().Add(resubscribeBackoff)
		n.logger.Warn("notifier.resubscribe.failed", logpkg.Err(err))
		return nil, nil
	}
	if n.closed {
		t.Kill(nil)
		return nil, nil
	}
	n.session = t
	n.started = true
	t.Go(func() error { return n.pump(t, sig) })
	if resubscribe {
		n.logger.Info("notifier.resubscribed")
	}
	return ch, nil
}

func (n *Notifier) pump(t *tomb.Tomb, sig <-chan struct{}) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case _, ok := <-sig:
			if !ok {
				n.mu.Lock()
				if n.session == t {
					n.session = nil
				}
				closed := n.closed
				n.mu.Unlock()
				if !closed {
					n.logger.Warn("notifier.degraded", logpkg.Str("reason", "append source closed"))
				}
				return nil
			}
			n.Broadcast()
		}
	}
}

// Broadcast wakes every current waiter.
func (n *Notifier) Broadcast() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.mu.Unlock()
}

// Close stops the current session and releases its source subscription.
func (n *Notifier) Close() error {
	n.mu.Lock()
	n.closed = true
	t := n.session
	n.session = nil
	n.mu.Unlock()
	if t == nil {
		return nil
	}
	t.Kill(nil)
	return t.Wait()
}
