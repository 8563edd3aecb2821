package factlog

import (
	"context"

	"github.com/otbe/factcast/internal/store"
)

func (l *Log) appendCh() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notifyCh
}

// SubscribeToAppends forwards every commit wake-up to the returned channel,
// coalescing bursts. The channel closes when ctx is done or the log closes.
func (l *Log) SubscribeToAppends(ctx context.Context) (<-chan struct{}, error) {
	select {
	case <-l.closed:
		return nil, store.ErrClosed
	default:
	}
	// Taken before returning so a commit right after the call is seen.
	ch := l.appendCh()
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.closed:
				return
			case <-ch:
				// Re-arm before signalling so a commit racing the send is
				// either covered by this signal or by the next channel.
				ch = l.appendCh()
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
