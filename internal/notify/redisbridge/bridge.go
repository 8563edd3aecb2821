// Package redisbridge shares append signals between processes over Redis
// pub/sub. It wraps a store: every successful Publish is announced on a
// Redis channel, and SubscribeToAppends merges the store's own signals with
// announcements from other processes.
//
// Redis only carries wake-ups. If it is unreachable the wrapped store keeps
// working and remote subscribers fall back to their re-scan timer.
package redisbridge

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "factcast:appends"

// Store decorates a store.Store with Redis signalling.
type Store struct {
	store.Store
	client  redis.UniversalClient
	channel string
	logger  logpkg.Logger
}

// Wrap returns inner with Redis signalling on channel.
func Wrap(inner store.Store, client redis.UniversalClient, channel string, logger logpkg.Logger) *Store {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Store{
		Store:   inner,
		client:  client,
		channel: channel,
		logger:  logger.WithComponent("redisbridge"),
	}
}

// Publish appends through the wrapped store and announces the last serial.
// An announcement failure is logged, never returned.
func (s *Store) Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error) {
	out, err := s.Store.Publish(ctx, facts)
	if err != nil || len(out) == 0 {
		return out, err
	}
	last := strconv.FormatUint(out[len(out)-1].Serial, 10)
	if err := s.client.Publish(ctx, s.channel, last).Err(); err != nil {
		s.logger.Warn("redisbridge.announce", logpkg.Err(err), logpkg.Str("channel", s.channel))
	}
	return out, nil
}

// SubscribeToAppends merges local and remote signals. The returned channel
// closes when ctx is done or the local source closes; losing Redis only
// drops the remote half.
func (s *Store) SubscribeToAppends(ctx context.Context) (<-chan struct{}, error) {
	local, err := s.Store.SubscribeToAppends(ctx)
	if err != nil {
		return nil, err
	}

	var remote <-chan *redis.Message
	ps := s.client.Subscribe(ctx, s.channel)
	if _, err := ps.Receive(ctx); err != nil {
		s.logger.Warn("redisbridge.subscribe", logpkg.Err(err), logpkg.Str("channel", s.channel))
		_ = ps.Close()
		ps = nil
	} else {
		remote = ps.Channel()
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		if ps != nil {
			defer ps.Close()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-local:
				if !ok {
					return
				}
				signal(out)
			case _, ok := <-remote:
				if !ok {
					remote = nil
					continue
				}
				signal(out)
			}
		}
	}()
	return out, nil
}

func signal(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}
