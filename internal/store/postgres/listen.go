package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/store"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// SubscribeToAppends listens on NotifyChannel over a dedicated connection.
// A lost connection is re-established after RelistenDelay and followed by
// one synthetic signal, since notifications sent meanwhile are gone. The
// channel closes when ctx is done or the store closes.
func (s *Store) SubscribeToAppends(ctx context.Context) (<-chan struct{}, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	lctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)

	conn, err := s.listen(lctx)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer cancel()
		defer stop()
		for {
			if conn == nil {
				select {
				case <-lctx.Done():
					return
				case <-time.After(RelistenDelay):
				}
				if conn, err = s.listen(lctx); err != nil {
					s.logger.Warn("postgres.listen", logpkg.Err(err))
					conn = nil
					continue
				}
				signal(out)
			}
			_, err := conn.WaitForNotification(lctx)
			if err != nil {
				conn.Close(context.Background())
				conn = nil
				if lctx.Err() != nil {
					return
				}
				s.logger.Warn("postgres.listen.lost", logpkg.Err(err))
				continue
			}
			signal(out)
		}
	}()
	return out, nil
}

// listen opens a connection outside the pool, so a long wait never holds a
// pooled connection, and subscribes it to NotifyChannel.
func (s *Store) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, s.pool.Config().ConnConfig.Copy())
	if err != nil {
		return nil, errors.Wrap(err, "postgres: listen connect")
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, errors.Wrap(err, "postgres: listen")
	}
	return conn, nil
}

func signal(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}
