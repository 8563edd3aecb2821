package postgres

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store"
	logpkg "github.com/otbe/factcast/pkg/log"
)

const uniqueViolation = "23505"

// Publish inserts facts in one transaction under the append lock and
// announces the last serial on NotifyChannel when the transaction commits.
func (s *Store) Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error) {
	if len(facts) == 0 {
		return nil, nil
	}
	if err := store.ValidateBatch(facts); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, store.ErrClosed
	}

	var out []fact.Fact
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(appendLockKey)); err != nil {
			return errors.Wrap(err, "postgres: append lock")
		}
		out = make([]fact.Fact, len(facts))
		for i := range facts {
			f := facts[i].Clone()
			header, err := json.Marshal(f.Header)
			if err != nil {
				return errors.Wrap(err, "postgres: encode header")
			}
			var serial int64
			err = tx.QueryRow(ctx, `
				INSERT INTO fact (id, ns, type, header, payload)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING serial
			`, f.ID, f.Namespace, f.Type, header, f.Payload).Scan(&serial)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
					return errors.Wrapf(store.ErrDuplicateID, "%s", f.ID)
				}
				return errors.Wrap(err, "postgres: insert")
			}
			f.Serial = uint64(serial)
			out[i] = f
		}
		last := strconv.FormatUint(out[len(out)-1].Serial, 10)
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, last); err != nil {
			return errors.Wrap(err, "postgres: notify")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("postgres.publish",
		logpkg.Int("count", len(out)),
		logpkg.Uint64("last", out[len(out)-1].Serial))
	return out, nil
}
