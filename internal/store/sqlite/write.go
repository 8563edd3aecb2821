package sqlite

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// Publish inserts facts in one transaction. Serials are assigned by SQLite
// in slice order; a duplicate id aborts the whole batch.
func (s *Store) Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error) {
	if len(facts) == 0 {
		return nil, nil
	}
	if err := store.ValidateBatch(facts); err != nil {
		return nil, err
	}
	select {
	case <-s.signal.Closed():
		return nil, store.ErrClosed
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fact (id, ns, type, header, payload, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	out := make([]fact.Fact, len(facts))
	for i := range facts {
		f := facts[i].Clone()
		header, err := json.Marshal(f.Header)
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: encode header")
		}
		res, err := stmt.ExecContext(ctx, f.ID.String(), f.Namespace, f.Type, string(header), f.Payload, now)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, errors.Wrapf(store.ErrDuplicateID, "%s", f.ID)
			}
			return nil, errors.Wrap(err, "sqlite: insert")
		}
		serial, err := res.LastInsertId()
		if err != nil {
			return nil, errors.Wrap(err, "sqlite: last insert id")
		}
		f.Serial = uint64(serial)
		out[i] = f
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "sqlite: commit")
	}
	s.signal.Fire()
	s.logger.Debug("sqlite.publish",
		logpkg.Int("count", len(out)),
		logpkg.Uint64("last", out[len(out)-1].Serial))
	return out, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
