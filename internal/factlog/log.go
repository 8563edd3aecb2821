package factlog

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/namespace"
	pebblestore "github.com/otbe/factcast/internal/storage/pebble"
	"github.com/otbe/factcast/internal/store"
	logpkg "github.com/otbe/factcast/pkg/log"
)

// Log is the append-only fact log over one Pebble database.
type Log struct {
	db     *pebblestore.DB
	nsreg  *namespace.Registry
	logger logpkg.Logger

	mu         sync.Mutex
	lastSerial uint64
	notifyCh   chan struct{}
	closed     chan struct{}
	closeOnce  sync.Once

	committed atomic.Uint64
}

var _ store.Store = (*Log)(nil)

// Open loads the last serial and the namespace catalogue from db.
func Open(db *pebblestore.DB, logger logpkg.Logger) (*Log, error) {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	nsreg, err := namespace.Open(db)
	if err != nil {
		return nil, err
	}
	l := &Log{
		db:       db,
		nsreg:    nsreg,
		logger:   logger.WithComponent("factlog"),
		notifyCh: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	meta, err := db.Get(metaKey)
	switch {
	case err == nil && len(meta) >= 8:
		l.lastSerial = binary.BigEndian.Uint64(meta[:8])
	case err != nil && !errors.Is(err, pebblestore.ErrNotFound):
		return nil, errors.Wrap(err, "factlog: read meta")
	}
	l.committed.Store(l.lastSerial)
	l.logger.Debug("factlog.open", logpkg.Uint64("serial", l.lastSerial))
	return l, nil
}

// Publish appends facts as a single atomic batch.
func (l *Log) Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error) {
	if len(facts) == 0 {
		return nil, nil
	}
	if err := store.ValidateBatch(facts); err != nil {
		return nil, err
	}
	select {
	case <-l.closed:
		return nil, store.ErrClosed
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range facts {
		if _, err := l.db.Get(KeyID(facts[i].ID)); err == nil {
			return nil, errors.Wrapf(store.ErrDuplicateID, "%s", facts[i].ID)
		} else if !errors.Is(err, pebblestore.ErrNotFound) {
			return nil, err
		}
	}

	b := l.db.NewBatch()
	defer b.Close()

	out := make([]fact.Fact, len(facts))
	seen := make(map[string]map[string]struct{})
	serial := l.lastSerial
	for i := range facts {
		serial++
		f := facts[i].Clone()
		f.Serial = serial
		val, err := encodeFact(&f)
		if err != nil {
			return nil, err
		}
		if err := b.Set(KeyEntry(serial), val, nil); err != nil {
			return nil, err
		}
		if err := b.Set(KeyID(f.ID), appendBE8(nil, serial), nil); err != nil {
			return nil, err
		}
		if err := b.Set(KeyNamespace(f.Namespace, serial), nil, nil); err != nil {
			return nil, err
		}
		if seen[f.Namespace] == nil {
			seen[f.Namespace] = make(map[string]struct{})
		}
		seen[f.Namespace][f.Type] = struct{}{}
		out[i] = f
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], serial)
	if err := b.Set(metaKey, meta[:], nil); err != nil {
		return nil, err
	}
	apply, err := l.nsreg.Stage(b, seen)
	if err != nil {
		return nil, err
	}

	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, errors.Wrap(err, "factlog: commit")
	}
	apply()
	l.lastSerial = serial
	l.committed.Store(serial)

	// wake waiters
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return out, nil
}

// LatestSerial returns the highest committed serial.
func (l *Log) LatestSerial(context.Context) (uint64, error) {
	return l.committed.Load(), nil
}

// SerialOf maps a fact id to its serial.
func (l *Log) SerialOf(_ context.Context, id uuid.UUID) (uint64, bool, error) {
	raw, err := l.db.Get(KeyID(id))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) < 8 {
		return 0, false, errors.Wrapf(ErrCorrupt, "id index %s", id)
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// FetchByID loads the fact with the given id.
func (l *Log) FetchByID(ctx context.Context, id uuid.UUID) (fact.Fact, bool, error) {
	serial, ok, err := l.SerialOf(ctx, id)
	if err != nil || !ok {
		return fact.Fact{}, false, err
	}
	raw, err := l.db.Get(KeyEntry(serial))
	if err != nil {
		return fact.Fact{}, false, err
	}
	f, err := decodeFact(serial, raw)
	if err != nil {
		return fact.Fact{}, false, err
	}
	return f, true, nil
}

func (l *Log) EnumerateNamespaces(context.Context) ([]string, error) {
	return l.nsreg.Names(), nil
}

func (l *Log) EnumerateTypes(_ context.Context, ns string) ([]string, error) {
	return l.nsreg.Types(ns), nil
}

// Close releases append listeners. The DB stays open; its owner closes it.
func (l *Log) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

// snapshotIter opens a bounded iterator on snap.
func snapshotIter(snap *pebble.Snapshot, lower, upper []byte) (*pebble.Iterator, error) {
	return snap.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
}
