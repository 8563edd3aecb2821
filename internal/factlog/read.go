package factlog

import (
	"context"
	"math"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
)

// ScanFrom returns up to limit facts matching specs with a serial greater
// than after, ascending. The namespaces of specs are pushed down to the
// namespace index; type, meta and filter constraints are checked on the
// decoded fact. A limit of zero means unbounded. An empty spec list scans
// every fact.
func (l *Log) ScanFrom(ctx context.Context, after uint64, specs []fact.Spec, limit int) ([]fact.Fact, error) {
	if after == math.MaxUint64 {
		return nil, nil
	}
	snap := l.db.NewSnapshot()
	defer snap.Close()

	if len(specs) == 0 {
		return l.scanEntries(ctx, snap, after, limit)
	}

	m, err := newNamespaceMerge(snap, fact.Namespaces(specs), after)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	var out []fact.Fact
	for {
		serial, ok := m.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, closer, err := snap.Get(KeyEntry(serial))
		if err != nil {
			return nil, errors.Wrapf(err, "factlog: entry %d", serial)
		}
		f, err := decodeFact(serial, raw)
		closer.Close()
		if err != nil {
			return nil, err
		}
		if !fact.Matches(&f, specs) {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, m.Err()
}

func (l *Log) scanEntries(ctx context.Context, snap *pebble.Snapshot, after uint64, limit int) ([]fact.Fact, error) {
	it, err := snapshotIter(snap, KeyEntry(after+1), append(KeyEntry(math.MaxUint64), 0x00))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []fact.Fact
	for ok := it.First(); ok; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := decodeFact(serialSuffix(it.Key()), it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, it.Error()
}

// namespaceMerge walks several namespace index ranges in global serial order.
type namespaceMerge struct {
	iters []*pebble.Iterator
	err   error
}

func newNamespaceMerge(snap *pebble.Snapshot, namespaces []string, after uint64) (*namespaceMerge, error) {
	m := &namespaceMerge{}
	for _, ns := range namespaces {
		lower := KeyNamespace(ns, after+1)
		upper := append(KeyNamespace(ns, math.MaxUint64), 0x00)
		it, err := snapshotIter(snap, lower, upper)
		if err != nil {
			m.Close()
			return nil, err
		}
		if it.First() {
			m.iters = append(m.iters, it)
			continue
		}
		if err := it.Error(); err != nil {
			it.Close()
			m.Close()
			return nil, err
		}
		it.Close()
	}
	return m, nil
}

// Next returns the smallest pending serial across all ranges.
func (m *namespaceMerge) Next() (uint64, bool) {
	best := -1
	var bestSerial uint64
	for i, it := range m.iters {
		s := serialSuffix(it.Key())
		if best < 0 || s < bestSerial {
			best, bestSerial = i, s
		}
	}
	if best < 0 {
		return 0, false
	}
	it := m.iters[best]
	if !it.Next() {
		if err := it.Error(); err != nil && m.err == nil {
			m.err = err
		}
		it.Close()
		m.iters = append(m.iters[:best], m.iters[best+1:]...)
	}
	return bestSerial, true
}

func (m *namespaceMerge) Err() error { return m.err }

func (m *namespaceMerge) Close() {
	for _, it := range m.iters {
		it.Close()
	}
	m.iters = nil
}
