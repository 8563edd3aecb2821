// Package namespace keeps the catalogue of fact namespaces and the fact
// types seen in each of them.
package namespace

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	pebblestore "github.com/otbe/factcast/internal/storage/pebble"
)

// Meta describes one namespace.
type Meta struct {
	Name        string   `json:"name"`
	CreatedAtMs int64    `json:"createdAtMs"`
	Types       []string `json:"types,omitempty"`
}

var nsMetaPrefix = []byte("nsmeta/")

// nsMetaKey builds metadata key for a namespace.
func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	k = append(k, ns...)
	return k
}

// Registry caches namespace metadata in memory and persists changes through
// the caller's write batch, so catalogue updates commit atomically with the
// facts that caused them.
type Registry struct {
	db *pebblestore.DB

	mu    sync.RWMutex
	metas map[string]*Meta
}

// Open loads every namespace record from db.
func Open(db *pebblestore.DB) (*Registry, error) {
	r := &Registry{db: db, metas: make(map[string]*Meta)}
	upper := append(append([]byte(nil), nsMetaPrefix...), 0xff)
	it, err := db.NewIter(&pebble.IterOptions{LowerBound: nsMetaPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ok := it.First(); ok; ok = it.Next() {
		var m Meta
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			return nil, errors.Wrapf(err, "namespace: decode %q", it.Key())
		}
		r.metas[m.Name] = &m
	}
	return r, it.Error()
}

// Stage writes the records needed to cover ns and types into b and returns
// a func that applies the change to the in-memory cache. Call the func only
// after b has committed. Callers serialise Stage calls.
func (r *Registry) Stage(b *pebble.Batch, seen map[string]map[string]struct{}) (func(), error) {
	r.mu.RLock()
	updated := make(map[string]*Meta)
	for ns, types := range seen {
		cur := r.metas[ns]
		var next Meta
		if cur == nil {
			next = Meta{Name: ns, CreatedAtMs: time.Now().UnixMilli()}
		} else {
			next = *cur
			next.Types = append([]string(nil), cur.Types...)
		}
		changed := cur == nil
		for t := range types {
			if t == "" || contains(next.Types, t) {
				continue
			}
			next.Types = append(next.Types, t)
			changed = true
		}
		if changed {
			sort.Strings(next.Types)
			updated[ns] = &next
		}
	}
	r.mu.RUnlock()

	for ns, m := range updated {
		raw, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		if err := b.Set(nsMetaKey(ns), raw, nil); err != nil {
			return nil, err
		}
	}
	return func() {
		if len(updated) == 0 {
			return
		}
		r.mu.Lock()
		for ns, m := range updated {
			r.metas[ns] = m
		}
		r.mu.Unlock()
	}, nil
}

// Get returns the metadata of ns.
func (r *Registry) Get(ns string) (Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metas[ns]
	if !ok {
		return Meta{}, false
	}
	out := *m
	out.Types = append([]string(nil), m.Types...)
	return out, true
}

// Names lists known namespaces in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.metas))
	for ns := range r.metas {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Types lists the fact types seen in ns in lexical order.
func (r *Registry) Types(ns string) []string {
	m, ok := r.Get(ns)
	if !ok {
		return []string{}
	}
	return m.Types
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
