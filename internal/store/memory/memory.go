// Package memory is a slice-backed fact store for embedding and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store"
)

// Op names an operation for failure injection.
type Op string

const (
	OpScan      Op = "scan"
	OpLatest    Op = "latest"
	OpSubscribe Op = "subscribe"
	OpPublish   Op = "publish"
)

// Store keeps every fact in memory. Serials start at 1.
type Store struct {
	mu        sync.RWMutex
	facts     []fact.Fact
	byID      map[uuid.UUID]uint64
	types     map[string]map[string]struct{}
	listeners map[chan struct{}]struct{}
	closed    chan struct{}
	isClosed  bool

	failures    map[Op]error
	dropSignals bool
	scanHook    func(after uint64)
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:      make(map[uuid.UUID]uint64),
		types:     make(map[string]map[string]struct{}),
		listeners: make(map[chan struct{}]struct{}),
		closed:    make(chan struct{}),
		failures:  make(map[Op]error),
	}
}

// Fail makes op return err until cleared with a nil err.
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// DropSignals suppresses append signals while set.
func (s *Store) DropSignals(drop bool) {
	s.mu.Lock()
	s.dropSignals = drop
	s.mu.Unlock()
}

// OnScan installs fn to run at the start of every ScanFrom, outside the lock.
func (s *Store) OnScan(fn func(after uint64)) {
	s.mu.Lock()
	s.scanHook = fn
	s.mu.Unlock()
}

func (s *Store) failure(op Op) error {
	if s.isClosed {
		return store.ErrClosed
	}
	return s.failures[op]
}

func (s *Store) Publish(_ context.Context, facts []fact.Fact) ([]fact.Fact, error) {
	if err := store.ValidateBatch(facts); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if err := s.failure(OpPublish); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	for i := range facts {
		if _, ok := s.byID[facts[i].ID]; ok {
			s.mu.Unlock()
			return nil, errors.Wrapf(store.ErrDuplicateID, "%s", facts[i].ID)
		}
	}
	out := make([]fact.Fact, len(facts))
	for i := range facts {
		f := facts[i].Clone()
		f.Serial = uint64(len(s.facts)) + 1
		s.facts = append(s.facts, f)
		s.byID[f.ID] = f.Serial
		if s.types[f.Namespace] == nil {
			s.types[f.Namespace] = make(map[string]struct{})
		}
		if f.Type != "" {
			s.types[f.Namespace][f.Type] = struct{}{}
		}
		out[i] = f.Clone()
	}
	if !s.dropSignals {
		for ch := range s.listeners {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
	s.mu.Unlock()
	return out, nil
}

func (s *Store) ScanFrom(_ context.Context, after uint64, specs []fact.Spec, limit int) ([]fact.Fact, error) {
	s.mu.RLock()
	hook := s.scanHook
	s.mu.RUnlock()
	if hook != nil {
		hook(after)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpScan); err != nil {
		return nil, err
	}
	var out []fact.Fact
	// serial n lives at index n-1
	for i := int(after); i < len(s.facts); i++ {
		if len(specs) > 0 && !fact.Matches(&s.facts[i], specs) {
			continue
		}
		out = append(out, s.facts[i].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) LatestSerial(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpLatest); err != nil {
		return 0, err
	}
	return uint64(len(s.facts)), nil
}

func (s *Store) SubscribeToAppends(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	if err := s.failure(OpSubscribe); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ch := make(chan struct{}, 1)
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.closed:
		}
		s.mu.Lock()
		delete(s.listeners, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *Store) SerialOf(_ context.Context, id uuid.UUID) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return 0, false, store.ErrClosed
	}
	serial, ok := s.byID[id]
	return serial, ok, nil
}

func (s *Store) FetchByID(_ context.Context, id uuid.UUID) (fact.Fact, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return fact.Fact{}, false, store.ErrClosed
	}
	serial, ok := s.byID[id]
	if !ok {
		return fact.Fact{}, false, nil
	}
	return s.facts[serial-1].Clone(), true, nil
}

func (s *Store) EnumerateNamespaces(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.types))
	for ns := range s.types {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) EnumerateTypes(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.types[namespace]))
	for t := range s.types[namespace] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// Close releases listeners. Later operations fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return nil
	}
	s.isClosed = true
	close(s.closed)
	return nil
}
