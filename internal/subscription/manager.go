package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/tomb.v2"

	"github.com/otbe/factcast/internal/fact"
	logpkg "github.com/otbe/factcast/pkg/log"
)

const (
	// DefaultPageSize is the number of facts fetched per scan.
	DefaultPageSize = 256
	// DefaultFallbackInterval bounds the tail wait when a request does not
	// set its own MaxLatency.
	DefaultFallbackInterval = 100 * time.Millisecond
)

// Options tunes a Manager. Zero values select the defaults.
type Options struct {
	PageSize         int
	FallbackInterval time.Duration
	Logger           logpkg.Logger
}

// Manager starts and tracks subscriptions over one Store. All subscriptions
// of a Manager share one Notifier.
type Manager struct {
	store    Store
	notifier *Notifier
	pageSize int
	fallback time.Duration
	logger   logpkg.Logger

	mu     sync.Mutex
	subs   map[string]*Subscription
	closed bool
}

// NewManager creates a Manager reading from store.
func NewManager(store Store, opts Options) *Manager {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.FallbackInterval <= 0 {
		opts.FallbackInterval = DefaultFallbackInterval
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNopLogger()
	}
	return &Manager{
		store:    store,
		notifier: NewNotifier(store, opts.Logger),
		pageSize: opts.PageSize,
		fallback: opts.FallbackInterval,
		logger:   opts.Logger.WithComponent("subscription"),
		subs:     make(map[string]*Subscription),
	}
}

// Notifier exposes the shared append broadcast, e.g. for in-process writers
// that want to wake subscribers without waiting for the store signal.
func (m *Manager) Notifier() *Notifier { return m.notifier }

// Subscribe validates req and starts delivering to obs. It returns as soon
// as the delivery goroutine is started. Invalid requests fail with
// ErrInvalidRequest before anything is delivered. An id cursor is resolved
// here; an unknown id is an invalid request.
//
// Cancelling ctx has the same effect as Kill.
func (m *Manager) Subscribe(ctx context.Context, req fact.Request, obs Observer) (*Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.Wrap(ErrInvalidRequest, "observer is required")
	}

	start := req.StartingAfter().Serial
	if id := req.StartingAfter().ID; id != uuid.Nil {
		resolver, ok := m.store.(SerialResolver)
		if !ok {
			return nil, errors.Wrap(ErrInvalidRequest, "store does not resolve id cursors")
		}
		serial, found, err := resolver.SerialOf(ctx, id)
		if err != nil {
			return nil, storeErr(err, "resolve cursor")
		}
		if !found {
			return nil, errors.Wrapf(ErrInvalidRequest, "unknown cursor id %s", id)
		}
		start = serial
	}

	fallback := req.MaxLatency()
	if fallback <= 0 {
		fallback = m.fallback
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	t, tctx := tomb.WithContext(ctx)
	sid := uuid.NewString()
	s := &Subscription{
		id:       sid,
		req:      req,
		specs:    req.Specs(),
		obs:      obs,
		store:    m.store,
		notifier: m.notifier,
		pageSize: m.pageSize,
		fallback: fallback,
		logger:   m.logger.With(logpkg.Str("sub", sid)),
		onDone:   m.remove,
		tomb:     t,
		ctx:      tctx,
		cursor:   start,
	}
	s.lastSerial.Store(start)
	m.subs[sid] = s
	activeSubscriptions.Inc()

	s.logger.Debug("subscription.start",
		logpkg.Uint64("after", start),
		logpkg.Bool("continuous", req.Continuous()),
		logpkg.Bool("idOnly", req.IDOnly()),
		logpkg.Int("specs", len(s.specs)))
	t.Go(s.run)
	return s, nil
}

func (m *Manager) remove(s *Subscription) {
	m.mu.Lock()
	if _, ok := m.subs[s.id]; ok {
		delete(m.subs, s.id)
		activeSubscriptions.Dec()
	}
	m.mu.Unlock()
}

// Active returns the number of running subscriptions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Close cancels every subscription, waits for them to stop and releases the
// notifier. Subscribe fails with ErrClosed afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := make([]*Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.Kill()
	}
	for _, s := range subs {
		_ = s.Wait()
	}
	return m.notifier.Close()
}
