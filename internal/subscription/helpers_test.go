package subscription_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store/memory"
	"github.com/otbe/factcast/internal/subscription"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is an Observer that keeps every call in order.
type recorder struct {
	mu       sync.Mutex
	events   []string
	items    []subscription.Item
	errs     []error
	catchup  chan struct{}
	terminal chan struct{}
	onNext   func(subscription.Item)
}

func newRecorder() *recorder {
	return &recorder{catchup: make(chan struct{}), terminal: make(chan struct{})}
}

func (r *recorder) OnNext(it subscription.Item) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf("next:%d", it.Serial))
	r.items = append(r.items, it)
	hook := r.onNext
	r.mu.Unlock()
	if hook != nil {
		hook(it)
	}
}

func (r *recorder) OnCatchup() {
	r.mu.Lock()
	r.events = append(r.events, "catchup")
	r.mu.Unlock()
	close(r.catchup)
}

func (r *recorder) OnComplete() {
	r.mu.Lock()
	r.events = append(r.events, "complete")
	r.mu.Unlock()
	close(r.terminal)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.events = append(r.events, "error")
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	close(r.terminal)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) serials() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.Serial)
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func waitCount(t *testing.T, r *recorder, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return r.count() >= n }, 5*time.Second, 5*time.Millisecond,
		"expected %d deliveries", n)
}

func requireStrictlyIncreasing(t *testing.T, serials []uint64) {
	t.Helper()
	for i := 1; i < len(serials); i++ {
		require.Greater(t, serials[i], serials[i-1], "serials out of order at %d: %v", i, serials)
	}
}

func newFact(ns, typ string) fact.Fact {
	return fact.Fact{
		Header:  fact.Header{ID: uuid.New(), Namespace: ns, Type: typ},
		Payload: []byte(`{}`),
	}
}

func publish(t *testing.T, s *memory.Store, ns string, n int) []fact.Fact {
	t.Helper()
	batch := make([]fact.Fact, n)
	for i := range batch {
		batch[i] = newFact(ns, "Created")
	}
	out, err := s.Publish(context.Background(), batch)
	require.NoError(t, err)
	return out
}

func newManager(t *testing.T, s subscription.Store, opts subscription.Options) *subscription.Manager {
	t.Helper()
	m := subscription.NewManager(s, opts)
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m
}

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func catchupReq(t *testing.T, specs ...fact.Spec) fact.Request {
	t.Helper()
	req, err := fact.Catchup(specs...).AsFacts().SinceInception()
	require.NoError(t, err)
	return req
}

func followReq(t *testing.T, specs ...fact.Spec) fact.Request {
	t.Helper()
	req, err := fact.Follow(specs...).AsFacts().SinceInception()
	require.NoError(t, err)
	return req
}

var orders = fact.Spec{Namespace: "orders"}
