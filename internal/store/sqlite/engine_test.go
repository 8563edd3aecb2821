package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store/sqlite"
	"github.com/otbe/factcast/internal/subscription"
)

type sink struct {
	mu      sync.Mutex
	serials []uint64
	caught  chan struct{}
}

func (s *sink) OnNext(it subscription.Item) {
	s.mu.Lock()
	s.serials = append(s.serials, it.Serial)
	s.mu.Unlock()
}
func (s *sink) OnCatchup()    { close(s.caught) }
func (s *sink) OnComplete()   {}
func (s *sink) OnError(error) {}

func (s *sink) got() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.serials...)
}

func TestFollowOverSQLite(t *testing.T) {
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "facts.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	publish := func(ns string) {
		_, err := st.Publish(context.Background(), []fact.Fact{{Header: fact.Header{ID: uuid.New(), Namespace: ns}}})
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		publish("orders")
	}
	m := subscription.NewManager(st, subscription.Options{PageSize: 2, FallbackInterval: time.Second})
	t.Cleanup(func() { _ = m.Close() })

	req, err := fact.Follow(fact.Spec{Namespace: "orders"}).AsIDs().SinceSerial(2)
	require.NoError(t, err)
	s := &sink{caught: make(chan struct{})}
	sub, err := m.Subscribe(context.Background(), req, s)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case <-s.caught:
	case <-time.After(5 * time.Second):
		t.Fatalf("catchup not signalled")
	}
	require.Equal(t, []uint64{3, 4, 5}, s.got())

	publish("users")
	publish("orders")
	// Signals are in-process, so delivery beats the one second fallback.
	require.Eventually(t, func() bool { return len(s.got()) == 4 }, 500*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, uint64(7), s.got()[3])
}
