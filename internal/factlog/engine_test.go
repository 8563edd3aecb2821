package factlog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/factlog"
	pebblestore "github.com/otbe/factcast/internal/storage/pebble"
	"github.com/otbe/factcast/internal/subscription"
)

type collector struct {
	mu      sync.Mutex
	serials []uint64
	caught  chan struct{}
	done    chan struct{}
}

func newCollector() *collector {
	return &collector{caught: make(chan struct{}), done: make(chan struct{})}
}

func (c *collector) OnNext(it subscription.Item) {
	c.mu.Lock()
	c.serials = append(c.serials, it.Serial)
	c.mu.Unlock()
}
func (c *collector) OnCatchup()      { close(c.caught) }
func (c *collector) OnComplete()     { close(c.done) }
func (c *collector) OnError(e error) { close(c.done) }

func (c *collector) got() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.serials...)
}

func publishN(t *testing.T, l *factlog.Log, ns string, n int) {
	t.Helper()
	batch := make([]fact.Fact, n)
	for i := range batch {
		batch[i] = fact.Fact{Header: fact.Header{ID: uuid.New(), Namespace: ns, Type: "T"}}
	}
	_, err := l.Publish(context.Background(), batch)
	require.NoError(t, err)
}

// Catchup and tail over Pebble: facts published while the subscription is
// catching up are delivered exactly once, in order.
func TestFollowOverPebble(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	l, err := factlog.Open(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	publishN(t, l, "orders", 50)
	publishN(t, l, "users", 10)

	m := subscription.NewManager(l, subscription.Options{PageSize: 8})
	t.Cleanup(func() { _ = m.Close() })

	req, err := fact.Follow(fact.Spec{Namespace: "orders"}).AsFacts().SinceInception()
	require.NoError(t, err)
	c := newCollector()
	sub, err := m.Subscribe(context.Background(), req, c)
	require.NoError(t, err)
	defer sub.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			publishN(t, l, "orders", 3)
			publishN(t, l, "users", 1)
		}
	}()
	wg.Wait()

	require.Eventually(t, func() bool { return len(c.got()) == 80 }, 5*time.Second, 10*time.Millisecond)
	got := c.got()
	for i := 1; i < len(got); i++ {
		require.Greater(t, got[i], got[i-1])
	}
	time.Sleep(50 * time.Millisecond)
	require.Len(t, c.got(), 80)
}

func TestCatchupOverPebbleCompletes(t *testing.T) {
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	l, err := factlog.Open(db, nil)
	require.NoError(t, err)

	publishN(t, l, "orders", 5)
	m := subscription.NewManager(l, subscription.Options{PageSize: 2})
	t.Cleanup(func() { _ = m.Close() })

	req, err := fact.Catchup(fact.Spec{Namespace: "orders"}).AsIDs().SinceInception()
	require.NoError(t, err)
	c := newCollector()
	_, err = m.Subscribe(context.Background(), req, c)
	require.NoError(t, err)

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout")
	}
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, c.got())
}
