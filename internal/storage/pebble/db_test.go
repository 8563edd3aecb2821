package pebblestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testMetrics struct {
	read         int
	batchCommits int
	batchOps     int
	batchBytes   int
}

func (m *testMetrics) ObserveRead(d time.Duration, bytes int) { m.read += bytes }
func (m *testMetrics) ObserveBatchCommit(d time.Duration, numOps int, bytes int) {
	m.batchCommits++
	m.batchOps += numOps
	m.batchBytes += bytes
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	dir := t.TempDir()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestSetGet(t *testing.T) {
	db, metrics := newTestDB(t)

	if _, err := db.Get([]byte("fact/m")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found before set, got %v", err)
	}

	key := []byte("fact/m")
	val := []byte{0, 0, 0, 0, 0, 0, 0, 7}
	if err := db.Set(key, val); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("got %q want %q", got, val)
	}

	if metrics.read == 0 {
		t.Fatalf("expected read metrics to record bytes")
	}
}

func TestBatchCommitMetrics(t *testing.T) {
	db, metrics := newTestDB(t)

	b := db.NewBatch()
	if err := b.Set([]byte("a"), []byte("1"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Set([]byte("b"), []byte("2"), nil); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()

	if metrics.batchCommits != 1 {
		t.Fatalf("want 1 batch commit, got %d", metrics.batchCommits)
	}
	if metrics.batchBytes <= 0 {
		t.Fatalf("expected positive batch bytes")
	}
	if metrics.batchOps != 2 {
		t.Fatalf("want 2 batch ops, got %d", metrics.batchOps)
	}
}

func TestSnapshotConsistency(t *testing.T) {
	db, _ := newTestDB(t)

	key := []byte("k2")
	if err := db.Set(key, []byte("old")); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap := db.NewSnapshot()
	defer snap.Close()

	// mutate after snapshot
	if err := db.Set(key, []byte("new")); err != nil {
		t.Fatalf("set: %v", err)
	}

	// read via snapshot should see old
	valOld, closer, err := snap.Get(key)
	if err != nil {
		t.Fatalf("snap get: %v", err)
	}
	if string(valOld) != "old" {
		t.Fatalf("snapshot saw %q want %q", valOld, "old")
	}
	closer.Close()

	// read via DB should see new
	valNew, err := db.Get(key)
	if err != nil {
		t.Fatalf("db get: %v", err)
	}
	if string(valNew) != "new" {
		t.Fatalf("db saw %q want %q", valNew, "new")
	}
}

func TestCommitHonoursContext(t *testing.T) {
	db, metrics := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("x"), []byte("1"), nil)
	if err := db.CommitBatch(ctx, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if metrics.batchCommits != 0 {
		t.Fatalf("cancelled commit must not be observed")
	}
}

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm, err := NewPromMetrics(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	db, err := Open(Options{DataDir: t.TempDir(), Fsync: FsyncModeNever, Metrics: pm})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Set([]byte("k"), []byte("value")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := db.Get([]byte("k")); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := testutil.ToFloat64(pm.commitOps); got != 1 {
		t.Fatalf("commit ops = %v", got)
	}
	if got := testutil.ToFloat64(pm.readBytes); got != 5 {
		t.Fatalf("read bytes = %v", got)
	}
	if _, err := NewPromMetrics(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestParseFsyncMode(t *testing.T) {
	for in, want := range map[string]FsyncMode{"": FsyncModeInterval, "always": FsyncModeAlways, "never": FsyncModeNever} {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFsyncMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
