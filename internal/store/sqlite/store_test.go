package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/store"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "facts.db"), nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mk(ns, typ, payload string) fact.Fact {
	return fact.Fact{Header: fact.Header{ID: uuid.New(), Namespace: ns, Type: typ}, Payload: []byte(payload)}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path, nil)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		v, err := s.schemaVersion()
		if err != nil || v != currentSchemaVersion {
			t.Fatalf("user_version=%d err=%v", v, err)
		}
		s.Close()
	}
}

func TestPublishAssignsSerials(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	out, err := s.Publish(ctx, []fact.Fact{mk("orders", "A", `{"n":1}`), mk("orders", "B", "")})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if out[0].Serial != 1 || out[1].Serial != 2 {
		t.Fatalf("serials = %d,%d", out[0].Serial, out[1].Serial)
	}
	latest, err := s.LatestSerial(ctx)
	if err != nil || latest != 2 {
		t.Fatalf("latest=%d err=%v", latest, err)
	}
}

func TestPublishDuplicateAbortsBatch(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	first := mk("orders", "A", "")
	if _, err := s.Publish(ctx, []fact.Fact{first}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_, err := s.Publish(ctx, []fact.Fact{mk("orders", "A", ""), first})
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	latest, _ := s.LatestSerial(ctx)
	if latest != 1 {
		t.Fatalf("latest=%d, batch should have rolled back", latest)
	}
}

func TestScanFromPushesDownNamespaceAndType(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if _, err := s.Publish(ctx, []fact.Fact{
		mk("orders", "Created", ""),
		mk("users", "Created", ""),
		mk("orders", "Shipped", ""),
		mk("orders", "Created", ""),
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	got, err := s.ScanFrom(ctx, 0, []fact.Spec{{Namespace: "orders", Type: "Created"}}, 0)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0].Serial != 1 || got[1].Serial != 4 {
		t.Fatalf("unexpected scan: %+v", got)
	}

	got, err = s.ScanFrom(ctx, 1, []fact.Spec{{Namespace: "orders"}, {Namespace: "users"}}, 2)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0].Serial != 2 || got[1].Serial != 3 {
		t.Fatalf("unexpected page: %+v", got)
	}

	all, err := s.ScanFrom(ctx, 0, nil, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("full scan len=%d err=%v", len(all), err)
	}
}

// Meta constraints are applied in process, so a short page must only be
// returned once the table is exhausted.
func TestScanFromFillsPageAfterInProcessFilter(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	var batch []fact.Fact
	for i := 0; i < 10; i++ {
		f := mk("orders", "A", "")
		if i%3 == 0 {
			f.Meta = map[string]string{"tenant": "x"}
		}
		batch = append(batch, f)
	}
	if _, err := s.Publish(ctx, batch); err != nil {
		t.Fatalf("publish: %v", err)
	}
	spec := []fact.Spec{{Namespace: "orders", Meta: map[string]string{"tenant": "x"}}}
	got, err := s.ScanFrom(ctx, 0, spec, 3)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 3 || got[0].Serial != 1 || got[1].Serial != 4 || got[2].Serial != 7 {
		t.Fatalf("unexpected page: %+v", got)
	}
	got, err = s.ScanFrom(ctx, 7, spec, 3)
	if err != nil || len(got) != 1 || got[0].Serial != 10 {
		t.Fatalf("tail page: %+v err=%v", got, err)
	}
}

func TestLookups(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	f := mk("orders", "A", `{"total":3}`)
	f.Meta = map[string]string{"k": "v"}
	if _, err := s.Publish(ctx, []fact.Fact{mk("users", "", ""), f}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	serial, ok, err := s.SerialOf(ctx, f.ID)
	if err != nil || !ok || serial != 2 {
		t.Fatalf("SerialOf=%d,%v,%v", serial, ok, err)
	}
	if _, ok, _ := s.SerialOf(ctx, uuid.New()); ok {
		t.Fatalf("unknown id resolved")
	}

	got, ok, err := s.FetchByID(ctx, f.ID)
	if err != nil || !ok {
		t.Fatalf("FetchByID: %v %v", ok, err)
	}
	if got.Meta["k"] != "v" || string(got.Payload) != `{"total":3}` || got.Serial != 2 {
		t.Fatalf("unexpected fact: %+v", got)
	}

	ns, err := s.EnumerateNamespaces(ctx)
	if err != nil || len(ns) != 2 || ns[0] != "orders" || ns[1] != "users" {
		t.Fatalf("namespaces=%v err=%v", ns, err)
	}
	types, err := s.EnumerateTypes(ctx, "users")
	if err != nil || len(types) != 0 {
		t.Fatalf("types=%v err=%v", types, err)
	}
}

func TestSubscribeToAppends(t *testing.T) {
	s := openTest(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig, err := s.SubscribeToAppends(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := s.Publish(context.Background(), []fact.Fact{mk("orders", "A", "")}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-sig:
	case <-time.After(2 * time.Second):
		t.Fatalf("no append signal")
	}
	cancel()
	for range sig {
	}
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "facts.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()
	if _, err := s.SubscribeToAppends(context.Background()); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := s.Publish(context.Background(), []fact.Fact{mk("a", "", "")}); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
