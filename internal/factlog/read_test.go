package factlog

import (
	"context"
	"testing"

	"github.com/otbe/factcast/internal/fact"
)

func serials(fs []fact.Fact) []uint64 {
	out := make([]uint64, len(fs))
	for i := range fs {
		out[i] = fs[i].Serial
	}
	return out
}

func equal(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func seed(t *testing.T, l *Log) {
	t.Helper()
	batch := []fact.Fact{
		mk("orders", "Placed", `{"total":5}`),   // 1
		mk("users", "Created", ``),              // 2
		mk("orders", "Cancelled", ``),           // 3
		mk("order", "Placed", ``),               // 4
		mk("users", "Deleted", ``),              // 5
		mk("orders", "Placed", `{"total":50}`),  // 6
	}
	batch[5].Meta = map[string]string{"region": "eu"}
	if _, err := l.Publish(context.Background(), batch); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestScanFromNamespaceMerge(t *testing.T) {
	l := newTestLog(t)
	seed(t, l)
	ctx := context.Background()

	cases := []struct {
		name  string
		after uint64
		specs []fact.Spec
		limit int
		want  []uint64
	}{
		{"one namespace", 0, []fact.Spec{{Namespace: "orders"}}, 0, []uint64{1, 3, 6}},
		{"prefix namespace is distinct", 0, []fact.Spec{{Namespace: "order"}}, 0, []uint64{4}},
		{"two namespaces merged", 0, []fact.Spec{{Namespace: "users"}, {Namespace: "orders"}}, 0, []uint64{1, 2, 3, 5, 6}},
		{"after cursor", 3, []fact.Spec{{Namespace: "users"}, {Namespace: "orders"}}, 0, []uint64{5, 6}},
		{"limit", 0, []fact.Spec{{Namespace: "users"}, {Namespace: "orders"}}, 2, []uint64{1, 2}},
		{"type filter keeps scanning", 0, []fact.Spec{{Namespace: "orders", Type: "Placed"}}, 2, []uint64{1, 6}},
		{"meta", 0, []fact.Spec{{Namespace: "orders", Meta: map[string]string{"region": "eu"}}}, 0, []uint64{6}},
		{"cel filter", 0, []fact.Spec{{Namespace: "orders", Filter: "json.total > 10.0"}}, 0, []uint64{6}},
		{"no specs scans all", 4, nil, 0, []uint64{5, 6}},
		{"unknown namespace", 0, []fact.Spec{{Namespace: "nope"}}, 0, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := l.ScanFrom(ctx, tc.after, tc.specs, tc.limit)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if !equal(serials(got), tc.want) {
				t.Fatalf("got %v want %v", serials(got), tc.want)
			}
		})
	}
}

func TestScanReturnsDecodedFacts(t *testing.T) {
	l := newTestLog(t)
	seed(t, l)
	got, err := l.ScanFrom(context.Background(), 5, []fact.Spec{{Namespace: "orders"}}, 1)
	if err != nil || len(got) != 1 {
		t.Fatalf("scan: %v %v", got, err)
	}
	f := got[0]
	if f.Serial != 6 || f.Type != "Placed" || f.Meta["region"] != "eu" || string(f.Payload) != `{"total":50}` {
		t.Fatalf("unexpected fact %+v", f)
	}
}

func TestScanHonoursContext(t *testing.T) {
	l := newTestLog(t)
	seed(t, l)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.ScanFrom(ctx, 0, []fact.Spec{{Namespace: "orders"}}, 0); err == nil {
		t.Fatalf("expected context error")
	}
}
