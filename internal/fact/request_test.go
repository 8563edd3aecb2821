package fact

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestBuildCatchupRequest(t *testing.T) {
	req, err := Catchup(Spec{Namespace: "orders"}).Or(Spec{Namespace: "users"}).AsFacts().SinceInception()
	require.NoError(t, err)
	require.False(t, req.Continuous())
	require.False(t, req.IDOnly())
	require.True(t, req.StartingAfter().IsZero())
	require.Zero(t, req.MaxLatency())
	require.Len(t, req.Specs(), 2)
}

func TestBuildFollowIDsSince(t *testing.T) {
	id := uuid.New()
	req, err := Follow(Spec{Namespace: "orders"}).AsIDs().MaxLatency(time.Second).Since(id)
	require.NoError(t, err)
	require.True(t, req.Continuous())
	require.True(t, req.IDOnly())
	require.Equal(t, id, req.StartingAfter().ID)
	require.Equal(t, time.Second, req.MaxLatency())
}

func TestSecondPhaseFixesContinuity(t *testing.T) {
	req, err := NewRequest(Spec{Namespace: "orders"}).AsFacts().Continuous(true).SinceSerial(7)
	require.NoError(t, err)
	require.True(t, req.Continuous())
	require.Equal(t, uint64(7), req.StartingAfter().Serial)
}

func TestZeroSpecsIsInvalid(t *testing.T) {
	_, err := Catchup().AsFacts().SinceInception()
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.ErrorIs(t, Request{}.Validate(), ErrInvalidRequest)
}

func TestOrAfterFixIsInvalid(t *testing.T) {
	b := Catchup(Spec{Namespace: "orders"})
	cb := b.AsFacts()
	b.Or(Spec{Namespace: "users"})
	require.ErrorIs(t, b.Err(), ErrInvalidRequest)

	_, err := cb.SinceInception()
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFinalizeTwiceIsInvalid(t *testing.T) {
	cb := Catchup(Spec{Namespace: "orders"}).AsFacts()
	_, err := cb.SinceInception()
	require.NoError(t, err)
	_, err = cb.SinceSerial(3)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBuiltRequestIsFrozen(t *testing.T) {
	specs := []Spec{{Namespace: "orders", Meta: map[string]string{"k": "v"}}}
	req, err := Catchup(specs...).AsFacts().SinceInception()
	require.NoError(t, err)

	specs[0].Namespace = "mutated"
	specs[0].Meta["k"] = "mutated"
	got := req.Specs()
	got[0].Namespace = "also-mutated"

	again := req.Specs()
	require.Equal(t, "orders", again[0].Namespace)
	require.Equal(t, "v", again[0].Meta["k"])
}

func TestNilIDCursorIsInvalid(t *testing.T) {
	_, err := Catchup(Spec{Namespace: "orders"}).AsFacts().Since(uuid.Nil)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestBadFilterFailsAtBuild(t *testing.T) {
	_, err := Catchup(Spec{Namespace: "orders", Filter: "json.("}).AsFacts().SinceInception()
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRequestJSON(t *testing.T) {
	req, err := Follow(Spec{Namespace: "orders", Type: "OrderPlaced", Filter: "size > 0"}).
		AsIDs().MaxLatency(250 * time.Millisecond).SinceSerial(42)
	require.NoError(t, err)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	back, err := ParseRequest(b)
	require.NoError(t, err)

	require.Equal(t, req.Continuous(), back.Continuous())
	require.Equal(t, req.IDOnly(), back.IDOnly())
	require.Equal(t, req.StartingAfter(), back.StartingAfter())
	require.Equal(t, req.MaxLatency(), back.MaxLatency())
	require.Equal(t, "OrderPlaced", back.Specs()[0].Type)
	require.True(t, back.Matches(&Fact{Header: Header{Namespace: "orders", Type: "OrderPlaced"}, Payload: []byte("x")}))
}

func TestParseRequestRejects(t *testing.T) {
	for _, in := range []string{
		`{`,
		`{"specs":[]}`,
		`{"specs":[{"ns":""}]}`,
		`{"specs":[{"ns":"a"}],"since":"` + uuid.New().String() + `","sinceSerial":3}`,
	} {
		_, err := ParseRequest([]byte(in))
		require.ErrorIs(t, err, ErrInvalidRequest, in)
	}
}
