package fact

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Cursor is the position a subscription starts after. The zero Cursor means
// "from the beginning". A cursor names either a serial or a fact id; id
// cursors are resolved to serials when the subscription starts.
type Cursor struct {
	Serial uint64
	ID     uuid.UUID
}

// IsZero reports whether c points before the first fact.
func (c Cursor) IsZero() bool { return c.Serial == 0 && c.ID == uuid.Nil }

// Request is an immutable subscription request. Build it with Catchup,
// Follow or NewRequest.
type Request struct {
	specs         []Spec
	continuous    bool
	idOnly        bool
	startingAfter Cursor
	maxLatency    time.Duration
}

// Specs returns a copy of the request's specs.
func (r Request) Specs() []Spec {
	out := make([]Spec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s
		if s.Meta != nil {
			out[i].Meta = make(map[string]string, len(s.Meta))
			for k, v := range s.Meta {
				out[i].Meta[k] = v
			}
		}
	}
	return out
}

func (r Request) Continuous() bool     { return r.continuous }
func (r Request) IDOnly() bool         { return r.idOnly }
func (r Request) StartingAfter() Cursor { return r.startingAfter }

// MaxLatency is the requested fallback re-scan interval, zero if unset.
func (r Request) MaxLatency() time.Duration { return r.maxLatency }

// Matches reports whether f is selected by the request.
func (r Request) Matches(f *Fact) bool { return Matches(f, r.specs) }

// Validate reports whether r came out of the builder. The zero Request has
// no specs and is rejected.
func (r Request) Validate() error {
	if len(r.specs) == 0 {
		return invalid("at least one spec is required")
	}
	return nil
}

// SpecBuilder is the first builder phase: it accumulates specs and fixes
// the delivery granularity.
type SpecBuilder struct {
	specs      []Spec
	continuous bool
	fixed      bool
	err        error
}

// Catchup starts a request that completes once the backlog is delivered.
func Catchup(specs ...Spec) *SpecBuilder {
	return &SpecBuilder{specs: append([]Spec(nil), specs...)}
}

// Follow starts a request that keeps delivering new facts after catchup.
func Follow(specs ...Spec) *SpecBuilder {
	return &SpecBuilder{specs: append([]Spec(nil), specs...), continuous: true}
}

// NewRequest starts a non-continuous request; continuity may be changed in
// the second phase with Continuous.
func NewRequest(specs ...Spec) *SpecBuilder { return Catchup(specs...) }

// Or adds an alternative spec. Calling Or after AsFacts or AsIDs poisons
// the builder: every later finalisation fails with ErrInvalidRequest.
func (b *SpecBuilder) Or(s Spec) *SpecBuilder {
	if b.fixed {
		if b.err == nil {
			b.err = invalid("spec added after the request was fixed")
		}
		return b
	}
	b.specs = append(b.specs, s)
	return b
}

// Err returns the first misuse recorded on the builder.
func (b *SpecBuilder) Err() error { return b.err }

// AsFacts delivers full facts.
func (b *SpecBuilder) AsFacts() *CursorBuilder { return b.fix(false) }

// AsIDs delivers fact ids only.
func (b *SpecBuilder) AsIDs() *CursorBuilder { return b.fix(true) }

func (b *SpecBuilder) fix(idOnly bool) *CursorBuilder {
	cb := &CursorBuilder{
		specs:      append([]Spec(nil), b.specs...),
		continuous: b.continuous,
		idOnly:     idOnly,
		parent:     b,
	}
	if b.fixed && b.err == nil {
		b.err = invalid("delivery mode fixed twice")
	}
	b.fixed = true
	return cb
}

// CursorBuilder is the second builder phase: it fixes the cursor and the
// continuity mode and produces the Request. It finalises at most once.
type CursorBuilder struct {
	specs      []Spec
	continuous bool
	idOnly     bool
	maxLatency time.Duration
	parent     *SpecBuilder
	built      bool
}

// Continuous overrides the mode chosen by Catchup/Follow.
func (c *CursorBuilder) Continuous(v bool) *CursorBuilder {
	c.continuous = v
	return c
}

// MaxLatency sets the fallback re-scan interval for the tail phase.
// Zero leaves the choice to the engine.
func (c *CursorBuilder) MaxLatency(d time.Duration) *CursorBuilder {
	if d > 0 {
		c.maxLatency = d
	}
	return c
}

// SinceInception finalises a request starting before the first fact.
func (c *CursorBuilder) SinceInception() (Request, error) { return c.build(Cursor{}) }

// Since finalises a request starting after the fact with the given id.
func (c *CursorBuilder) Since(id uuid.UUID) (Request, error) {
	if id == uuid.Nil {
		return Request{}, invalid("cursor id must not be nil")
	}
	return c.build(Cursor{ID: id})
}

// SinceSerial finalises a request starting after serial n.
func (c *CursorBuilder) SinceSerial(n uint64) (Request, error) { return c.build(Cursor{Serial: n}) }

func (c *CursorBuilder) build(cur Cursor) (Request, error) {
	if c.built {
		return Request{}, invalid("request already built")
	}
	c.built = true
	if c.parent != nil && c.parent.err != nil {
		return Request{}, c.parent.err
	}
	if len(c.specs) == 0 {
		return Request{}, invalid("at least one spec is required")
	}
	specs := make([]Spec, 0, len(c.specs))
	for _, s := range c.specs {
		compiled, err := s.compile()
		if err != nil {
			return Request{}, err
		}
		specs = append(specs, compiled)
	}
	return Request{
		specs:         specs,
		continuous:    c.continuous,
		idOnly:        c.idOnly,
		startingAfter: cur,
		maxLatency:    c.maxLatency,
	}, nil
}

// wireRequest is the JSON shape of a Request used by the transports.
type wireRequest struct {
	Specs        []Spec    `json:"specs"`
	Continuous   bool      `json:"continuous"`
	IDOnly       bool      `json:"idOnly,omitempty"`
	Since        uuid.UUID `json:"since,omitempty"`
	SinceSerial  uint64    `json:"sinceSerial,omitempty"`
	MaxLatencyMs int64     `json:"maxLatencyInMillis,omitempty"`
}

// MarshalJSON encodes the request in its transport form.
func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRequest{
		Specs:        r.specs,
		Continuous:   r.continuous,
		IDOnly:       r.idOnly,
		Since:        r.startingAfter.ID,
		SinceSerial:  r.startingAfter.Serial,
		MaxLatencyMs: r.maxLatency.Milliseconds(),
	})
}

// ParseRequest decodes the transport form and runs it through the builder,
// so decoded requests obey the same rules as built ones.
func ParseRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return Request{}, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	if w.Since != uuid.Nil && w.SinceSerial != 0 {
		return Request{}, invalid("since and sinceSerial are mutually exclusive")
	}
	sb := NewRequest(w.Specs...)
	var cb *CursorBuilder
	if w.IDOnly {
		cb = sb.AsIDs()
	} else {
		cb = sb.AsFacts()
	}
	cb.Continuous(w.Continuous).MaxLatency(time.Duration(w.MaxLatencyMs) * time.Millisecond)
	switch {
	case w.Since != uuid.Nil:
		return cb.Since(w.Since)
	case w.SinceSerial != 0:
		return cb.SinceSerial(w.SinceSerial)
	default:
		return cb.SinceInception()
	}
}
