package fact

import (
	"github.com/google/uuid"
)

// Header is the routing part of a fact. It is what specs match against.
type Header struct {
	ID        uuid.UUID         `json:"id"`
	Namespace string            `json:"ns"`
	Type      string            `json:"type,omitempty"`
	AggIDs    []uuid.UUID       `json:"aggIds,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Fact is one entry of the log. Serial is assigned by the store on append
// and is zero before that.
type Fact struct {
	Header
	Serial  uint64 `json:"serial,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

// Validate checks the invariants a store relies on before appending.
func (h Header) Validate() error {
	if h.ID == uuid.Nil {
		return invalid("fact id is required")
	}
	if h.Namespace == "" {
		return invalid("fact %s: namespace is required", h.ID)
	}
	for k := range h.Meta {
		if k == "" {
			return invalid("fact %s: empty meta key", h.ID)
		}
	}
	return nil
}

// Clone returns a deep copy so that callers cannot mutate stored facts.
func (f Fact) Clone() Fact {
	out := f
	if f.Meta != nil {
		out.Meta = make(map[string]string, len(f.Meta))
		for k, v := range f.Meta {
			out.Meta[k] = v
		}
	}
	if f.AggIDs != nil {
		out.AggIDs = append([]uuid.UUID(nil), f.AggIDs...)
	}
	if f.Payload != nil {
		out.Payload = append([]byte(nil), f.Payload...)
	}
	return out
}
