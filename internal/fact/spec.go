package fact

import (
	"github.com/google/uuid"
)

// Spec is a conjunctive match predicate over a fact header.
//
// Namespace is required. An empty Type matches every type in the namespace,
// a nil AggID matches every aggregate, and every Meta pair must be present
// on the fact with the same value. Filter is an optional CEL expression
// evaluated after the structural checks pass.
type Spec struct {
	Namespace string            `json:"ns"`
	Type      string            `json:"type,omitempty"`
	AggID     uuid.UUID         `json:"aggId,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	Filter    string            `json:"filter,omitempty"`

	filter *celFilter
}

// Validate reports structural problems and compiles the filter.
func (s Spec) Validate() error {
	_, err := s.compile()
	return err
}

func (s Spec) compile() (Spec, error) {
	if s.Namespace == "" {
		return Spec{}, invalid("spec namespace is required")
	}
	for k := range s.Meta {
		if k == "" {
			return Spec{}, invalid("spec %s: empty meta key", s.Namespace)
		}
	}
	out := s
	if s.Meta != nil {
		out.Meta = make(map[string]string, len(s.Meta))
		for k, v := range s.Meta {
			out.Meta[k] = v
		}
	}
	if s.Filter != "" && s.filter == nil {
		f, err := newCELFilter(s.Filter)
		if err != nil {
			return Spec{}, invalid("spec %s: filter: %v", s.Namespace, err)
		}
		out.filter = f
	}
	return out, nil
}

// Matches reports whether f satisfies every constraint of s.
func (s Spec) Matches(f *Fact) bool {
	if f == nil || f.Namespace != s.Namespace {
		return false
	}
	if s.Type != "" && f.Type != s.Type {
		return false
	}
	if s.AggID != uuid.Nil && !containsID(f.AggIDs, s.AggID) {
		return false
	}
	for k, want := range s.Meta {
		got, ok := f.Meta[k]
		if !ok || got != want {
			return false
		}
	}
	if s.Filter == "" {
		return true
	}
	flt := s.filter
	if flt == nil {
		var err error
		if flt, err = newCELFilter(s.Filter); err != nil {
			return false
		}
	}
	return flt.Eval(f)
}

// Matches reports whether f satisfies at least one of specs.
func Matches(f *Fact, specs []Spec) bool {
	for i := range specs {
		if specs[i].Matches(f) {
			return true
		}
	}
	return false
}

// Namespaces returns the distinct namespaces of specs in first-seen order.
func Namespaces(specs []Spec) []string {
	seen := make(map[string]struct{}, len(specs))
	out := make([]string, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.Namespace]; ok {
			continue
		}
		seen[s.Namespace] = struct{}{}
		out = append(out, s.Namespace)
	}
	return out
}

func containsID(ids []uuid.UUID, want uuid.UUID) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
