package factcastv1

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/otbe/factcast/internal/fact"
)

// Notification types on the wire.
const (
	TypeFact     = "fact"
	TypeID       = "id"
	TypeCatchup  = "catchup"
	TypeComplete = "complete"
	TypeError    = "error"
)

// ErrMalformed is returned when a Struct does not have the expected shape.
var ErrMalformed = errors.New("malformed message")

// Notification is the decoded form of a subscription message.
type Notification struct {
	Type    string
	Serial  uint64
	ID      uuid.UUID
	Fact    *fact.Fact
	Message string
}

// EncodeFact renders f as a Struct. The payload is base64 encoded.
func EncodeFact(f fact.Fact) (*structpb.Struct, error) {
	m := map[string]any{
		"id": f.ID.String(),
		"ns": f.Namespace,
	}
	if f.Type != "" {
		m["type"] = f.Type
	}
	if f.Serial > 0 {
		m["serial"] = float64(f.Serial)
	}
	if len(f.AggIDs) > 0 {
		ids := make([]any, len(f.AggIDs))
		for i, a := range f.AggIDs {
			ids[i] = a.String()
		}
		m["aggIds"] = ids
	}
	if len(f.Meta) > 0 {
		meta := make(map[string]any, len(f.Meta))
		for k, v := range f.Meta {
			meta[k] = v
		}
		m["meta"] = meta
	}
	if len(f.Payload) > 0 {
		m["payload"] = base64.StdEncoding.EncodeToString(f.Payload)
	}
	return structpb.NewStruct(m)
}

// DecodeFact reverses EncodeFact. A missing id decodes as uuid.Nil.
func DecodeFact(s *structpb.Struct) (fact.Fact, error) {
	var f fact.Fact
	fields := s.GetFields()
	if v, ok := fields["id"]; ok && v.GetStringValue() != "" {
		id, err := uuid.Parse(v.GetStringValue())
		if err != nil {
			return fact.Fact{}, errors.Wrapf(ErrMalformed, "fact id: %v", err)
		}
		f.ID = id
	}
	f.Namespace = fields["ns"].GetStringValue()
	f.Type = fields["type"].GetStringValue()
	if v, ok := fields["serial"]; ok {
		f.Serial = uint64(v.GetNumberValue())
	}
	for _, v := range fields["aggIds"].GetListValue().GetValues() {
		a, err := uuid.Parse(v.GetStringValue())
		if err != nil {
			return fact.Fact{}, errors.Wrapf(ErrMalformed, "aggregate id: %v", err)
		}
		f.AggIDs = append(f.AggIDs, a)
	}
	if meta := fields["meta"].GetStructValue(); meta != nil {
		f.Meta = make(map[string]string, len(meta.GetFields()))
		for k, v := range meta.GetFields() {
			sv, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return fact.Fact{}, errors.Wrapf(ErrMalformed, "meta %q is not a string", k)
			}
			f.Meta[k] = sv.StringValue
		}
	}
	if p := fields["payload"].GetStringValue(); p != "" {
		b, err := base64.StdEncoding.DecodeString(p)
		if err != nil {
			return fact.Fact{}, errors.Wrapf(ErrMalformed, "payload: %v", err)
		}
		f.Payload = b
	}
	return f, nil
}

// EncodeFacts renders a batch as a ListValue of fact structs.
func EncodeFacts(facts []fact.Fact) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(facts))}
	for i := range facts {
		s, err := EncodeFact(facts[i])
		if err != nil {
			return nil, err
		}
		out.Values = append(out.Values, structpb.NewStructValue(s))
	}
	return out, nil
}

// DecodeFacts reverses EncodeFacts.
func DecodeFacts(l *structpb.ListValue) ([]fact.Fact, error) {
	out := make([]fact.Fact, 0, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, errors.Wrapf(ErrMalformed, "element %d is not a struct", i)
		}
		f, err := DecodeFact(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// EncodeNotification renders n. Fact notifications embed the fact under
// "fact"; id notifications carry only serial and id.
func EncodeNotification(n Notification) (*structpb.Struct, error) {
	m := map[string]*structpb.Value{"type": structpb.NewStringValue(n.Type)}
	switch n.Type {
	case TypeFact:
		if n.Fact == nil {
			return nil, errors.Wrap(ErrMalformed, "fact notification without fact")
		}
		fs, err := EncodeFact(*n.Fact)
		if err != nil {
			return nil, err
		}
		m["fact"] = structpb.NewStructValue(fs)
		fallthrough
	case TypeID:
		m["serial"] = structpb.NewNumberValue(float64(n.Serial))
		m["id"] = structpb.NewStringValue(n.ID.String())
	case TypeError:
		m["message"] = structpb.NewStringValue(n.Message)
	case TypeCatchup, TypeComplete:
	default:
		return nil, errors.Wrapf(ErrMalformed, "unknown notification type %q", n.Type)
	}
	return &structpb.Struct{Fields: m}, nil
}

// DecodeNotification reverses EncodeNotification.
func DecodeNotification(s *structpb.Struct) (Notification, error) {
	fields := s.GetFields()
	n := Notification{Type: fields["type"].GetStringValue()}
	switch n.Type {
	case TypeFact, TypeID:
		n.Serial = uint64(fields["serial"].GetNumberValue())
		id, err := uuid.Parse(fields["id"].GetStringValue())
		if err != nil {
			return Notification{}, errors.Wrapf(ErrMalformed, "notification id: %v", err)
		}
		n.ID = id
		if n.Type == TypeFact {
			fs := fields["fact"].GetStructValue()
			if fs == nil {
				return Notification{}, errors.Wrap(ErrMalformed, "fact notification without fact")
			}
			f, err := DecodeFact(fs)
			if err != nil {
				return Notification{}, err
			}
			n.Fact = &f
		}
	case TypeError:
		n.Message = fields["message"].GetStringValue()
	case TypeCatchup, TypeComplete:
	default:
		return Notification{}, errors.Wrapf(ErrMalformed, "unknown notification type %q", n.Type)
	}
	return n, nil
}

// EncodeStrings renders a sorted string set as a ListValue.
func EncodeStrings(ss []string) *structpb.ListValue {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	out := &structpb.ListValue{Values: make([]*structpb.Value, len(sorted))}
	for i, s := range sorted {
		out.Values[i] = structpb.NewStringValue(s)
	}
	return out
}

// DecodeStrings reverses EncodeStrings.
func DecodeStrings(l *structpb.ListValue) []string {
	out := make([]string, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// ServerConfig is the decoded ServerConfig response.
type ServerConfig struct {
	Major, Minor, Patch int
	Properties          map[string]string
}

func (c ServerConfig) String() string {
	return fmt.Sprintf("%d.%d.%d", c.Major, c.Minor, c.Patch)
}

// EncodeServerConfig renders c.
func EncodeServerConfig(c ServerConfig) (*structpb.Struct, error) {
	props := make(map[string]any, len(c.Properties))
	for k, v := range c.Properties {
		props[k] = v
	}
	return structpb.NewStruct(map[string]any{
		"version": map[string]any{
			"major": float64(c.Major),
			"minor": float64(c.Minor),
			"patch": float64(c.Patch),
		},
		"properties": props,
	})
}

// DecodeServerConfig reverses EncodeServerConfig.
func DecodeServerConfig(s *structpb.Struct) ServerConfig {
	v := s.GetFields()["version"].GetStructValue().GetFields()
	c := ServerConfig{
		Major:      int(v["major"].GetNumberValue()),
		Minor:      int(v["minor"].GetNumberValue()),
		Patch:      int(v["patch"].GetNumberValue()),
		Properties: map[string]string{},
	}
	for k, p := range s.GetFields()["properties"].GetStructValue().GetFields() {
		c.Properties[k] = p.GetStringValue()
	}
	return c
}
