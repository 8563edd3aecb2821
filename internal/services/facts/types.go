package factsvc

import (
	"context"

	"github.com/google/uuid"

	"github.com/otbe/factcast/internal/fact"
)

// Kind tags a Notification. The string values are the wire names.
type Kind string

const (
	KindFact     Kind = "fact"
	KindID       Kind = "id"
	KindCatchup  Kind = "catchup"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Notification is one message of a subscription as seen by transports.
type Notification struct {
	Kind   Kind
	Serial uint64
	ID     uuid.UUID
	Fact   *fact.Fact
	Err    error
}

// SubscribeSink is implemented by transports to receive notifications.
type SubscribeSink interface {
	Send(Notification) error
	Context() context.Context
	Flush() error
}

// ProtocolVersion is reported by ServerConfig. Clients refuse servers with
// a different major version.
type ProtocolVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// CurrentProtocol is the protocol spoken by this server.
var CurrentProtocol = ProtocolVersion{Major: 1, Minor: 1, Patch: 0}

// ServerConfig describes the server to clients.
type ServerConfig struct {
	Version    ProtocolVersion   `json:"version"`
	Properties map[string]string `json:"properties"`
}
