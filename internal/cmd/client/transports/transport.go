package transports

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	factcastv1 "github.com/otbe/factcast/api/factcast/v1"
	"github.com/otbe/factcast/internal/fact"
)

// ErrStop ends a Subscribe from inside the callback without an error.
var ErrStop = errors.New("stop subscription")

// ErrIncompatible is returned when the server speaks another major
// protocol version.
var ErrIncompatible = errors.New("incompatible server protocol")

// FactsTransport abstracts the transport used by the CLI.
type FactsTransport interface {
	Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error)
	// Subscribe calls onNotification for every message until the server
	// completes the stream, ctx ends or the callback returns ErrStop.
	Subscribe(ctx context.Context, req fact.Request, onNotification func(factcastv1.Notification) error) error
	SerialOf(ctx context.Context, id uuid.UUID) (serial uint64, found bool, err error)
	LatestSerial(ctx context.Context) (uint64, error)
	FetchByID(ctx context.Context, id uuid.UUID) (f fact.Fact, found bool, err error)
	EnumerateNamespaces(ctx context.Context) ([]string, error)
	EnumerateTypes(ctx context.Context, ns string) ([]string, error)
	ServerConfig(ctx context.Context) (factcastv1.ServerConfig, error)
}

// CheckProtocol fails with ErrIncompatible unless the server reports major.
func CheckProtocol(ctx context.Context, t FactsTransport, major int) error {
	cfg, err := t.ServerConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Major != major {
		return errors.Wrapf(ErrIncompatible, "server %s, client %d.x", cfg, major)
	}
	return nil
}
