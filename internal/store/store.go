// Package store defines the full fact store contract shared by the storage
// backends: the read port consumed by the subscription engine plus the
// write and lookup operations used by the facts service.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/otbe/factcast/internal/fact"
	"github.com/otbe/factcast/internal/subscription"
)

var (
	// ErrDuplicateID is returned when a published fact reuses an id.
	ErrDuplicateID = errors.New("duplicate fact id")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Store is implemented by every backend.
type Store interface {
	subscription.Store
	subscription.SerialResolver

	// Publish appends facts atomically, assigning consecutive serials in
	// slice order, and returns them with serials set.
	Publish(ctx context.Context, facts []fact.Fact) ([]fact.Fact, error)
	FetchByID(ctx context.Context, id uuid.UUID) (fact.Fact, bool, error)
	EnumerateNamespaces(ctx context.Context) ([]string, error)
	EnumerateTypes(ctx context.Context, namespace string) ([]string, error)
	Close() error
}

// ValidateBatch checks headers and in-batch id uniqueness.
func ValidateBatch(facts []fact.Fact) error {
	seen := make(map[uuid.UUID]struct{}, len(facts))
	for i := range facts {
		if err := facts[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[facts[i].ID]; dup {
			return errors.Wrapf(ErrDuplicateID, "%s", facts[i].ID)
		}
		seen[facts[i].ID] = struct{}{}
	}
	return nil
}
