package entitlement

import (
	"context"

	id "hatchseed/pkg/domain"
)

// Store persists allocations keyed by owner. Postgres implementations join
// the caller's transaction when ctx carries one.
type Store interface {
	Get(ctx context.Context, owner id.OwnerID) (*Allocation, error)
	Upsert(ctx context.Context, alloc *Allocation) error
}
