// README: Store adapter contract over the backing document store.
package order

import (
	"context"

	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Query is the predicate a store can filter orders by. Zero values mean
// "don't care". It deliberately covers only the shapes the three role views
// and the auto-accept actor need.
type Query struct {
	CustomerID   types.ID
	RestaurantID types.ID
	CourierID    types.ID
	Statuses     []Status
	// UnassignedOnly restricts to orders with no courier bound yet
	// (the courier candidate pool).
	UnassignedOnly bool
}

// Matches evaluates the predicate against a single order. Store
// implementations that filter server-side must agree with this definition.
func (q Query) Matches(o *Order) bool {
	if q.CustomerID != "" && o.CustomerID != q.CustomerID {
		return false
	}
	if q.RestaurantID != "" && o.RestaurantID != q.RestaurantID {
		return false
	}
	if q.CourierID != "" && o.CourierID != q.CourierID {
		return false
	}
	if q.UnassignedOnly && o.CourierID != "" {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ChangeKind classifies a change notification.
type ChangeKind int

const (
	ChangeCreated ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
	// ChangeReset signals the subscriber fell behind and must requery to
	// converge; individual changes were coalesced away.
	ChangeReset
)

// Change is one notification on a subscription stream. Order is nil for
// ChangeReset.
type Change struct {
	Kind  ChangeKind
	Order *Order
}

// Subscription is a live change feed for one query. Changes is closed after
// Close or on a terminal stream error; Err reports that error afterwards.
type Subscription interface {
	Changes() <-chan Change
	Err() error
	// Close stops delivery and releases resources. No further store traffic
	// for this subscription once it returns.
	Close()
}

// Store is the thin adapter over the external document store. Implementations
// must provide per-document optimistic updates and change subscriptions;
// everything else in the subsystem is built on these five primitives.
type Store interface {
	// Create persists a new order, assigns its ID and sets Version to 1.
	Create(ctx context.Context, o *Order) (types.ID, error)

	// Get returns the order or ErrNotFound.
	Get(ctx context.Context, id types.ID) (*Order, error)

	// ConditionalUpdate writes o only if the stored Version still equals
	// expectedVersion, incrementing it on success. A lost race returns
	// ErrConflict and the caller must re-read before deciding to retry.
	ConditionalUpdate(ctx context.Context, o *Order, expectedVersion int64) (*Order, error)

	// Query returns all orders matching q, sorted CreatedAt descending.
	Query(ctx context.Context, q Query) ([]*Order, error)

	// Subscribe opens an independent, cancellable change feed for q.
	// A slow consumer must never stall delivery to other subscribers.
	Subscribe(ctx context.Context, q Query) (Subscription, error)
}
