// README: Live filtered order views derived from store change subscriptions.
package projection

import (
	"context"
	"sort"
	"sync"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

// View maintains one actor's live, filtered, ordered list of orders. It
// subscribes to the store, recomputes the visible list on every change
// notification and publishes snapshots on Updates. Rapid bursts coalesce
// into a single recomputation; consumers always converge to the latest
// store state and never observe a list older than one already delivered.
type View struct {
	store order.Store
	query order.Query

	updates chan []*order.Order
	sub     order.Subscription
	cancel  context.CancelFunc
	once    sync.Once

	mu  sync.Mutex
	err error
}

// New opens a view for the given query. The initial snapshot is published
// before any change-driven update. Callers must Close the view when its
// screen is torn down.
func New(ctx context.Context, store order.Store, query order.Query) (*View, error) {
	viewCtx, cancel := context.WithCancel(ctx)

	sub, err := store.Subscribe(viewCtx, query)
	if err != nil {
		cancel()
		return nil, err
	}

	v := &View{
		store:   store,
		query:   query,
		updates: make(chan []*order.Order, 1),
		sub:     sub,
		cancel:  cancel,
	}

	initial, err := store.Query(viewCtx, query)
	if err != nil {
		sub.Close()
		cancel()
		return nil, err
	}
	v.publish(initial)

	go v.run(viewCtx)
	return v, nil
}

// ForCustomer shows all of one customer's orders.
func ForCustomer(ctx context.Context, store order.Store, customerID types.ID) (*View, error) {
	return New(ctx, store, order.Query{CustomerID: customerID})
}

// ForRestaurant shows every order directed at one restaurant.
func ForRestaurant(ctx context.Context, store order.Store, restaurantID types.ID) (*View, error) {
	return New(ctx, store, order.Query{RestaurantID: restaurantID})
}

// ForCourierCandidates shows the unclaimed ready-for-pickup pool any courier
// may claim from.
func ForCourierCandidates(ctx context.Context, store order.Store) (*View, error) {
	return New(ctx, store, order.Query{
		Statuses:       []order.Status{order.StatusReadyForPickup},
		UnassignedOnly: true,
	})
}

// ForCourier shows the orders a courier has claimed.
func ForCourier(ctx context.Context, store order.Store, courierID types.ID) (*View, error) {
	return New(ctx, store, order.Query{CourierID: courierID})
}

// Updates is a latest-value channel: if the consumer lags, stale snapshots
// are replaced rather than queued. The channel closes when the view stops;
// check Err afterwards.
func (v *View) Updates() <-chan []*order.Order { return v.updates }

// Err reports the terminal subscription error, if any, once Updates closed.
// The view does not silently resubscribe; recovery is an explicit re-open by
// the caller.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Close tears the view down and stops further store traffic synchronously.
func (v *View) Close() {
	v.once.Do(func() {
		v.sub.Close()
		v.cancel()
	})
}

func (v *View) run(ctx context.Context) {
	defer close(v.updates)

	for range v.sub.Changes() {
		// Coalesce any burst that queued up behind the change we just took.
		for {
			select {
			case _, ok := <-v.sub.Changes():
				if !ok {
					v.finish(v.sub.Err())
					return
				}
				continue
			default:
			}
			break
		}

		list, err := v.store.Query(ctx, v.query)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			v.finish(err)
			return
		}
		v.publish(list)
	}
	v.finish(v.sub.Err())
}

func (v *View) finish(err error) {
	if err == nil {
		return
	}
	v.mu.Lock()
	v.err = err
	v.mu.Unlock()
}

// publish swaps the pending snapshot for the new one. Sorting is stable:
// createdAt descending, id as tie-break, so output is deterministic.
func (v *View) publish(list []*order.Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	for {
		select {
		case v.updates <- list:
			return
		default:
			// Drop the undelivered stale snapshot.
			select {
			case <-v.updates:
			default:
			}
		}
	}
}
