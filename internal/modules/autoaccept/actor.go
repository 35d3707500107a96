// README: Auto-accept policy actor: confirms placed orders after a grace delay.
package autoaccept

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

const DefaultGraceDelay = 10 * time.Second

// Transitioner is the slice of the order service the actor needs. All writes
// still go through the state machine; the actor never touches the store
// directly for mutation.
type Transitioner interface {
	Transition(ctx context.Context, cmd order.TransitionCommand) (*order.Order, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

// Actor watches placed orders for opted-in restaurants and confirms them on
// the restaurant's behalf once the grace delay elapses, unless a human acted
// first. The delayed action re-reads before writing, so it can never
// overwrite a state a human already set.
type Actor struct {
	store    order.Store
	orders   Transitioner
	profiles restaurant.Reader
	dedup    Dedup
	delay    time.Duration

	mu      sync.Mutex
	runners map[types.ID]*runner
	closed  bool

	// wg tracks runner goroutines; in-flight delayed confirms are not
	// tracked because they are allowed to outlive Disable.
	wg sync.WaitGroup
}

type runner struct {
	cancel context.CancelFunc
	sub    order.Subscription
}

func NewActor(store order.Store, orders Transitioner, profiles restaurant.Reader, dedup Dedup, delay time.Duration) *Actor {
	if delay <= 0 {
		delay = DefaultGraceDelay
	}
	if dedup == nil {
		dedup = NewMemoryDedup()
	}
	return &Actor{
		store:    store,
		orders:   orders,
		profiles: profiles,
		dedup:    dedup,
		delay:    delay,
		runners:  make(map[types.ID]*runner),
	}
}

// Enable starts watching a restaurant's placed orders. It is a no-op when the
// profile's opt-in flag is off or a watcher is already running.
func (a *Actor) Enable(ctx context.Context, restaurantID types.ID) error {
	enabled, err := a.profiles.GetAutoAcceptFlag(ctx, restaurantID)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("autoaccept: actor closed")
	}
	if _, ok := a.runners[restaurantID]; ok {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sub, err := a.store.Subscribe(runCtx, order.Query{
		RestaurantID: restaurantID,
		Statuses:     []order.Status{order.StatusPlaced},
	})
	if err != nil {
		cancel()
		return err
	}

	r := &runner{cancel: cancel, sub: sub}
	a.runners[restaurantID] = r
	a.wg.Add(1)
	go a.watch(runCtx, restaurantID, sub)
	return nil
}

// Disable stops scheduling new delayed confirms for the restaurant. Delayed
// actions already in flight run to completion; their read-before-write makes
// that safe.
func (a *Actor) Disable(restaurantID types.ID) {
	a.mu.Lock()
	r, ok := a.runners[restaurantID]
	if ok {
		delete(a.runners, restaurantID)
	}
	a.mu.Unlock()

	if ok {
		r.sub.Close()
		r.cancel()
	}
}

// Close disables every restaurant and waits for the watchers to exit.
func (a *Actor) Close() {
	a.mu.Lock()
	a.closed = true
	runners := a.runners
	a.runners = make(map[types.ID]*runner)
	a.mu.Unlock()

	for _, r := range runners {
		r.sub.Close()
		r.cancel()
	}
	a.wg.Wait()
}

func (a *Actor) watch(ctx context.Context, restaurantID types.ID, sub order.Subscription) {
	defer a.wg.Done()

	// Pick up the backlog that existed before the subscription opened.
	a.sweep(ctx, restaurantID)

	for c := range sub.Changes() {
		switch c.Kind {
		case order.ChangeCreated, order.ChangeUpdated:
			if c.Order != nil && c.Order.Status == order.StatusPlaced {
				a.schedule(ctx, c.Order.ID)
			}
		case order.ChangeReset:
			a.sweep(ctx, restaurantID)
		}
	}
	if err := sub.Err(); err != nil && ctx.Err() == nil {
		log.Printf("autoaccept: subscription for restaurant %s ended: %v", restaurantID, err)
	}
}

func (a *Actor) sweep(ctx context.Context, restaurantID types.ID) {
	placed, err := a.store.Query(ctx, order.Query{
		RestaurantID: restaurantID,
		Statuses:     []order.Status{order.StatusPlaced},
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("autoaccept: querying placed orders for %s: %v", restaurantID, err)
		}
		return
	}
	for _, o := range placed {
		a.schedule(ctx, o.ID)
	}
}

// schedule arms the fire-once delayed confirm for one order. The dedup guard
// makes duplicate notifications harmless.
func (a *Actor) schedule(ctx context.Context, orderID types.ID) {
	ok, err := a.dedup.TryAcquire(ctx, orderID)
	if err != nil {
		log.Printf("autoaccept: dedup check for order %s: %v", orderID, err)
		return
	}
	if !ok {
		return
	}

	time.AfterFunc(a.delay, func() { a.confirm(orderID) })
}

// confirm is the delayed action: re-read, and only if still placed perform
// the confirm transition as the restaurant. Losing a race is expected and is
// logged, never retried, so a confirm can never trample a human cancel.
func (a *Actor) confirm(orderID types.ID) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	o, err := a.orders.Get(ctx, orderID)
	if err != nil {
		log.Printf("autoaccept: re-reading order %s: %v", orderID, err)
		return
	}
	if o.Status != order.StatusPlaced {
		// A human already acted; stand down.
		return
	}

	_, err = a.orders.Transition(ctx, order.TransitionCommand{
		OrderID:         orderID,
		Target:          order.StatusConfirmed,
		Actor:           order.Actor{Role: order.RoleRestaurant, ID: o.RestaurantID, Name: "auto-accept"},
		ExpectedVersion: o.Version,
	})
	switch {
	case err == nil:
		log.Printf("autoaccept: confirmed order %s for restaurant %s", o.Number(), o.RestaurantID)
	case errors.Is(err, order.ErrConflict), errors.Is(err, order.ErrInvalidState):
		log.Printf("autoaccept: order %s moved before auto-confirm, dropping: %v", o.Number(), err)
	default:
		log.Printf("autoaccept: confirming order %s: %v", o.Number(), err)
	}
}
