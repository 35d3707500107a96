// README: Fire-and-forget notification boundary; failures never block orders.
package notify

import (
	"context"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
)

// Sender pushes order events to interested parties. Implementations must
// swallow and log their own failures: a notification outage must never roll
// back or block a transition.
type Sender interface {
	OrderCreated(ctx context.Context, o *order.Order)
	OrderTransitioned(ctx context.Context, o *order.Order, from order.Status)
}

// Nop discards everything; used when no delivery channel is configured.
type Nop struct{}

func (Nop) OrderCreated(context.Context, *order.Order) {}

func (Nop) OrderTransitioned(context.Context, *order.Order, order.Status) {}

// Multi fans one event out to several senders.
type Multi []Sender

func (m Multi) OrderCreated(ctx context.Context, o *order.Order) {
	for _, s := range m {
		s.OrderCreated(ctx, o)
	}
}

func (m Multi) OrderTransitioned(ctx context.Context, o *order.Order, from order.Status) {
	for _, s := range m {
		s.OrderTransitioned(ctx, o, from)
	}
}
