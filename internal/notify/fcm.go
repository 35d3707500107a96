// README: FCM sender: pushes order updates to the role-specific mobile apps.
package notify

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/v4/messaging"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
)

// FCM pushes order events to per-actor topics. The customer, restaurant and
// courier apps each subscribe to their own topic and re-render from the
// payload; delivery mechanics beyond the publish are Firebase's problem.
type FCM struct {
	client *messaging.Client
}

func NewFCM(client *messaging.Client) *FCM {
	return &FCM{client: client}
}

func (f *FCM) OrderCreated(ctx context.Context, o *order.Order) {
	f.send(ctx, fmt.Sprintf("restaurant_%s", o.RestaurantID), &messaging.Notification{
		Title: "New order " + o.Number(),
		Body:  fmt.Sprintf("%s placed an order for %s", o.CustomerName, o.Pricing.Total),
	}, o)
}

func (f *FCM) OrderTransitioned(ctx context.Context, o *order.Order, from order.Status) {
	topics := []string{fmt.Sprintf("customer_%s", o.CustomerID)}
	switch o.Status {
	case order.StatusReadyForPickup:
		// The unclaimed pool is broadcast to every on-duty courier.
		topics = append(topics, "couriers_available")
	case order.StatusCancelled:
		topics = append(topics, fmt.Sprintf("restaurant_%s", o.RestaurantID))
	}
	if o.CourierID != "" {
		topics = append(topics, fmt.Sprintf("courier_%s", o.CourierID))
	}

	n := &messaging.Notification{
		Title: "Order " + o.Number(),
		Body:  statusMessage(o),
	}
	for _, t := range topics {
		f.sendTopic(ctx, t, n, o)
	}
}

func (f *FCM) send(ctx context.Context, topic string, n *messaging.Notification, o *order.Order) {
	f.sendTopic(ctx, topic, n, o)
}

func (f *FCM) sendTopic(ctx context.Context, topic string, n *messaging.Notification, o *order.Order) {
	_, err := f.client.Send(ctx, &messaging.Message{
		Topic:        topic,
		Notification: n,
		Data: map[string]string{
			"orderId": string(o.ID),
			"status":  string(o.Status),
		},
	})
	if err != nil {
		log.Printf("notify: fcm send to %s for order %s: %v", topic, o.ID, err)
	}
}

func statusMessage(o *order.Order) string {
	switch o.Status {
	case order.StatusConfirmed:
		return o.RestaurantName + " confirmed your order"
	case order.StatusPreparing:
		return o.RestaurantName + " is preparing your order"
	case order.StatusReadyForPickup:
		return "Your order is ready and waiting for a courier"
	case order.StatusPickedUp:
		return o.CourierName + " picked up your order"
	case order.StatusOnTheWay:
		return "Your order is on the way"
	case order.StatusDelivered:
		return "Your order was delivered. Enjoy!"
	case order.StatusCancelled:
		return "Your order was cancelled: " + o.CancelReason
	default:
		return "Order status: " + string(o.Status)
	}
}
