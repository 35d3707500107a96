// README: Kafka sender: publishes order events for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
)

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
)

// Envelope is the versioned wrapper around every published event. Partition
// key is the order id so all events for one order keep their relative order.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}

type orderCreatedPayload struct {
	OrderID      string `json:"order_id"`
	OrderNumber  string `json:"order_number"`
	CustomerID   string `json:"customer_id"`
	RestaurantID string `json:"restaurant_id"`
	TotalMinor   int64  `json:"total_minor"`
	Currency     string `json:"currency"`
}

type statusChangedPayload struct {
	OrderID    string `json:"order_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	CourierID  string `json:"courier_id,omitempty"`
}

// Kafka publishes envelopes to the order event topics. Writes are
// best-effort with a short deadline; failures are logged and dropped.
type Kafka struct {
	writer   *kafkago.Writer
	producer string
}

func NewKafka(brokers []string, producer string) *Kafka {
	return &Kafka{
		writer: &kafkago.Writer{
			Addr:     kafkago.TCP(brokers...),
			Balancer: &kafkago.Hash{},
		},
		producer: producer,
	}
}

func (k *Kafka) Close() error { return k.writer.Close() }

func (k *Kafka) OrderCreated(ctx context.Context, o *order.Order) {
	k.publish(ctx, TopicOrderCreated, o, orderCreatedPayload{
		OrderID:      string(o.ID),
		OrderNumber:  o.Number(),
		CustomerID:   string(o.CustomerID),
		RestaurantID: string(o.RestaurantID),
		TotalMinor:   o.Pricing.Total.Amount,
		Currency:     o.Pricing.Total.Currency,
	})
}

func (k *Kafka) OrderTransitioned(ctx context.Context, o *order.Order, from order.Status) {
	k.publish(ctx, TopicOrderStatusChanged, o, statusChangedPayload{
		OrderID:    string(o.ID),
		FromStatus: string(from),
		ToStatus:   string(o.Status),
		CourierID:  string(o.CourierID),
	})
}

func (k *Kafka) publish(ctx context.Context, topic string, o *order.Order, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: kafka marshal for order %s: %v", o.ID, err)
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     topic,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      k.producer,
		CorrelationID: string(o.ID),
		Payload:       raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		log.Printf("notify: kafka marshal envelope for order %s: %v", o.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err = k.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(o.ID),
		Value: value,
	})
	if err != nil {
		log.Printf("notify: kafka publish %s for order %s: %v", topic, o.ID, err)
	}
}
