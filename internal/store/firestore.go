// README: Firestore-backed order store: CRUD, transactional CAS, snapshot feeds.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

// DefaultOrdersCollection matches the collection the mobile clients read.
const DefaultOrdersCollection = "orders"

// Firestore implements order.Store on top of Cloud Firestore. Conditional
// updates run in a transaction keyed on the version field; subscriptions map
// onto query snapshot listeners.
type Firestore struct {
	client *firestore.Client
	orders *firestore.CollectionRef
}

func NewFirestore(client *firestore.Client, collection string) *Firestore {
	if collection == "" {
		collection = DefaultOrdersCollection
	}
	return &Firestore{client: client, orders: client.Collection(collection)}
}

// orderDoc is the stored document shape. Field names are the canonical
// contract shared with the mobile clients; do not rename.
type orderDoc struct {
	CustomerID    string `firestore:"customerId"`
	CustomerName  string `firestore:"customerName"`
	CustomerEmail string `firestore:"customerEmail"`

	RestaurantID   string `firestore:"restaurantId"`
	RestaurantName string `firestore:"restaurantName"`

	CourierID    string `firestore:"courierId"`
	CourierName  string `firestore:"courierName,omitempty"`
	CourierPhone string `firestore:"courierPhone,omitempty"`

	Items                []order.LineItem `firestore:"items"`
	DeliveryAddress      order.Address    `firestore:"deliveryAddress"`
	DeliveryInstructions string           `firestore:"deliveryInstructions,omitempty"`

	Pricing       order.Pricing `firestore:"pricing"`
	Status        string        `firestore:"status"`
	PaymentStatus string        `firestore:"paymentStatus"`
	Rating        float64       `firestore:"rating"`
	Version       int64         `firestore:"version"`

	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	ConfirmedAt *time.Time `firestore:"confirmedAt,omitempty"`
	ReadyAt     *time.Time `firestore:"readyAt,omitempty"`
	PickedUpAt  *time.Time `firestore:"pickedUpAt,omitempty"`
	DeliveredAt *time.Time `firestore:"deliveredAt,omitempty"`
	CancelledAt *time.Time `firestore:"cancelledAt,omitempty"`

	CancelReason string `firestore:"cancelReason,omitempty"`
	CancelledBy  string `firestore:"cancelledBy,omitempty"`
}

func docFromOrder(o *order.Order) orderDoc {
	return orderDoc{
		CustomerID:           string(o.CustomerID),
		CustomerName:         o.CustomerName,
		CustomerEmail:        o.CustomerEmail,
		RestaurantID:         string(o.RestaurantID),
		RestaurantName:       o.RestaurantName,
		CourierID:            string(o.CourierID),
		CourierName:          o.CourierName,
		CourierPhone:         o.CourierPhone,
		Items:                o.Items,
		DeliveryAddress:      o.DeliveryAddress,
		DeliveryInstructions: o.DeliveryInstructions,
		Pricing:              o.Pricing,
		Status:               string(o.Status),
		PaymentStatus:        string(o.PaymentStatus),
		Rating:               o.Rating,
		Version:              o.Version,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
		ConfirmedAt:          o.ConfirmedAt,
		ReadyAt:              o.ReadyAt,
		PickedUpAt:           o.PickedUpAt,
		DeliveredAt:          o.DeliveredAt,
		CancelledAt:          o.CancelledAt,
		CancelReason:         o.CancelReason,
		CancelledBy:          string(o.CancelledBy),
	}
}

func orderFromDoc(id string, d orderDoc) *order.Order {
	return &order.Order{
		ID:                   types.ID(id),
		CustomerID:           types.ID(d.CustomerID),
		CustomerName:         d.CustomerName,
		CustomerEmail:        d.CustomerEmail,
		RestaurantID:         types.ID(d.RestaurantID),
		RestaurantName:       d.RestaurantName,
		CourierID:            types.ID(d.CourierID),
		CourierName:          d.CourierName,
		CourierPhone:         d.CourierPhone,
		Items:                d.Items,
		DeliveryAddress:      d.DeliveryAddress,
		DeliveryInstructions: d.DeliveryInstructions,
		Pricing:              d.Pricing,
		Status:               order.Status(d.Status),
		PaymentStatus:        order.PaymentStatus(d.PaymentStatus),
		Rating:               d.Rating,
		Version:              d.Version,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
		ConfirmedAt:          d.ConfirmedAt,
		ReadyAt:              d.ReadyAt,
		PickedUpAt:           d.PickedUpAt,
		DeliveredAt:          d.DeliveredAt,
		CancelledAt:          d.CancelledAt,
		CancelReason:         d.CancelReason,
		CancelledBy:          order.Role(d.CancelledBy),
	}
}

func (f *Firestore) Create(ctx context.Context, o *order.Order) (types.ID, error) {
	ref := f.orders.NewDoc()
	o.ID = types.ID(ref.ID)
	o.Version = 1
	if _, err := ref.Create(ctx, docFromOrder(o)); err != nil {
		return "", fmt.Errorf("creating order document: %w", err)
	}
	return o.ID, nil
}

func (f *Firestore) Get(ctx context.Context, id types.ID) (*order.Order, error) {
	snap, err := f.orders.Doc(string(id)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching order %s: %w", id, err)
	}
	var d orderDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decoding order %s: %w", id, err)
	}
	return orderFromDoc(snap.Ref.ID, d), nil
}

func (f *Firestore) ConditionalUpdate(ctx context.Context, o *order.Order, expectedVersion int64) (*order.Order, error) {
	ref := f.orders.Doc(string(o.ID))
	next := docFromOrder(o)
	next.Version = expectedVersion + 1

	err := f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return order.ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur orderDoc
		if err := snap.DataTo(&cur); err != nil {
			return err
		}
		if cur.Version != expectedVersion {
			return order.ErrConflict
		}
		return tx.Set(ref, next)
	})
	if err != nil {
		return nil, err
	}
	return orderFromDoc(string(o.ID), next), nil
}

func (f *Firestore) buildQuery(q order.Query) firestore.Query {
	fq := f.orders.Query
	if q.CustomerID != "" {
		fq = fq.Where("customerId", "==", string(q.CustomerID))
	}
	if q.RestaurantID != "" {
		fq = fq.Where("restaurantId", "==", string(q.RestaurantID))
	}
	if q.CourierID != "" {
		fq = fq.Where("courierId", "==", string(q.CourierID))
	}
	if q.UnassignedOnly {
		fq = fq.Where("courierId", "==", "")
	}
	if len(q.Statuses) == 1 {
		fq = fq.Where("status", "==", string(q.Statuses[0]))
	} else if len(q.Statuses) > 1 {
		vals := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			vals[i] = string(s)
		}
		fq = fq.Where("status", "in", vals)
	}
	return fq.OrderBy("createdAt", firestore.Desc)
}

func (f *Firestore) Query(ctx context.Context, q order.Query) ([]*order.Order, error) {
	it := f.buildQuery(q).Documents(ctx)
	defer it.Stop()

	var out []*order.Order
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("querying orders: %w", err)
		}
		var d orderDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decoding order %s: %w", snap.Ref.ID, err)
		}
		out = append(out, orderFromDoc(snap.Ref.ID, d))
	}
	return out, nil
}

func (f *Firestore) Subscribe(ctx context.Context, q order.Query) (order.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &firestoreSubscription{
		ch:     make(chan order.Change, 64),
		cancel: cancel,
	}
	snaps := f.buildQuery(q).Snapshots(subCtx)
	sub.stop = snaps.Stop

	go sub.run(snaps)
	return sub, nil
}

type firestoreSubscription struct {
	ch     chan order.Change
	cancel context.CancelFunc
	stop   func()
	once   sync.Once

	mu  sync.Mutex
	err error
}

func (s *firestoreSubscription) Changes() <-chan order.Change { return s.ch }

func (s *firestoreSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *firestoreSubscription) Close() {
	s.once.Do(func() {
		s.cancel()
		s.stop()
	})
}

// deliver enqueues a change without blocking snapshot delivery. When the
// buffer is full the oldest buffered change is evicted and a reset takes the
// freed slot, so a lagging consumer is always told to requery; only the run
// goroutine sends on ch, which makes the freed capacity ours to use.
func (s *firestoreSubscription) deliver(c order.Change) {
	select {
	case s.ch <- c:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- order.Change{Kind: order.ChangeReset}:
	default:
	}
}

func (s *firestoreSubscription) run(snaps *firestore.QuerySnapshotIterator) {
	defer close(s.ch)
	for {
		snap, err := snaps.Next()
		if err != nil {
			if status.Code(err) != codes.Canceled {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
		for _, dc := range snap.Changes {
			var kind order.ChangeKind
			switch dc.Kind {
			case firestore.DocumentAdded:
				kind = order.ChangeCreated
			case firestore.DocumentModified:
				kind = order.ChangeUpdated
			case firestore.DocumentRemoved:
				kind = order.ChangeRemoved
			}
			var d orderDoc
			if err := dc.Doc.DataTo(&d); err != nil {
				continue
			}
			s.deliver(order.Change{Kind: kind, Order: orderFromDoc(dc.Doc.Ref.ID, d)})
		}
	}
}
