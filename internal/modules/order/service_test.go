package order_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/pricing"
	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
	"github.com/MetricCode/yetueats-orders/internal/store"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

func kes(amount int64) types.Money {
	return types.Money{Amount: amount, Currency: "KES"}
}

func testProfile() *restaurant.Profile {
	return &restaurant.Profile{
		ID:       "r1",
		Name:     "Mama Njeri's Kitchen",
		IsActive: true,
		Rates: restaurant.Rates{
			ServiceChargePercent: 10,
			TaxPercent:           16,
			DeliveryFee:          kes(100),
			MinimumOrder:         kes(500),
		},
	}
}

func newTestService(t *testing.T, opts ...order.Option) (*order.Service, *restaurant.StaticReader) {
	t.Helper()
	profiles := restaurant.NewStaticReader(testProfile())
	svc := order.NewService(store.NewMemory(), pricing.NewEngine(), profiles, opts...)
	return svc, profiles
}

func placeOrder(t *testing.T, svc *order.Service) *order.Order {
	t.Helper()
	o, err := svc.Create(context.Background(), order.CreateCommand{
		CustomerID:   "c1",
		CustomerName: "Amina",
		RestaurantID: "r1",
		Items: []order.LineItem{
			{Name: "Chicken Biryani", UnitPrice: kes(1500), Quantity: 2},
		},
		DeliveryAddress: order.Address{Street: "Moi Avenue", City: "Nairobi"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

var (
	restaurantActor = order.Actor{Role: order.RoleRestaurant, ID: "r1"}
	customerActor   = order.Actor{Role: order.RoleCustomer, ID: "c1"}
	courierActor    = order.Actor{Role: order.RoleCourier, ID: "k1", Name: "Otieno", Phone: "+254700000001"}
)

func transition(t *testing.T, svc *order.Service, id types.ID, target order.Status, actor order.Actor) *order.Order {
	t.Helper()
	o, err := svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: id, Target: target, Actor: actor,
	})
	if err != nil {
		t.Fatalf("transition to %s as %s: %v", target, actor.Role, err)
	}
	return o
}

func TestCreate_PricesAndPersists(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)

	if o.ID == "" {
		t.Fatal("expected assigned id")
	}
	if o.Status != order.StatusPlaced {
		t.Errorf("status = %s, want placed", o.Status)
	}
	if o.PaymentStatus != order.PaymentPending {
		t.Errorf("payment status = %s, want pending", o.PaymentStatus)
	}
	if o.Version != 1 {
		t.Errorf("version = %d, want 1", o.Version)
	}
	if o.RestaurantName != "Mama Njeri's Kitchen" {
		t.Errorf("restaurant name not denormalized: %q", o.RestaurantName)
	}
	if o.Pricing.Total != kes(3880) {
		t.Errorf("total = %v, want %v", o.Pricing.Total, kes(3880))
	}
	if o.Items[0].Subtotal != kes(3000) {
		t.Errorf("item subtotal = %v, want %v", o.Items[0].Subtotal, kes(3000))
	}
}

func TestCreate_Rejections(t *testing.T) {
	svc, profiles := newTestService(t)
	profiles.Put(&restaurant.Profile{ID: "closed", Name: "Closed Kitchen", IsActive: false})

	tests := []struct {
		name    string
		cmd     order.CreateCommand
		wantErr error
	}{
		{
			name: "unknown restaurant",
			cmd: order.CreateCommand{
				CustomerID: "c1", RestaurantID: "nope",
				Items: []order.LineItem{{Name: "x", UnitPrice: kes(600), Quantity: 1}},
			},
			wantErr: order.ErrBadRequest,
		},
		{
			name: "inactive restaurant",
			cmd: order.CreateCommand{
				CustomerID: "c1", RestaurantID: "closed",
				Items: []order.LineItem{{Name: "x", UnitPrice: kes(600), Quantity: 1}},
			},
			wantErr: order.ErrRestaurantInactive,
		},
		{
			name: "below minimum order",
			cmd: order.CreateCommand{
				CustomerID: "c1", RestaurantID: "r1",
				Items: []order.LineItem{{Name: "x", UnitPrice: kes(100), Quantity: 1}},
			},
			wantErr: order.ErrBelowMinimum,
		},
		{
			name: "no items",
			cmd: order.CreateCommand{
				CustomerID: "c1", RestaurantID: "r1",
			},
			wantErr: pricing.ErrEmptyOrder,
		},
		{
			name:    "missing ids",
			cmd:     order.CreateCommand{},
			wantErr: order.ErrBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.cmd)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLifecycle_HappyPath(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)

	o = transition(t, svc, o.ID, order.StatusConfirmed, restaurantActor)
	if o.ConfirmedAt == nil {
		t.Error("confirmedAt not stamped")
	}
	o = transition(t, svc, o.ID, order.StatusPreparing, restaurantActor)
	o = transition(t, svc, o.ID, order.StatusReadyForPickup, restaurantActor)
	if o.ReadyAt == nil {
		t.Error("readyAt not stamped")
	}

	o = transition(t, svc, o.ID, order.StatusPickedUp, courierActor)
	if o.CourierID != "k1" || o.CourierName != "Otieno" || o.CourierPhone != "+254700000001" {
		t.Errorf("courier not bound on pickup: %+v", o)
	}
	if o.PickedUpAt == nil {
		t.Error("pickedUpAt not stamped")
	}

	o = transition(t, svc, o.ID, order.StatusOnTheWay, courierActor)
	o = transition(t, svc, o.ID, order.StatusDelivered, courierActor)
	if o.DeliveredAt == nil {
		t.Error("deliveredAt not stamped")
	}
	if o.Status != order.StatusDelivered {
		t.Errorf("final status = %s, want delivered", o.Status)
	}
	if o.Version != 7 {
		t.Errorf("version = %d, want 7 after six transitions", o.Version)
	}
}

func TestTransition_ForbiddenActors(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)

	tests := []struct {
		name   string
		target order.Status
		actor  order.Actor
	}{
		{"customer cannot confirm", order.StatusConfirmed, customerActor},
		{"courier cannot confirm", order.StatusConfirmed, courierActor},
		{"courier cannot cancel", order.StatusCancelled, courierActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transition(context.Background(), order.TransitionCommand{
				OrderID: o.ID, Target: tt.target, Actor: tt.actor,
			})
			if !errors.Is(err, order.ErrForbidden) {
				t.Errorf("error = %v, want ErrForbidden", err)
			}
		})
	}
}

func TestTransition_IllegalEdges(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)

	// Skipping preparation entirely is not a legal edge.
	_, err := svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: o.ID, Target: order.StatusReadyForPickup, Actor: restaurantActor,
	})
	if !errors.Is(err, order.ErrInvalidState) {
		t.Errorf("placed -> ready_for_pickup: error = %v, want ErrInvalidState", err)
	}
}

func TestCancel_CustomerWindowCloses(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)
	transition(t, svc, o.ID, order.StatusConfirmed, restaurantActor)
	transition(t, svc, o.ID, order.StatusPreparing, restaurantActor)

	// Once preparation starts only the restaurant may cancel.
	_, err := svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: o.ID, Target: order.StatusCancelled, Actor: customerActor, Reason: "changed my mind",
	})
	if !errors.Is(err, order.ErrForbidden) {
		t.Fatalf("customer cancel from preparing: error = %v, want ErrForbidden", err)
	}

	got, err := svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: o.ID, Target: order.StatusCancelled, Actor: restaurantActor, Reason: "out of stock",
	})
	if err != nil {
		t.Fatalf("restaurant cancel from preparing: %v", err)
	}
	if got.CancelReason != "out of stock" || got.CancelledBy != order.RoleRestaurant {
		t.Errorf("cancel metadata = (%q, %s)", got.CancelReason, got.CancelledBy)
	}
	if got.CancelledAt == nil {
		t.Error("cancelledAt not stamped")
	}
}

func TestCancel_AfterPickupRefused(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)
	transition(t, svc, o.ID, order.StatusConfirmed, restaurantActor)
	transition(t, svc, o.ID, order.StatusPreparing, restaurantActor)
	transition(t, svc, o.ID, order.StatusReadyForPickup, restaurantActor)
	transition(t, svc, o.ID, order.StatusPickedUp, courierActor)

	_, err := svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: o.ID, Target: order.StatusCancelled, Actor: restaurantActor,
	})
	if !errors.Is(err, order.ErrInvalidState) {
		t.Errorf("cancel after pickup: error = %v, want ErrInvalidState", err)
	}
}

func TestTransition_StaleExpectedVersion(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)

	// First request with the observed version wins.
	_, err := svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: o.ID, Target: order.StatusConfirmed, Actor: restaurantActor, ExpectedVersion: o.Version,
	})
	if err != nil {
		t.Fatalf("first transition: %v", err)
	}

	// A retry of the same request must surface as a conflict, not as an
	// illegal-transition error.
	_, err = svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: o.ID, Target: order.StatusConfirmed, Actor: restaurantActor, ExpectedVersion: o.Version,
	})
	if !errors.Is(err, order.ErrConflict) {
		t.Errorf("replayed transition: error = %v, want ErrConflict", err)
	}
}

func TestSetPaymentStatus(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)

	got, err := svc.SetPaymentStatus(context.Background(), o.ID, order.PaymentPaid)
	if err != nil {
		t.Fatalf("SetPaymentStatus: %v", err)
	}
	if got.PaymentStatus != order.PaymentPaid {
		t.Errorf("payment status = %s, want paid", got.PaymentStatus)
	}
	if got.Status != order.StatusPlaced {
		t.Errorf("lifecycle status changed to %s", got.Status)
	}

	if _, err := svc.SetPaymentStatus(context.Background(), o.ID, "bogus"); !errors.Is(err, order.ErrBadRequest) {
		t.Errorf("bogus payment status: error = %v, want ErrBadRequest", err)
	}
}

func TestRate(t *testing.T) {
	svc, _ := newTestService(t)
	o := placeOrder(t, svc)

	if _, err := svc.Rate(context.Background(), o.ID, "c1", 5); !errors.Is(err, order.ErrInvalidState) {
		t.Errorf("rating before delivery: error = %v, want ErrInvalidState", err)
	}

	transition(t, svc, o.ID, order.StatusConfirmed, restaurantActor)
	transition(t, svc, o.ID, order.StatusPreparing, restaurantActor)
	transition(t, svc, o.ID, order.StatusReadyForPickup, restaurantActor)
	transition(t, svc, o.ID, order.StatusPickedUp, courierActor)
	transition(t, svc, o.ID, order.StatusOnTheWay, courierActor)
	transition(t, svc, o.ID, order.StatusDelivered, courierActor)

	if _, err := svc.Rate(context.Background(), o.ID, "someone-else", 5); !errors.Is(err, order.ErrForbidden) {
		t.Errorf("rating by non-owner: error = %v, want ErrForbidden", err)
	}
	if _, err := svc.Rate(context.Background(), o.ID, "c1", 6); !errors.Is(err, order.ErrBadRequest) {
		t.Errorf("out-of-range rating: error = %v, want ErrBadRequest", err)
	}

	got, err := svc.Rate(context.Background(), o.ID, "c1", 4.5)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if got.Rating != 4.5 {
		t.Errorf("rating = %v, want 4.5", got.Rating)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, order.ErrNotFound) {
		t.Errorf("Get(missing): error = %v, want ErrNotFound", err)
	}
}

func TestJournal_RecordsTransitions(t *testing.T) {
	journal := &fakeJournal{}
	svc, _ := newTestService(t, order.WithJournal(journal))

	o := placeOrder(t, svc)
	transition(t, svc, o.ID, order.StatusConfirmed, restaurantActor)

	if len(journal.events) != 2 {
		t.Fatalf("journal events = %d, want 2", len(journal.events))
	}
	if journal.events[0].ToStatus != order.StatusPlaced {
		t.Errorf("first event to = %s, want placed", journal.events[0].ToStatus)
	}
	if journal.events[1].FromStatus != order.StatusPlaced || journal.events[1].ToStatus != order.StatusConfirmed {
		t.Errorf("second event = %s -> %s", journal.events[1].FromStatus, journal.events[1].ToStatus)
	}
}

func TestJournalFailure_DoesNotFailTransition(t *testing.T) {
	journal := &fakeJournal{err: errors.New("journal down")}
	svc, _ := newTestService(t, order.WithJournal(journal))

	o := placeOrder(t, svc)
	if _, err := svc.Transition(context.Background(), order.TransitionCommand{
		OrderID: o.ID, Target: order.StatusConfirmed, Actor: restaurantActor,
	}); err != nil {
		t.Fatalf("transition must survive journal outage: %v", err)
	}
}

func TestNotifier_DoesNotBlockTransition(t *testing.T) {
	n := &blockingNotifier{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc, _ := newTestService(t, order.WithNotifier(n))

	// Create and Transition must both return while the notifier is still
	// stuck; delivery is fire-and-forget off the request path.
	o := placeOrder(t, svc)
	transition(t, svc, o.ID, order.StatusConfirmed, restaurantActor)

	for i := 0; i < 2; i++ {
		select {
		case <-n.started:
		case <-time.After(time.Second):
			t.Fatal("notifier was never invoked")
		}
	}
	close(n.release)
}

type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
}

func (n *blockingNotifier) OrderCreated(context.Context, *order.Order) {
	n.started <- struct{}{}
	<-n.release
}

func (n *blockingNotifier) OrderTransitioned(context.Context, *order.Order, order.Status) {
	n.started <- struct{}{}
	<-n.release
}

type fakeJournal struct {
	events []order.Event
	err    error
}

func (f *fakeJournal) Append(_ context.Context, e order.Event) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}
