// README: Order aggregate, status enum and the legal transition table.
package order

import (
	"strings"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Status is the single source of truth for order lifecycle states. All three
// role surfaces (customer, restaurant, courier) share this enum; no component
// other than Service may write it.
type Status string

const (
	StatusPlaced         Status = "placed"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusPickedUp       Status = "picked_up"
	StatusOnTheWay       Status = "on_the_way"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// PaymentStatus is an axis independent from Status; payment capture itself is
// handled outside this subsystem.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Role identifies which kind of actor is requesting a mutation.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleRestaurant Role = "restaurant"
	RoleCourier    Role = "courier"
)

// Actor is the identity attached to a transition request.
type Actor struct {
	Role  Role
	ID    types.ID
	Name  string
	Phone string
}

// LineItem is one priced entry in an order. Subtotal is UnitPrice*Quantity,
// recomputed by the pricing engine, never accumulated.
type LineItem struct {
	Name                string      `json:"name" firestore:"name"`
	UnitPrice           types.Money `json:"unitPrice" firestore:"unitPrice"`
	Quantity            int         `json:"quantity" firestore:"quantity"`
	Subtotal            types.Money `json:"subtotal" firestore:"subtotal"`
	SpecialInstructions string      `json:"specialInstructions,omitempty" firestore:"specialInstructions,omitempty"`
}

// Address is the delivery target.
type Address struct {
	Street  string `json:"street" firestore:"street"`
	City    string `json:"city" firestore:"city"`
	State   string `json:"state" firestore:"state"`
	ZipCode string `json:"zipCode" firestore:"zipCode"`
	Country string `json:"country" firestore:"country"`
	Label   string `json:"label" firestore:"label"`
}

// Pricing is the derived charge breakdown. Total always equals
// Subtotal+ServiceCharge+Tax+DeliveryFee; it is recomputed on creation and
// never hand-edited afterwards.
type Pricing struct {
	Subtotal      types.Money `json:"subtotal" firestore:"subtotal"`
	ServiceCharge types.Money `json:"serviceCharge" firestore:"serviceCharge"`
	Tax           types.Money `json:"tax" firestore:"tax"`
	DeliveryFee   types.Money `json:"deliveryFee" firestore:"deliveryFee"`
	Total         types.Money `json:"total" firestore:"total"`
}

// Order is the central record tracking one purchase from placement through
// delivery or cancellation. Terminal orders are retained for statistics,
// never deleted.
type Order struct {
	ID types.ID `json:"id"`

	CustomerID    types.ID `json:"customerId"`
	CustomerName  string   `json:"customerName"`
	CustomerEmail string   `json:"customerEmail"`

	RestaurantID   types.ID `json:"restaurantId"`
	RestaurantName string   `json:"restaurantName"`

	// Courier fields stay empty until the ready_for_pickup -> picked_up edge
	// binds the winning courier; immutable thereafter.
	CourierID    types.ID `json:"courierId,omitempty"`
	CourierName  string   `json:"courierName,omitempty"`
	CourierPhone string   `json:"courierPhone,omitempty"`

	Items                []LineItem `json:"items"`
	DeliveryAddress      Address    `json:"deliveryAddress"`
	DeliveryInstructions string     `json:"deliveryInstructions,omitempty"`

	Pricing       Pricing       `json:"pricing"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`

	// Rating is set by the customer after delivery; 0 means unrated.
	Rating float64 `json:"rating,omitempty"`

	// Version is the optimistic-concurrency counter; every successful write
	// through the store increments it.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Milestone timestamps: set the first time the order passes through the
	// corresponding status, nil otherwise.
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	ReadyAt     *time.Time `json:"readyAt,omitempty"`
	PickedUpAt  *time.Time `json:"pickedUpAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	CancelReason string `json:"cancelReason,omitempty"`
	CancelledBy  Role   `json:"cancelledBy,omitempty"`
}

// Event is one entry in the order state journal (audit trail).
type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorRole  Role
	ActorID    types.ID
	Reason     string
	CreatedAt  time.Time
}

const numberPrefix = "YE-"

// Number derives the human-displayable order number from the store id. It is
// display-only and not guaranteed globally unique beyond the id itself.
func (o *Order) Number() string {
	id := string(o.ID)
	if len(id) > 8 {
		id = id[:8]
	}
	return numberPrefix + strings.ToUpper(id)
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// AllowedTransitions represents the order state flow as code. Cancellation is
// only reachable until the courier physically holds the goods.
var AllowedTransitions = map[Status][]Status{
	StatusPlaced:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusPickedUp},
	StatusPickedUp:       {StatusOnTheWay},
	StatusOnTheWay:       {StatusDelivered},
}

// CanTransition reports whether the edge from -> to exists in the table.
func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transitionRoles maps each target status to the roles allowed to request it.
// Customer cancellation is further restricted in allowedActor: customers may
// only cancel from placed or confirmed, the restaurant from any cancellable
// state.
var transitionRoles = map[Status][]Role{
	StatusConfirmed:      {RoleRestaurant},
	StatusPreparing:      {RoleRestaurant},
	StatusReadyForPickup: {RoleRestaurant},
	StatusPickedUp:       {RoleCourier},
	StatusOnTheWay:       {RoleCourier},
	StatusDelivered:      {RoleCourier},
	StatusCancelled:      {RoleCustomer, RoleRestaurant},
}

func allowedActor(from, to Status, role Role) bool {
	if to == StatusCancelled && role == RoleCustomer {
		return from == StatusPlaced || from == StatusConfirmed
	}
	for _, r := range transitionRoles[to] {
		if r == role {
			return true
		}
	}
	return false
}

// milestone returns a pointer to the milestone field for the given status, or
// nil when the status has no milestone (placed is covered by CreatedAt).
func (o *Order) milestone(s Status) **time.Time {
	switch s {
	case StatusConfirmed:
		return &o.ConfirmedAt
	case StatusReadyForPickup:
		return &o.ReadyAt
	case StatusPickedUp:
		return &o.PickedUpAt
	case StatusDelivered:
		return &o.DeliveredAt
	case StatusCancelled:
		return &o.CancelledAt
	default:
		return nil
	}
}

// Clone returns a deep copy; stores and projections hand out clones so callers
// can never mutate shared state.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.ConfirmedAt = cloneTime(o.ConfirmedAt)
	c.ReadyAt = cloneTime(o.ReadyAt)
	c.PickedUpAt = cloneTime(o.PickedUpAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
