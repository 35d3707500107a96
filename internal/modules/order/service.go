// README: Order service: the single authority for status mutation.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

var (
	ErrNotFound           = errors.New("order not found")
	ErrInvalidState       = errors.New("illegal status transition")
	ErrForbidden          = errors.New("actor not allowed to perform transition")
	ErrConflict           = errors.New("order was modified concurrently")
	ErrUnavailable        = errors.New("order store unavailable")
	ErrBadRequest         = errors.New("bad request")
	ErrRestaurantInactive = errors.New("restaurant is not accepting orders")
	ErrBelowMinimum       = errors.New("order subtotal below restaurant minimum")
)

// Pricer computes the derived pricing breakdown. Implemented by the pricing
// engine; kept as an interface so the service owns only lifecycle logic.
type Pricer interface {
	Compute(items []LineItem, rates restaurant.Rates) (Pricing, error)
	PriceItems(items []LineItem) []LineItem
}

// Journal records state transitions for the audit trail. Appends are
// best-effort; a journal outage never fails a transition.
type Journal interface {
	Append(ctx context.Context, e Event) error
}

// Notifier is the fire-and-forget boundary to push/event delivery.
// Implementations swallow and log their own failures.
type Notifier interface {
	OrderCreated(ctx context.Context, o *Order)
	OrderTransitioned(ctx context.Context, o *Order, from Status)
}

const defaultStoreTimeout = 5 * time.Second

// Service validates and applies order lifecycle mutations. Every write goes
// through a version-keyed conditional update; there is no other concurrency
// control.
type Service struct {
	store    Store
	pricer   Pricer
	profiles restaurant.Reader
	journal  Journal
	notifier Notifier
	timeout  time.Duration
}

// Option tweaks optional service collaborators.
type Option func(*Service)

func WithJournal(j Journal) Option            { return func(s *Service) { s.journal = j } }
func WithNotifier(n Notifier) Option          { return func(s *Service) { s.notifier = n } }
func WithStoreTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

func NewService(store Store, pricer Pricer, profiles restaurant.Reader, opts ...Option) *Service {
	s := &Service{
		store:    store,
		pricer:   pricer,
		profiles: profiles,
		timeout:  defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCommand carries everything the customer surface submits when placing
// an order. Pricing is always recomputed server-side.
type CreateCommand struct {
	CustomerID    types.ID
	CustomerName  string
	CustomerEmail string
	RestaurantID  types.ID

	Items                []LineItem
	DeliveryAddress      Address
	DeliveryInstructions string
}

// TransitionCommand requests one edge of the state machine. ExpectedVersion
// pins the write to a previously observed version; zero means "the version
// read inside this call".
type TransitionCommand struct {
	OrderID         types.ID
	Target          Status
	Actor           Actor
	Reason          string
	ExpectedVersion int64
}

// Create prices and persists a new order in the placed state.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || cmd.RestaurantID == "" {
		return nil, fmt.Errorf("%w: customer and restaurant ids are required", ErrBadRequest)
	}

	profile, err := s.profiles.GetProfile(ctx, cmd.RestaurantID)
	if err != nil {
		if errors.Is(err, restaurant.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown restaurant %s", ErrBadRequest, cmd.RestaurantID)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !profile.IsActive {
		return nil, ErrRestaurantInactive
	}

	items := s.pricer.PriceItems(cmd.Items)
	pricing, err := s.pricer.Compute(items, profile.Rates)
	if err != nil {
		return nil, err
	}
	if pricing.Subtotal.Amount < profile.Rates.MinimumOrder.Amount {
		return nil, fmt.Errorf("%w: subtotal %s, minimum %s",
			ErrBelowMinimum, pricing.Subtotal, profile.Rates.MinimumOrder)
	}

	now := time.Now().UTC()
	o := &Order{
		CustomerID:           cmd.CustomerID,
		CustomerName:         cmd.CustomerName,
		CustomerEmail:        cmd.CustomerEmail,
		RestaurantID:         profile.ID,
		RestaurantName:       profile.Name,
		Items:                items,
		DeliveryAddress:      cmd.DeliveryAddress,
		DeliveryInstructions: cmd.DeliveryInstructions,
		Pricing:              pricing,
		Status:               StatusPlaced,
		PaymentStatus:        PaymentPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	id, err := s.store.Create(ctx, o)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	o.ID = id

	s.appendEvent(ctx, Event{
		OrderID:   id,
		ToStatus:  StatusPlaced,
		ActorRole: RoleCustomer,
		ActorID:   cmd.CustomerID,
		CreatedAt: now,
	})
	s.notifyCreated(ctx, o)
	return o, nil
}

// Transition applies one validated edge of the state machine and persists it
// with a conditional write. Exactly one of several racing callers wins; the
// rest receive ErrConflict and must re-read.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Order, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	if cmd.ExpectedVersion != 0 && cmd.ExpectedVersion != o.Version {
		return nil, ErrConflict
	}

	from := o.Status
	if !CanTransition(from, cmd.Target) {
		if cmd.Target == StatusPickedUp && from != StatusReadyForPickup && o.CourierID != "" {
			return nil, fmt.Errorf("%w: order already picked up by another courier", ErrInvalidState)
		}
		if cmd.Target == StatusCancelled && (from == StatusPickedUp || from == StatusOnTheWay) {
			return nil, fmt.Errorf("%w: order is out for delivery and can no longer be cancelled", ErrInvalidState)
		}
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, cmd.Target)
	}
	if !allowedActor(from, cmd.Target, cmd.Actor.Role) {
		return nil, fmt.Errorf("%w: %s may not move an order from %s to %s",
			ErrForbidden, cmd.Actor.Role, from, cmd.Target)
	}

	now := time.Now().UTC()
	o.Status = cmd.Target
	o.UpdatedAt = now
	if ms := o.milestone(cmd.Target); ms != nil && *ms == nil {
		*ms = &now
	}
	if cmd.Target == StatusPickedUp && o.CourierID == "" {
		// First courier to win the conditional write owns the order.
		o.CourierID = cmd.Actor.ID
		o.CourierName = cmd.Actor.Name
		o.CourierPhone = cmd.Actor.Phone
	}
	if cmd.Target == StatusCancelled {
		o.CancelReason = cmd.Reason
		o.CancelledBy = cmd.Actor.Role
	}

	updated, err := s.store.ConditionalUpdate(ctx, o, o.Version)
	if err != nil {
		return nil, s.classify(ctx, err)
	}

	s.appendEvent(ctx, Event{
		OrderID:    updated.ID,
		FromStatus: from,
		ToStatus:   cmd.Target,
		ActorRole:  cmd.Actor.Role,
		ActorID:    cmd.Actor.ID,
		Reason:     cmd.Reason,
		CreatedAt:  now,
	})
	s.notifyTransitioned(ctx, updated, from)
	return updated, nil
}

// SetPaymentStatus updates the payment axis without touching the lifecycle
// status. Invoked by the external payment collaborator.
func (s *Service) SetPaymentStatus(ctx context.Context, id types.ID, ps PaymentStatus) (*Order, error) {
	switch ps {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrBadRequest, ps)
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	o.PaymentStatus = ps
	o.UpdatedAt = time.Now().UTC()
	updated, err := s.store.ConditionalUpdate(ctx, o, o.Version)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	return updated, nil
}

// Rate records the customer rating on a delivered order.
func (s *Service) Rate(ctx context.Context, id types.ID, customerID types.ID, rating float64) (*Order, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrBadRequest)
	}

	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	if o.CustomerID != customerID {
		return nil, fmt.Errorf("%w: only the ordering customer may rate", ErrForbidden)
	}
	if o.Status != StatusDelivered {
		return nil, fmt.Errorf("%w: only delivered orders can be rated", ErrInvalidState)
	}
	o.Rating = rating
	o.UpdatedAt = time.Now().UTC()
	updated, err := s.store.ConditionalUpdate(ctx, o, o.Version)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, q Query) ([]*Order, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	orders, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, s.classify(ctx, err)
	}
	return orders, nil
}

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// classify maps raw store failures onto the error taxonomy. Conflict and
// not-found pass through; deadline and transport failures become the
// retryable ErrUnavailable.
func (s *Service) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// Notifications run in their own goroutine, detached from the request
// deadline: a slow broker must never stretch a transition response.
func (s *Service) notifyCreated(ctx context.Context, o *Order) {
	if s.notifier == nil {
		return
	}
	go s.notifier.OrderCreated(context.WithoutCancel(ctx), o)
}

func (s *Service) notifyTransitioned(ctx context.Context, o *Order, from Status) {
	if s.notifier == nil {
		return
	}
	go s.notifier.OrderTransitioned(context.WithoutCancel(ctx), o, from)
}

func (s *Service) appendEvent(ctx context.Context, e Event) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(ctx, e); err != nil {
		log.Printf("order: journal append for %s: %v", e.OrderID, err)
	}
}
