// README: Restaurant profile readers: Firestore-backed and in-memory static.
package restaurant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MetricCode/yetueats-orders/internal/types"
)

var ErrNotFound = errors.New("restaurant not found")

// FirestoreReader reads restaurant profiles from the shared Firestore
// collection maintained by the (out-of-scope) restaurant management surface.
type FirestoreReader struct {
	col *firestore.CollectionRef
}

func NewFirestoreReader(client *firestore.Client, collection string) *FirestoreReader {
	return &FirestoreReader{col: client.Collection(collection)}
}

type profileDoc struct {
	Name                 string  `firestore:"name"`
	IsActive             bool    `firestore:"isActive"`
	AutoAcceptOrders     bool    `firestore:"autoAcceptOrders"`
	ServiceChargePercent int64   `firestore:"serviceChargePercent"`
	TaxPercent           int64   `firestore:"taxPercent"`
	DeliveryFee          int64   `firestore:"deliveryFee"`
	MinimumOrder         int64   `firestore:"minimumOrder"`
	Currency             string  `firestore:"currency"`
	Rating               float64 `firestore:"rating"`
}

func (r *FirestoreReader) GetProfile(ctx context.Context, restaurantID types.ID) (*Profile, error) {
	snap, err := r.col.Doc(string(restaurantID)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching restaurant %s: %w", restaurantID, err)
	}
	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decoding restaurant %s: %w", restaurantID, err)
	}
	cur := doc.Currency
	if cur == "" {
		cur = "KES"
	}
	return &Profile{
		ID:               restaurantID,
		Name:             doc.Name,
		IsActive:         doc.IsActive,
		AutoAcceptOrders: doc.AutoAcceptOrders,
		Rates: Rates{
			ServiceChargePercent: doc.ServiceChargePercent,
			TaxPercent:           doc.TaxPercent,
			DeliveryFee:          types.Money{Amount: doc.DeliveryFee, Currency: cur},
			MinimumOrder:         types.Money{Amount: doc.MinimumOrder, Currency: cur},
		},
	}, nil
}

func (r *FirestoreReader) GetRates(ctx context.Context, restaurantID types.ID) (Rates, error) {
	p, err := r.GetProfile(ctx, restaurantID)
	if err != nil {
		return Rates{}, err
	}
	return p.Rates, nil
}

func (r *FirestoreReader) GetAutoAcceptFlag(ctx context.Context, restaurantID types.ID) (bool, error) {
	p, err := r.GetProfile(ctx, restaurantID)
	if err != nil {
		return false, err
	}
	return p.AutoAcceptOrders, nil
}

// StaticReader serves profiles from memory; used in tests and local runs
// without Firestore.
type StaticReader struct {
	mu       sync.RWMutex
	profiles map[types.ID]*Profile
}

func NewStaticReader(profiles ...*Profile) *StaticReader {
	m := make(map[types.ID]*Profile, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p
	}
	return &StaticReader{profiles: m}
}

func (r *StaticReader) Put(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
}

// SetAutoAccept flips the opt-in flag, mirroring what the restaurant
// dashboard writes to the profile document.
func (r *StaticReader) SetAutoAccept(restaurantID types.ID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[restaurantID]
	if !ok {
		return ErrNotFound
	}
	p.AutoAcceptOrders = enabled
	return nil
}

func (r *StaticReader) GetProfile(_ context.Context, restaurantID types.ID) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[restaurantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *StaticReader) GetRates(ctx context.Context, restaurantID types.ID) (Rates, error) {
	p, err := r.GetProfile(ctx, restaurantID)
	if err != nil {
		return Rates{}, err
	}
	return p.Rates, nil
}

func (r *StaticReader) GetAutoAcceptFlag(ctx context.Context, restaurantID types.ID) (bool, error) {
	p, err := r.GetProfile(ctx, restaurantID)
	if err != nil {
		return false, err
	}
	return p.AutoAcceptOrders, nil
}
