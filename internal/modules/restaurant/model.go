// README: Restaurant profile read model consumed by pricing and auto-accept.
package restaurant

import (
	"context"

	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Rates is the charge configuration the pricing engine applies to an order.
// Percentages are whole percent values; fees and minimums are minor units.
type Rates struct {
	ServiceChargePercent int64       `json:"serviceChargePercent" firestore:"serviceChargePercent"`
	TaxPercent           int64       `json:"taxPercent" firestore:"taxPercent"`
	DeliveryFee          types.Money `json:"deliveryFee" firestore:"deliveryFee"`
	MinimumOrder         types.Money `json:"minimumOrder" firestore:"minimumOrder"`
}

// Profile is the slice of the externally-owned restaurant document this
// subsystem reads. It is never written here.
type Profile struct {
	ID               types.ID `json:"id"`
	Name             string   `json:"name" firestore:"name"`
	IsActive         bool     `json:"isActive" firestore:"isActive"`
	AutoAcceptOrders bool     `json:"autoAcceptOrders" firestore:"autoAcceptOrders"`
	Rates            Rates    `json:"rates" firestore:"rates"`
}

// Reader exposes the restaurant profile fields this subsystem depends on.
// Profile CRUD lives outside the order subsystem.
type Reader interface {
	GetProfile(ctx context.Context, restaurantID types.ID) (*Profile, error)
	GetRates(ctx context.Context, restaurantID types.ID) (Rates, error)
	GetAutoAcceptFlag(ctx context.Context, restaurantID types.ID) (bool, error)
}
