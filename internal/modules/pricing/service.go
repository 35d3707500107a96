// README: Pricing engine: pure charge computation from line items and rates.
package pricing

import (
	"errors"
	"fmt"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/modules/restaurant"
)

var (
	ErrEmptyOrder      = errors.New("order has no line items")
	ErrInvalidLineItem = errors.New("invalid line item")
)

// Engine computes the derived pricing breakdown. It is stateless,
// deterministic and safe for concurrent use.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Compute prices an order: subtotal over all items, percentage service
// charge and tax on the subtotal, flat delivery fee, and the exact sum as
// total. All arithmetic is integer minor units; percent charges round
// half-up. Inputs are not mutated.
func (e *Engine) Compute(items []order.LineItem, rates restaurant.Rates) (order.Pricing, error) {
	if len(items) == 0 {
		return order.Pricing{}, ErrEmptyOrder
	}

	var p order.Pricing
	currency := ""
	for i, it := range items {
		if it.Quantity <= 0 {
			return order.Pricing{}, fmt.Errorf("%w: item %d (%s) quantity %d", ErrInvalidLineItem, i, it.Name, it.Quantity)
		}
		if it.UnitPrice.Amount < 0 {
			return order.Pricing{}, fmt.Errorf("%w: item %d (%s) negative unit price", ErrInvalidLineItem, i, it.Name)
		}
		// Item currency comes straight from client JSON; a mismatch must be
		// a typed error here, not a Money.Add panic further down.
		if c := it.UnitPrice.Currency; c != "" {
			if currency == "" {
				currency = c
			} else if c != currency {
				return order.Pricing{}, fmt.Errorf("%w: item %d (%s) priced in %s, order is in %s",
					ErrInvalidLineItem, i, it.Name, c, currency)
			}
		}
		p.Subtotal = p.Subtotal.Add(it.UnitPrice.Mul(int64(it.Quantity)))
	}
	if c := rates.DeliveryFee.Currency; c != "" && currency != "" && c != currency {
		return order.Pricing{}, fmt.Errorf("%w: items priced in %s but delivery fee is in %s",
			ErrInvalidLineItem, currency, c)
	}

	p.ServiceCharge = p.Subtotal.Percent(rates.ServiceChargePercent)
	p.Tax = p.Subtotal.Percent(rates.TaxPercent)
	p.DeliveryFee = rates.DeliveryFee
	p.Total = p.Subtotal.Add(p.ServiceCharge).Add(p.Tax).Add(p.DeliveryFee)
	return p, nil
}

// PriceItems returns a copy of items with each Subtotal recomputed from
// UnitPrice*Quantity; used on order creation so stored line items always
// carry consistent subtotals.
func (e *Engine) PriceItems(items []order.LineItem) []order.LineItem {
	out := make([]order.LineItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Subtotal = out[i].UnitPrice.Mul(int64(out[i].Quantity))
	}
	return out
}
