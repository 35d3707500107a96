// README: Common value objects shared across modules.
package types

import "fmt"

// ID is an opaque document identifier assigned by the backing store.
type ID string

// Money is a fixed-point monetary amount in minor units (cents, kobo, ...).
// Arithmetic on Amount stays in integer space to avoid rounding drift.
type Money struct {
	Amount   int64  `json:"amount" firestore:"amount"`
	Currency string `json:"currency" firestore:"currency"`
}

// Add returns a+b. Both operands must share a currency; mixing currencies is
// a programming error and panics rather than silently producing garbage.
func (m Money) Add(other Money) Money {
	if m.Currency != "" && other.Currency != "" && m.Currency != other.Currency {
		panic("money: currency mismatch " + m.Currency + " vs " + other.Currency)
	}
	cur := m.Currency
	if cur == "" {
		cur = other.Currency
	}
	return Money{Amount: m.Amount + other.Amount, Currency: cur}
}

// Mul returns m multiplied by an integer quantity.
func (m Money) Mul(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

// Percent returns pct% of m, rounded half-up at minor-unit precision.
func (m Money) Percent(pct int64) Money {
	return Money{Amount: (m.Amount*pct + 50) / 100, Currency: m.Currency}
}

// IsZero reports whether the amount is zero (currency ignored).
func (m Money) IsZero() bool { return m.Amount == 0 }

func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.Amount/100, m.Amount%100, m.Currency)
}
