// README: Pure statistics aggregator folding order history into dashboards.
package stats

import (
	"sort"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Bucket is one time window's worth of derived metrics.
type Bucket struct {
	Orders         int         `json:"orders"`
	Delivered      int         `json:"delivered"`
	Cancelled      int         `json:"cancelled"`
	Revenue        types.Money `json:"revenue"`
	CompletionRate float64     `json:"completionRate"`
	AvgOrderValue  types.Money `json:"avgOrderValue"`
	AvgRating      float64     `json:"avgRating"`

	// ratingCount carries rating accumulation between fold and finalize.
	ratingCount int
}

// ItemCount is one entry of the popular-items tally.
type ItemCount struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Stats is the aggregate dashboard for one actor.
type Stats struct {
	Today        Bucket      `json:"today"`
	ThisWeek     Bucket      `json:"thisWeek"`
	ThisMonth    Bucket      `json:"thisMonth"`
	AllTime      Bucket      `json:"allTime"`
	PopularItems []ItemCount `json:"popularItems"`
}

// Windows holds the bucket start boundaries derived from a reference time.
type Windows struct {
	Today time.Time
	Week  time.Time
	Month time.Time
}

// WindowsAt computes calendar boundaries in now's location: start of day,
// start of ISO week (Monday) and first of month.
func WindowsAt(now time.Time) Windows {
	y, m, d := now.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	weekday := int(now.Weekday())
	if weekday == 0 { // Sunday belongs to the week that started last Monday
		weekday = 7
	}
	week := day.AddDate(0, 0, -(weekday - 1))
	month := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	return Windows{Today: day, Week: week, Month: month}
}

// Aggregate folds a bounded order history into windowed metrics. It is pure:
// the input is never mutated, the same orders and now always produce
// identical output, including the popular-items ordering, and it is safe to
// run concurrently for different actors.
func Aggregate(orders []*order.Order, now time.Time) Stats {
	w := WindowsAt(now)
	var s Stats
	popularity := make(map[string]int)

	for _, o := range orders {
		fold(&s.AllTime, o)
		if !o.CreatedAt.Before(w.Month) {
			fold(&s.ThisMonth, o)
		}
		if !o.CreatedAt.Before(w.Week) {
			fold(&s.ThisWeek, o)
		}
		if !o.CreatedAt.Before(w.Today) {
			fold(&s.Today, o)
		}

		if o.Status == order.StatusDelivered {
			for _, it := range o.Items {
				popularity[it.Name] += it.Quantity
			}
		}
	}

	finalize(&s.Today)
	finalize(&s.ThisWeek)
	finalize(&s.ThisMonth)
	finalize(&s.AllTime)

	s.PopularItems = make([]ItemCount, 0, len(popularity))
	for name, qty := range popularity {
		s.PopularItems = append(s.PopularItems, ItemCount{Name: name, Quantity: qty})
	}
	// Quantity descending, name ascending on ties: map iteration order must
	// never leak into the output.
	sort.Slice(s.PopularItems, func(i, j int) bool {
		if s.PopularItems[i].Quantity == s.PopularItems[j].Quantity {
			return s.PopularItems[i].Name < s.PopularItems[j].Name
		}
		return s.PopularItems[i].Quantity > s.PopularItems[j].Quantity
	})

	return s
}

func fold(b *Bucket, o *order.Order) {
	b.Orders++
	switch o.Status {
	case order.StatusDelivered:
		b.Delivered++
		if o.PaymentStatus == order.PaymentPaid {
			b.Revenue = b.Revenue.Add(o.Pricing.Total)
		}
		if o.Rating > 0 {
			// AvgRating is accumulated in-place and divided in finalize.
			b.AvgRating += o.Rating
			b.ratingCount++
		}
	case order.StatusCancelled:
		b.Cancelled++
	}
}

func finalize(b *Bucket) {
	if b.Orders > 0 {
		b.CompletionRate = float64(b.Delivered) / float64(b.Orders)
	}
	if b.Delivered > 0 {
		b.AvgOrderValue = types.Money{
			Amount:   b.Revenue.Amount / int64(b.Delivered),
			Currency: b.Revenue.Currency,
		}
	}
	if b.ratingCount > 0 {
		b.AvgRating /= float64(b.ratingCount)
	}
}
