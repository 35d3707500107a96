package stats

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/MetricCode/yetueats-orders/internal/modules/order"
	"github.com/MetricCode/yetueats-orders/internal/types"
)

func kes(amount int64) types.Money {
	return types.Money{Amount: amount, Currency: "KES"}
}

// now is a Wednesday so day, week and month boundaries all differ.
var now = time.Date(2026, 8, 19, 15, 30, 0, 0, time.UTC)

func delivered(createdAt time.Time, total int64, rating float64, items ...order.LineItem) *order.Order {
	return &order.Order{
		Status:        order.StatusDelivered,
		PaymentStatus: order.PaymentPaid,
		Pricing:       order.Pricing{Total: kes(total)},
		Rating:        rating,
		CreatedAt:     createdAt,
		Items:         items,
	}
}

func TestWindowsAt(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want Windows
	}{
		{
			name: "midweek",
			now:  time.Date(2026, 8, 19, 15, 30, 0, 0, time.UTC), // Wednesday
			want: Windows{
				Today: time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC),
				Week:  time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC), // Monday
				Month: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "sunday belongs to the week started last monday",
			now:  time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC), // Sunday
			want: Windows{
				Today: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC),
				Week:  time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
				Month: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "monday starts its own week",
			now:  time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
			want: Windows{
				Today: time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
				Week:  time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC),
				Month: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "first of month",
			now:  time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC), // Tuesday
			want: Windows{
				Today: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
				Week:  time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), // week crosses the month boundary
				Month: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WindowsAt(tt.now); got != tt.want {
				t.Errorf("WindowsAt() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAggregate_Buckets(t *testing.T) {
	orders := []*order.Order{
		// Today: one delivered+paid, one cancelled.
		delivered(now.Add(-2*time.Hour), 3000, 5),
		{Status: order.StatusCancelled, CreatedAt: now.Add(-time.Hour), Pricing: order.Pricing{Total: kes(1000)}},
		// Earlier this week, still this month.
		delivered(now.AddDate(0, 0, -2), 2000, 4),
		// Earlier this month only.
		delivered(now.AddDate(0, 0, -10), 1000, 0),
		// Last month: all-time only.
		delivered(now.AddDate(0, -1, 0), 5000, 3),
		// In-flight order counts toward volume, never revenue.
		{Status: order.StatusPreparing, CreatedAt: now.Add(-30 * time.Minute), Pricing: order.Pricing{Total: kes(700)}},
	}

	s := Aggregate(orders, now)

	if s.Today.Orders != 3 || s.Today.Delivered != 1 || s.Today.Cancelled != 1 {
		t.Errorf("today = %+v", s.Today)
	}
	if s.Today.Revenue != kes(3000) {
		t.Errorf("today revenue = %v", s.Today.Revenue)
	}
	if s.ThisWeek.Delivered != 2 || s.ThisWeek.Revenue != kes(5000) {
		t.Errorf("week = %+v", s.ThisWeek)
	}
	if s.ThisMonth.Delivered != 3 || s.ThisMonth.Revenue != kes(6000) {
		t.Errorf("month = %+v", s.ThisMonth)
	}
	if s.AllTime.Orders != 6 || s.AllTime.Delivered != 4 || s.AllTime.Revenue != kes(11000) {
		t.Errorf("all time = %+v", s.AllTime)
	}

	if s.AllTime.CompletionRate != float64(4)/6 {
		t.Errorf("completion rate = %v", s.AllTime.CompletionRate)
	}
	if s.AllTime.AvgOrderValue != kes(2750) {
		t.Errorf("avg order value = %v", s.AllTime.AvgOrderValue)
	}
	if want := (5.0 + 4 + 3) / 3; s.AllTime.AvgRating != want {
		t.Errorf("avg rating = %v, want %v (unrated orders excluded)", s.AllTime.AvgRating, want)
	}
}

func TestAggregate_UnpaidDeliveryExcludedFromRevenue(t *testing.T) {
	o := delivered(now, 2500, 0)
	o.PaymentStatus = order.PaymentPending

	s := Aggregate([]*order.Order{o}, now)
	if !s.AllTime.Revenue.IsZero() {
		t.Errorf("revenue = %v, want zero for unpaid delivery", s.AllTime.Revenue)
	}
	if s.AllTime.Delivered != 1 {
		t.Errorf("delivered = %d, the count still includes it", s.AllTime.Delivered)
	}
}

func TestAggregate_EmptyInputHasNoNaNs(t *testing.T) {
	s := Aggregate(nil, now)

	for name, b := range map[string]Bucket{
		"today": s.Today, "week": s.ThisWeek, "month": s.ThisMonth, "allTime": s.AllTime,
	} {
		if math.IsNaN(b.CompletionRate) || math.IsNaN(b.AvgRating) {
			t.Errorf("%s bucket produced NaN: %+v", name, b)
		}
		if b.CompletionRate != 0 || b.AvgRating != 0 {
			t.Errorf("%s bucket not zero-valued: %+v", name, b)
		}
	}
	if len(s.PopularItems) != 0 {
		t.Errorf("popular items = %v, want empty", s.PopularItems)
	}
}

func TestAggregate_PopularItems(t *testing.T) {
	orders := []*order.Order{
		delivered(now, 1000, 0,
			order.LineItem{Name: "Chapati", Quantity: 4},
			order.LineItem{Name: "Beef Stew", Quantity: 2},
		),
		delivered(now, 1000, 0,
			order.LineItem{Name: "Chapati", Quantity: 1},
			order.LineItem{Name: "Avocado Shake", Quantity: 2},
		),
		// Cancelled orders never contribute to popularity.
		{
			Status:    order.StatusCancelled,
			CreatedAt: now,
			Items:     []order.LineItem{{Name: "Chapati", Quantity: 50}},
		},
	}

	s := Aggregate(orders, now)
	want := []ItemCount{
		{Name: "Chapati", Quantity: 5},
		{Name: "Avocado Shake", Quantity: 2}, // quantity tie resolves alphabetically
		{Name: "Beef Stew", Quantity: 2},
	}
	if !reflect.DeepEqual(s.PopularItems, want) {
		t.Errorf("popular items = %v, want %v", s.PopularItems, want)
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	orders := []*order.Order{
		delivered(now, 900, 4, order.LineItem{Name: "A", Quantity: 1}, order.LineItem{Name: "B", Quantity: 1}),
		delivered(now, 1100, 5, order.LineItem{Name: "C", Quantity: 1}, order.LineItem{Name: "D", Quantity: 1}),
	}

	first := Aggregate(orders, now)
	for i := 0; i < 20; i++ {
		if got := Aggregate(orders, now); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differed: %+v vs %+v", i, got, first)
		}
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	o := delivered(now, 1000, 5, order.LineItem{Name: "Chai", Quantity: 1})
	before := *o

	Aggregate([]*order.Order{o}, now)

	if o.Rating != before.Rating || o.Pricing != before.Pricing || o.Status != before.Status {
		t.Error("input order mutated")
	}
}
