package tracking

import (
	"math"
	"testing"

	"github.com/MetricCode/yetueats-orders/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: -1.2864, lng1: 36.8172,
			lat2: -1.2864, lng2: 36.8172,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "Nairobi CBD to Westlands (~3.5km)",
			lat1: -1.2864, lng1: 36.8172,
			lat2: -1.2647, lng2: 36.8028,
			wantKm:    3,
			tolerance: 1.0,
		},
		{
			name: "Nairobi to Mombasa (~440km)",
			lat1: -1.2864, lng1: 36.8172,
			lat2: -4.0435, lng2: 39.6682,
			wantKm:    440,
			tolerance: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := haversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("haversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := haversineKm(-1.28, 36.82, -1.30, 36.90)
	d2 := haversineKm(-1.30, 36.90, -1.28, 36.82)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestSortByDistance(t *testing.T) {
	couriers := []CourierLocation{
		{CourierID: types.ID("c"), Distance: 5.0},
		{CourierID: types.ID("a"), Distance: 1.0},
		{CourierID: types.ID("b"), Distance: 3.0},
	}

	sortByDistance(couriers, func(c CourierLocation) float64 { return c.Distance })

	if couriers[0].CourierID != "a" || couriers[1].CourierID != "b" || couriers[2].CourierID != "c" {
		t.Errorf("unexpected sort order: %v", couriers)
	}
}

func TestSortByDistance_EmptyAndSingle(t *testing.T) {
	var none []CourierLocation
	sortByDistance(none, func(c CourierLocation) float64 { return c.Distance })

	one := []CourierLocation{{CourierID: types.ID("a"), Distance: 2.0}}
	sortByDistance(one, func(c CourierLocation) float64 { return c.Distance })
	if one[0].CourierID != "a" {
		t.Errorf("single element sort failed")
	}
}
