// README: Courier live-location tracking over Firebase RTDB.
package tracking

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/db"

	"github.com/MetricCode/yetueats-orders/internal/types"
)

// Courier availability states written alongside the position.
const (
	StatusOnline     = "online"
	StatusDelivering = "delivering"
	StatusOffline    = "offline"
)

// Position is one courier location fix.
type Position struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Status string  `json:"status"`
}

// CourierLocation is a position with the distance from a queried origin.
type CourierLocation struct {
	CourierID types.ID  `json:"courierId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Status    string    `json:"status"`
	Distance  float64   `json:"distanceKm"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// rtdbEntry mirrors one courier entry under the /courier_locations node. The
// courier apps listen to these refs directly for live map updates; this
// service is the write path and the server-side query path.
type rtdbEntry struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Status    string  `json:"status"`
	Timestamp int64   `json:"timestamp"`
}

const couriersNode = "courier_locations"

// Tracker reads and writes courier positions in Firebase RTDB.
type Tracker struct {
	db *db.Client
}

func NewTracker(client *db.Client) *Tracker {
	return &Tracker{db: client}
}

// Update stores the courier's latest position, overwriting the previous fix.
func (t *Tracker) Update(ctx context.Context, courierID types.ID, p Position) error {
	if p.Status == "" {
		p.Status = StatusOnline
	}
	ref := t.db.NewRef(couriersNode).Child(string(courierID))
	entry := rtdbEntry{
		Lat:       p.Lat,
		Lng:       p.Lng,
		Status:    p.Status,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := ref.Set(ctx, entry); err != nil {
		return fmt.Errorf("writing location for courier %s: %w", courierID, err)
	}
	return nil
}

// Get returns a single courier's last known position.
func (t *Tracker) Get(ctx context.Context, courierID types.ID) (CourierLocation, error) {
	ref := t.db.NewRef(couriersNode).Child(string(courierID))
	var entry rtdbEntry
	if err := ref.Get(ctx, &entry); err != nil {
		return CourierLocation{}, fmt.Errorf("reading location for courier %s: %w", courierID, err)
	}
	if entry.Timestamp == 0 {
		return CourierLocation{}, fmt.Errorf("no location recorded for courier %s", courierID)
	}
	return CourierLocation{
		CourierID: courierID,
		Lat:       entry.Lat,
		Lng:       entry.Lng,
		Status:    entry.Status,
		UpdatedAt: time.UnixMilli(entry.Timestamp),
	}, nil
}

// Nearby returns online couriers within radiusKm of the origin, closest
// first. Used by restaurant dashboards to judge pickup coverage.
func (t *Tracker) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]CourierLocation, error) {
	ref := t.db.NewRef(couriersNode)

	var data map[string]rtdbEntry
	if err := ref.OrderByChild("status").EqualTo(StatusOnline).Get(ctx, &data); err != nil {
		return nil, fmt.Errorf("querying online couriers: %w", err)
	}

	var result []CourierLocation
	for courierID, entry := range data {
		dist := haversineKm(lat, lng, entry.Lat, entry.Lng)
		if dist <= radiusKm {
			result = append(result, CourierLocation{
				CourierID: types.ID(courierID),
				Lat:       entry.Lat,
				Lng:       entry.Lng,
				Status:    entry.Status,
				Distance:  dist,
				UpdatedAt: time.UnixMilli(entry.Timestamp),
			})
		}
	}

	sortByDistance(result, func(c CourierLocation) float64 { return c.Distance })
	return result, nil
}
