// README: Travel-ETA adapter over the Google Maps Directions API.
package maps

import (
	"context"
	"fmt"
	"time"

	"googlemaps.github.io/maps"
)

// ETAService estimates pickup travel time for couriers. Distance and ETA are
// supplied by this external service; the order subsystem only decorates
// responses with the result and works fine without it.
type ETAService struct {
	client *maps.Client
}

func NewETAService(apiKey string) (*ETAService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating maps client: %w", err)
	}
	return &ETAService{client: client}, nil
}

// Estimate is the ETA for one leg, formatted for display.
type Estimate struct {
	Duration time.Duration `json:"duration"`
	Distance string        `json:"distance"`
}

// PickupEstimate returns driving duration and human-readable distance from
// origin to destination (free-text addresses, matching the order's delivery
// address fields).
func (s *ETAService) PickupEstimate(ctx context.Context, origin, destination string) (Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      origin,
		Destination: destination,
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	return Estimate{Duration: leg.Duration, Distance: leg.Distance.HumanReadable}, nil
}
