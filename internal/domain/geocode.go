package domain

import (
	"context"
	"time"
)

// Coordinates is a geocoded latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves a postal address to coordinates.
// It is a pure query: calling it produces no side effect and no cleanup
// obligation, so callers may retry freely.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// GeocodeCache caches successful geocoding results by address.
type GeocodeCache interface {
	Get(ctx context.Context, address string) (*Coordinates, error)
	Set(ctx context.Context, address string, coords Coordinates, ttl time.Duration) error
}
