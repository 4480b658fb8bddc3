package weather

import (
	"context"
)

// CoordinatesResolver turns a free-text location name into coordinates (e.g. OpenWeatherMap geocoding).
type CoordinatesResolver interface {
	ResolveCoordinates(ctx context.Context, locationName string) (Coordinates, error)
}

// Fetcher retrieves current conditions for a coordinate pair. The returned
// Result carries the coordinates as echoed back by the vendor.
type Fetcher interface {
	FetchWeather(ctx context.Context, coords Coordinates) (Result, error)
}

// CoordinatesCache is the contract the coordinate cache must satisfy.
// Keys are matched exactly; callers are responsible for passing a consistent key.
type CoordinatesCache interface {
	Get(ctx context.Context, locationName string) (Coordinates, bool, error)
	Put(ctx context.Context, locationName string, coords Coordinates) error
}
