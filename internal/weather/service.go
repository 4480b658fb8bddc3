package weather

import (
	"context"
	"fmt"
	"log/slog"
)

// Service resolves a location name into current weather. It checks the
// coordinate cache first, geocodes on a miss and then fetches conditions.
// Provider errors are returned unchanged.
type Service struct {
	cache    CoordinatesCache
	resolver CoordinatesResolver
	fetcher  Fetcher
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(cache CoordinatesCache, resolver CoordinatesResolver, fetcher Fetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:    cache,
		resolver: resolver,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// GetWeather returns current conditions for locationName.
//
// A blank name fails with ErrInvalidArgument before any I/O. The returned
// Result carries the coordinates used for the fetch request.
func (s *Service) GetWeather(ctx context.Context, locationName string) (Result, error) {
	if err := ValidateLocationName(locationName); err != nil {
		return Result{}, err
	}

	coords, found, err := s.cache.Get(ctx, locationName)
	if err != nil {
		return Result{}, fmt.Errorf("read coordinates cache: %w", err)
	}

	if !found {
		s.logger.Debug("coordinates cache miss", "location", locationName)

		coords, err = s.resolver.ResolveCoordinates(ctx, locationName)
		if err != nil {
			return Result{}, err
		}

		if err := s.cache.Put(ctx, locationName, coords); err != nil {
			return Result{}, fmt.Errorf("write coordinates cache: %w", err)
		}
	}

	res, err := s.fetcher.FetchWeather(ctx, coords)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Coordinates: coords,
		Observation: res.Observation,
	}, nil
}
