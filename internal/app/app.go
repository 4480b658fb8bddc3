// Package app wires configuration into the weather service so the server
// and the CLI build the same stack.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

// NewWeatherService builds the OpenWeatherMap client, the coordinate cache and
// the service on top of them. metrics may be nil.
func NewWeatherService(cfg *config.AppConfig, logger *slog.Logger, metrics *observability.Metrics) (*weather.Service, error) {
	httpClient := &http.Client{Timeout: cfg.OpenWeatherTimeout}

	client, err := providers.NewOpenWeatherClient(providers.OpenWeatherConfig{
		BaseURL: cfg.OpenWeatherBaseURL,
		APIKey:  cfg.OpenWeatherAPIKey,
		Retry: providers.RetryPolicy{
			MaxRetries: cfg.RetryMax,
			BaseDelay:  cfg.RetryBaseDelay,
			Clock:      clockwork.NewRealClock(),
		},
		Breaker: providers.BreakerConfig{
			Enabled:             cfg.BreakerEnabled,
			ConsecutiveFailures: cfg.BreakerFailures,
			OpenTimeout:         cfg.BreakerOpenTimeout,
		},
	}, httpClient, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("create OpenWeatherMap client: %w", err)
	}

	cache := store.NewCoordinatesCache(cfg.CoordinatesCacheTTL, metrics)
	return weather.NewService(cache, client, client, logger), nil
}
