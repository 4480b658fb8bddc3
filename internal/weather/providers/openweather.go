package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	// DefaultBaseURL is the public OpenWeatherMap API root.
	DefaultBaseURL = "https://api.openweathermap.org"
	// DefaultTimeout bounds a single attempt, not the retried exchange.
	DefaultTimeout = 10 * time.Second

	geocodingPath = "/geo/1.0/direct"
	weatherPath   = "/data/2.5/weather"

	iconURLTemplate = "https://openweathermap.org/img/wn/%s@2x.png"

	endpointGeocoding = "geocoding"
	endpointWeather   = "weather"

	breakerName = "openweathermap"

	maxBodyBytes = 1 << 20
)

// OpenWeatherConfig configures the OpenWeatherMap client.
type OpenWeatherConfig struct {
	BaseURL string
	APIKey  string
	Retry   RetryPolicy
	Breaker BreakerConfig
}

// OpenWeatherClient resolves location names with the OpenWeatherMap
// geocoding API and fetches current conditions from the weather API.
type OpenWeatherClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	retry   RetryPolicy
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *observability.Metrics
}

var (
	_ weather.CoordinatesResolver = (*OpenWeatherClient)(nil)
	_ weather.Fetcher             = (*OpenWeatherClient)(nil)
)

// NewOpenWeatherClient validates cfg and builds a client. A missing API key is
// reported as a KindAuthFailure error. httpClient may be nil, in which case a
// client with DefaultTimeout is used. logger and metrics may be nil.
func NewOpenWeatherClient(cfg OpenWeatherConfig, httpClient *http.Client, logger *slog.Logger, metrics *observability.Metrics) (*OpenWeatherClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, newError(KindAuthFailure, "OpenWeatherMap API key is not configured", nil)
	}

	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid OpenWeatherMap base url %q", raw)
	}

	if cfg.Retry.MaxRetries < 0 || (cfg.Retry.MaxRetries > 0 && cfg.Retry.BaseDelay <= 0) {
		return nil, errInvalidConfig
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("provider", breakerName)

	c := &OpenWeatherClient{
		baseURL: base,
		apiKey:  cfg.APIKey,
		client:  httpClient,
		retry:   cfg.Retry,
		logger:  logger,
		metrics: metrics,
	}
	c.circuit = newBreaker(breakerName, cfg.Breaker, c.onBreakerStateChange)
	if c.circuit != nil && metrics != nil {
		metrics.BreakerState.WithLabelValues(breakerName).Set(0)
	}
	return c, nil
}

type geocodingCandidate struct {
	Name    string   `json:"name"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

type currentWeatherPayload struct {
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

// ResolveCoordinates returns the vendor's best match for locationName.
func (c *OpenWeatherClient) ResolveCoordinates(ctx context.Context, locationName string) (coords weather.Coordinates, err error) {
	if strings.TrimSpace(locationName) == "" {
		return weather.Coordinates{}, newError(KindInvalidRequest, "location name must be provided", nil)
	}
	defer c.observe(endpointGeocoding, time.Now(), &err)

	values := url.Values{}
	values.Set("q", locationName)
	values.Set("limit", "1")

	body, err := c.get(ctx, endpointGeocoding, geocodingPath, values, fmt.Sprintf("location %q not found", locationName))
	if err != nil {
		return weather.Coordinates{}, err
	}

	var candidates []geocodingCandidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return weather.Coordinates{}, newError(KindMalformedResponse, "failed to parse OpenWeatherMap geocoding response", err)
	}
	if len(candidates) == 0 {
		return weather.Coordinates{}, newError(KindNotFound, fmt.Sprintf("location %q not found", locationName), nil)
	}

	// the vendor ranks matches; only the first is considered
	best := candidates[0]
	if best.Lat == nil || best.Lon == nil {
		return weather.Coordinates{}, newError(KindMalformedResponse, "geocoding result is missing lat/lon", nil)
	}
	coords = weather.Coordinates{Latitude: *best.Lat, Longitude: *best.Lon}
	if vErr := coords.Validate(); vErr != nil {
		return weather.Coordinates{}, newError(KindMalformedResponse, "geocoding result is out of range", vErr)
	}
	return coords, nil
}

// FetchWeather returns current conditions at coords. Out of range
// coordinates fail with KindInvalidRequest before any network call.
func (c *OpenWeatherClient) FetchWeather(ctx context.Context, coords weather.Coordinates) (res weather.Result, err error) {
	if vErr := coords.Validate(); vErr != nil {
		return weather.Result{}, newError(KindInvalidRequest, "invalid coordinates", vErr)
	}
	defer c.observe(endpointWeather, time.Now(), &err)

	values := url.Values{}
	values.Set("lat", formatDegrees(coords.Latitude))
	values.Set("lon", formatDegrees(coords.Longitude))
	values.Set("units", "metric")
	values.Set("exclude", "minutely,hourly,daily,alerts")

	body, err := c.get(ctx, endpointWeather, weatherPath, values, "no weather data for the requested coordinates")
	if err != nil {
		return weather.Result{}, err
	}

	var payload currentWeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Result{}, newError(KindMalformedResponse, "failed to parse OpenWeatherMap weather response", err)
	}
	if payload.Main == nil {
		return weather.Result{}, newError(KindMalformedResponse, "weather response is missing the main block", nil)
	}
	if payload.Wind == nil {
		return weather.Result{}, newError(KindMalformedResponse, "weather response is missing the wind block", nil)
	}

	if h := payload.Main.Humidity; h < 0 || h > 100 {
		return weather.Result{}, newError(KindMalformedResponse, fmt.Sprintf("weather response humidity %v is outside 0-100", h), nil)
	}
	if payload.Wind.Speed < 0 {
		return weather.Result{}, newError(KindMalformedResponse, fmt.Sprintf("weather response wind speed %v is negative", payload.Wind.Speed), nil)
	}

	echoed := coords
	if payload.Coord != nil {
		echoed = weather.Coordinates{Latitude: payload.Coord.Lat, Longitude: payload.Coord.Lon}
	}

	obs := weather.Observation{
		TemperatureCelsius: payload.Main.Temp,
		HumidityPercent:    int(math.Round(payload.Main.Humidity)),
		// units=metric reports m/s
		WindSpeedKph: payload.Wind.Speed * 3.6,
	}
	if len(payload.Weather) > 0 {
		obs.Description = payload.Weather[0].Description
		obs.IconURL = iconURL(payload.Weather[0].Icon)
	}

	return weather.Result{Coordinates: echoed, Observation: obs}, nil
}

// iconURL maps a vendor icon code onto its image URL. An empty code yields "".
func iconURL(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return fmt.Sprintf(iconURLTemplate, url.PathEscape(code))
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// get performs the retried GET and returns the body of a 2xx response.
// Any other status is classified; notFound is the message used for 404.
func (c *OpenWeatherClient) get(ctx context.Context, endpoint, path string, values url.Values, notFound string) ([]byte, error) {
	values.Set("appid", c.apiKey)
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = values.Encode()
	target := u.String()

	policy := c.retry
	policy.OnRetry = func(attempt int, delay time.Duration, reason string) {
		c.logger.WarnContext(ctx, "retrying OpenWeatherMap request",
			"endpoint", endpoint,
			"attempt", attempt,
			"delay", delay,
			"reason", reason,
		)
		if c.metrics != nil {
			c.metrics.VendorRetries.WithLabelValues(endpoint).Inc()
		}
		if c.retry.OnRetry != nil {
			c.retry.OnRetry(attempt, delay, reason)
		}
	}

	resp, err := executeWithBreaker(ctx, c.circuit, func() (*http.Response, error) {
		return doRequestWithRetry(ctx, policy, func(ctx context.Context) (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			resp, err := c.client.Do(req)
			var uErr *url.Error
			if errors.As(err, &uErr) {
				uErr.URL = redact(uErr.URL, c.apiKey)
			}
			return resp, err
		})
	})
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, classifyStatus(resp.StatusCode, notFound)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyTransportError(ctx, err)
	}
	return body, nil
}

// classifyTransportError turns an error from the retried exchange into a
// provider failure. Caller cancellation is returned unwrapped.
func classifyTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, "OpenWeatherMap request timed out", err)
	}
	return newError(KindTransport, "OpenWeatherMap request failed", err)
}

func (c *OpenWeatherClient) observe(endpoint string, start time.Time, errp *error) {
	if c.metrics == nil {
		return
	}
	c.metrics.VendorRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	c.metrics.VendorRequests.WithLabelValues(endpoint, outcome(*errp)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind, ok := KindOf(err); ok {
		return kind.String()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "error"
}

func (c *OpenWeatherClient) onBreakerStateChange(name string, from, to gobreaker.State) {
	c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	if c.metrics == nil {
		return
	}
	var v float64
	switch to {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	c.metrics.BreakerState.WithLabelValues(name).Set(v)
}

// redact strips the API key from a request URL before it reaches error text.
func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(secret), "REDACTED")
	return strings.ReplaceAll(s, secret, "REDACTED")
}
