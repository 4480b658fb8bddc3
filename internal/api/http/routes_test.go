package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

type fakeService struct {
	mu    sync.Mutex
	calls []string
	res   weather.Result
	err   error
}

func (f *fakeService) GetWeather(_ context.Context, name string) (weather.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.res, f.err
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestApp(svc WeatherService, users UserLocations, cacheTTL time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, svc, users, Options{ResponseCacheTTL: cacheTTL})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decodeProblem(t *testing.T, resp *http.Response, body []byte) Problem {
	t.Helper()
	assert.Equal(t, problemContentType, resp.Header.Get(fiber.HeaderContentType))
	var p Problem
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

var parisResult = weather.Result{
	Coordinates: weather.Coordinates{Latitude: 48.8566, Longitude: 2.3522},
	Observation: weather.Observation{
		TemperatureCelsius: 17.5,
		HumidityPercent:    81,
		WindSpeedKph:       18,
		Description:        "broken clouds",
		IconURL:            "https://openweathermap.org/img/wn/04d@2x.png",
	},
}

func TestGetWeather_Success(t *testing.T) {
	svc := &fakeService{res: parisResult}
	app := newTestApp(svc, store.NewUserStore(), 0)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/weather?locationName=Paris", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.JSONEq(t, `{
		"location": "Paris",
		"latitude": 48.8566,
		"longitude": 2.3522,
		"weather": {
			"temperatureCelsius": 17.5,
			"humidityPercent": 81,
			"windSpeedKph": 18,
			"iconUrl": "https://openweathermap.org/img/wn/04d@2x.png",
			"description": "broken clouds"
		}
	}`, string(body))
	assert.Equal(t, []string{"Paris"}, svc.calls)
}

func TestGetWeather_MissingLocationName(t *testing.T) {
	svc := &fakeService{res: parisResult}
	app := newTestApp(svc, store.NewUserStore(), 0)

	for _, target := range []string{"/api/weather", "/api/weather?locationName=", "/api/weather?locationName=%20%20"} {
		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, target)

		p := decodeProblem(t, resp, body)
		assert.Equal(t, "Invalid request", p.Title)
		assert.Equal(t, http.StatusBadRequest, p.Status)
	}
	assert.Zero(t, svc.callCount())
}

func TestGetWeather_ProviderFailureMapping(t *testing.T) {
	tests := []struct {
		kind   providers.Kind
		status int
		title  string
		detail string
	}{
		{providers.KindInvalidRequest, 400, "Invalid request", "The request contained invalid parameters"},
		{providers.KindAuthFailure, 503, "Service unavailable", "Service is currently unavailable"},
		{providers.KindNotFound, 404, "Resource not found", "The resource could not be found"},
		{providers.KindRateLimitedOrServerError, 502, "Invalid provider response", "Received an unexpected response from the weather provider"},
		{providers.KindMalformedResponse, 502, "Invalid provider response", "Received an unexpected response from the weather provider"},
		{providers.KindUnexpectedResponse, 502, "Invalid provider response", "Received an unexpected response from the weather provider"},
		{providers.KindTimeout, 504, "Provider timeout", "The weather provider did not respond in time"},
		{providers.KindTransport, 500, "Unexpected error", "An unexpected error occurred while processing the weather request"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			svc := &fakeService{err: &providers.Error{Kind: tt.kind, Message: "vendor said api key abc123 is bad"}}
			app := newTestApp(svc, store.NewUserStore(), 0)

			resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/weather?locationName=Paris", nil))
			require.Equal(t, tt.status, resp.StatusCode)

			p := decodeProblem(t, resp, body)
			assert.Equal(t, Problem{
				Type:   "https://httpstatuses.com/" + strconv.Itoa(tt.status),
				Title:  tt.title,
				Status: tt.status,
				Detail: tt.detail,
			}, p)
			assert.NotContains(t, string(body), "abc123")
		})
	}
}

func TestGetWeather_InvalidArgumentMapsTo400(t *testing.T) {
	svc := &fakeService{err: weather.ErrInvalidArgument}
	app := newTestApp(svc, store.NewUserStore(), 0)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/weather?locationName=Paris", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWeather_UnexpectedErrorHidesDetail(t *testing.T) {
	svc := &fakeService{err: errors.New("read coordinates cache: disk on fire")}
	app := newTestApp(svc, store.NewUserStore(), 0)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/weather?locationName=Paris", nil))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	p := decodeProblem(t, resp, body)
	assert.Equal(t, "Unexpected error", p.Title)
	assert.Equal(t, "An unexpected error occurred while processing your request.", p.Detail)
	assert.NotContains(t, string(body), "disk on fire")
}

func TestGetWeather_ResponseCache(t *testing.T) {
	svc := &fakeService{res: parisResult}
	app := newTestApp(svc, store.NewUserStore(), time.Minute)

	for i := 0; i < 3; i++ {
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/weather?locationName=Paris", nil))
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 1, svc.callCount(), "repeat lookups are served from the response cache")

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/weather?locationName=Berlin", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, svc.callCount(), "cache varies by location name")
}

func TestGetWeather_ProviderErrorsAreNotCached(t *testing.T) {
	svc := &fakeService{err: &providers.Error{Kind: providers.KindTimeout, Message: "timed out"}}
	app := newTestApp(svc, store.NewUserStore(), time.Minute)

	for i := 0; i < 2; i++ {
		resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/weather?locationName=Paris", nil))
		require.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
	}
	assert.Equal(t, 2, svc.callCount())
}

func TestUserLocation_RoundTrip(t *testing.T) {
	app := newTestApp(&fakeService{}, store.NewUserStore(), 0)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/user/location?userId=user1", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"locationName": null}`, string(body))

	req := httptest.NewRequest(http.MethodPost, "/api/user/location?userId=user1", strings.NewReader(`{"locationName":"London"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, _ = do(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/user/location?userId=user1", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"locationName": "London"}`, string(body))
}

func TestUserLocation_Validation(t *testing.T) {
	app := newTestApp(&fakeService{}, store.NewUserStore(), 0)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/user/location", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	for _, tc := range []struct {
		target string
		body   string
	}{
		{"/api/user/location", `{"locationName":"London"}`},
		{"/api/user/location?userId=user1", `{"locationName":""}`},
		{"/api/user/location?userId=user1", `{"locationName":"   "}`},
		{"/api/user/location?userId=user1", `{not json`},
	} {
		req := httptest.NewRequest(http.MethodPost, tc.target, strings.NewReader(tc.body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, _ := do(t, app, req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s", tc.target, tc.body)
	}
}

func TestCreateUser(t *testing.T) {
	app := newTestApp(&fakeService{}, store.NewUserStore(), 0)

	resp, body := do(t, app, httptest.NewRequest(http.MethodPost, "/api/user", nil))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got userResponse
	require.NoError(t, json.Unmarshal(body, &got))
	_, err := uuid.Parse(got.UserID)
	assert.NoError(t, err)
}

func TestUnknownRouteIsProblem(t *testing.T) {
	app := newTestApp(&fakeService{}, store.NewUserStore(), 0)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	p := decodeProblem(t, resp, body)
	assert.Equal(t, "Resource not found", p.Title)
}
