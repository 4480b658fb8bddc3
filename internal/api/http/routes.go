package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cache"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"

	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

var validate = validator.New()

// WeatherService is the lookup the weather endpoint depends on.
type WeatherService interface {
	GetWeather(ctx context.Context, locationName string) (weather.Result, error)
}

// UserLocations stores each user's default location.
type UserLocations interface {
	SaveDefaultLocation(ctx context.Context, userID, locationName string) error
	DefaultLocation(ctx context.Context, userID string) (string, error)
}

// Options tunes route registration.
type Options struct {
	// ResponseCacheTTL caches weather responses per location name. 0 disables it.
	ResponseCacheTTL time.Duration
	Logger           *slog.Logger
}

type handler struct {
	service WeatherService
	users   UserLocations
	logger  *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherService, users UserLocations, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{service: service, users: users, logger: logger}

	api := app.Group("/api")

	weatherHandlers := []fiber.Handler{}
	if opts.ResponseCacheTTL > 0 {
		weatherHandlers = append(weatherHandlers, cache.New(cache.Config{
			Expiration:   opts.ResponseCacheTTL,
			CacheControl: true,
			// vary by location name only
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.Path() + "?locationName=" + c.Query("locationName")
			},
		}))
	}
	weatherHandlers = append(weatherHandlers, h.getWeather)
	api.Get("/weather", weatherHandlers...)

	api.Post("/user", h.createUser)
	api.Get("/user/location", h.getUserLocation)
	api.Post("/user/location", h.saveUserLocation)
}

type weatherQuery struct {
	LocationName string `validate:"required"`
}

type weatherResponse struct {
	Location  string          `json:"location"`
	Latitude  float64         `json:"latitude"`
	Longitude float64         `json:"longitude"`
	Weather   weatherSnapshot `json:"weather"`
}

type weatherSnapshot struct {
	TemperatureCelsius float64 `json:"temperatureCelsius"`
	HumidityPercent    int     `json:"humidityPercent"`
	WindSpeedKph       float64 `json:"windSpeedKph"`
	IconURL            string  `json:"iconUrl,omitempty"`
	Description        string  `json:"description,omitempty"`
}

func (h *handler) getWeather(c *fiber.Ctx) error {
	// fiber reuses request buffers and the name ends up as a cache key
	q := weatherQuery{LocationName: strings.TrimSpace(utils.CopyString(c.Query("locationName")))}
	if err := validate.Struct(q); err != nil {
		return writeProblem(c, problemInvalidRequest)
	}

	res, err := h.service.GetWeather(c.UserContext(), q.LocationName)
	if err != nil {
		h.logFailure(c.UserContext(), q.LocationName, err)
		return err
	}

	return c.JSON(weatherResponse{
		Location:  q.LocationName,
		Latitude:  res.Coordinates.Latitude,
		Longitude: res.Coordinates.Longitude,
		Weather: weatherSnapshot{
			TemperatureCelsius: res.Observation.TemperatureCelsius,
			HumidityPercent:    res.Observation.HumidityPercent,
			WindSpeedKph:       res.Observation.WindSpeedKph,
			IconURL:            res.Observation.IconURL,
			Description:        res.Observation.Description,
		},
	})
}

func (h *handler) logFailure(ctx context.Context, location string, err error) {
	if kind, ok := providers.KindOf(err); ok {
		h.logger.ErrorContext(ctx, "weather provider failure", "kind", kind.String(), "location", location)
		return
	}
	if errors.Is(err, weather.ErrInvalidArgument) {
		return
	}
	h.logger.ErrorContext(ctx, "weather lookup failed", "location", location, "error", err)
}

type userResponse struct {
	UserID string `json:"userId"`
}

func (h *handler) createUser(c *fiber.Ctx) error {
	return c.Status(fiber.StatusCreated).JSON(userResponse{UserID: uuid.NewString()})
}

type userQuery struct {
	UserID string `validate:"required"`
}

type userLocationResponse struct {
	LocationName *string `json:"locationName"`
}

type saveLocationRequest struct {
	LocationName string `json:"locationName" validate:"required"`
}

func parseUserQuery(c *fiber.Ctx) (userQuery, error) {
	q := userQuery{UserID: strings.TrimSpace(utils.CopyString(c.Query("userId")))}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func (h *handler) getUserLocation(c *fiber.Ctx) error {
	q, err := parseUserQuery(c)
	if err != nil {
		return writeProblem(c, problemInvalidRequest)
	}

	loc, err := h.users.DefaultLocation(c.UserContext(), q.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(userLocationResponse{})
	case err != nil:
		return err
	}
	return c.JSON(userLocationResponse{LocationName: &loc})
}

func (h *handler) saveUserLocation(c *fiber.Ctx) error {
	q, err := parseUserQuery(c)
	if err != nil {
		return writeProblem(c, problemInvalidRequest)
	}

	var body saveLocationRequest
	if err := c.BodyParser(&body); err != nil {
		return writeProblem(c, problemInvalidRequest)
	}
	body.LocationName = strings.TrimSpace(body.LocationName)
	if err := validate.Struct(body); err != nil {
		return writeProblem(c, problemInvalidRequest)
	}

	if err := h.users.SaveDefaultLocation(c.UserContext(), q.UserID, body.LocationName); err != nil {
		if errors.Is(err, store.ErrEmptyUserID) || errors.Is(err, store.ErrEmptyLocationName) {
			return writeProblem(c, problemInvalidRequest)
		}
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}
