package weather

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument is returned when a local precondition fails before any I/O,
	// e.g. an empty location name.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidLatitude is wrapped by Validate when the latitude is NaN or outside [-90, 90].
	ErrInvalidLatitude = errors.New("latitude must be between -90 and 90")
	// ErrInvalidLongitude is wrapped by Validate when the longitude is NaN or outside [-180, 180].
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// Coordinates is a geographic position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that both components are within their geographic ranges.
// The comparisons are written so that NaN fails them.
func (c Coordinates) Validate() error {
	if !(c.Latitude >= -90 && c.Latitude <= 90) {
		return fmt.Errorf("%w: got %v", ErrInvalidLatitude, c.Latitude)
	}
	if !(c.Longitude >= -180 && c.Longitude <= 180) {
		return fmt.Errorf("%w: got %v", ErrInvalidLongitude, c.Longitude)
	}
	return nil
}

// Observation is a single current-conditions reading. It is produced fresh on
// every fetch and never cached.
type Observation struct {
	TemperatureCelsius float64 `json:"temperatureCelsius"`
	HumidityPercent    int     `json:"humidityPercent"`
	WindSpeedKph       float64 `json:"windSpeedKph"`

	// Description and IconURL are empty when the vendor sends no condition descriptor.
	Description string `json:"description,omitempty"`
	IconURL     string `json:"iconUrl,omitempty"`
}

// Result is what a successful weather lookup returns.
type Result struct {
	Coordinates Coordinates `json:"coordinates"`
	Observation Observation `json:"observation"`
}

// ValidateLocationName rejects empty and whitespace-only location names.
func ValidateLocationName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: location name must be provided", ErrInvalidArgument)
	}
	return nil
}
