package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by Load when OPENWEATHER_API_KEY is not set.
var ErrMissingAPIKey = errors.New("OPENWEATHER_API_KEY is required")

// AppConfig holds everything the server and CLI read from the environment.
type AppConfig struct {
	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	// OpenWeatherTimeout bounds a single outbound attempt.
	OpenWeatherTimeout time.Duration

	RetryMax       int
	RetryBaseDelay time.Duration

	BreakerEnabled     bool
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration

	CoordinatesCacheTTL time.Duration
	ResponseCacheTTL    time.Duration // 0 disables response caching

	CORSAllowOrigins string

	Port            string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, and from a .env file when
// one is present, applying defaults for everything but the API key.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &AppConfig{
		OpenWeatherAPIKey:  strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY")),
		OpenWeatherBaseURL: getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
		CORSAllowOrigins:   getenvDefault("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		Port:               getenvDefault("PORT", "8080"),
		LogLevel:           strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getenvDefault("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.OpenWeatherTimeout, err = getenvDuration("OPENWEATHER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryMax, err = getenvInt("RETRY_MAX", 3); err != nil {
		return nil, err
	}
	if cfg.RetryBaseDelay, err = getenvDuration("RETRY_BASE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerEnabled, err = getenvBool("BREAKER_ENABLED", true); err != nil {
		return nil, err
	}
	failures, err := getenvInt("BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	if failures < 1 {
		return nil, fmt.Errorf("invalid BREAKER_FAILURES: must be at least 1, got %d", failures)
	}
	cfg.BreakerFailures = uint32(failures)
	if cfg.BreakerOpenTimeout, err = getenvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CoordinatesCacheTTL, err = getenvDuration("COORDINATES_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ResponseCacheTTL, err = getenvDuration("RESPONSE_CACHE_TTL", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.OpenWeatherAPIKey == "" {
		return ErrMissingAPIKey
	}
	if c.OpenWeatherTimeout <= 0 {
		return fmt.Errorf("invalid OPENWEATHER_TIMEOUT: must be positive, got %s", c.OpenWeatherTimeout)
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("invalid RETRY_MAX: must not be negative, got %d", c.RetryMax)
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("invalid RETRY_BASE_DELAY: must be positive, got %s", c.RetryBaseDelay)
	}
	if c.BreakerOpenTimeout <= 0 {
		return fmt.Errorf("invalid BREAKER_OPEN_TIMEOUT: must be positive, got %s", c.BreakerOpenTimeout)
	}
	if c.CoordinatesCacheTTL <= 0 {
		return fmt.Errorf("invalid COORDINATES_CACHE_TTL: must be positive, got %s", c.CoordinatesCacheTTL)
	}
	if c.ResponseCacheTTL < 0 {
		return fmt.Errorf("invalid RESPONSE_CACHE_TTL: must not be negative, got %s", c.ResponseCacheTTL)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: must be positive, got %s", c.ShutdownTimeout)
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid PORT %q", c.Port)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return ":" + c.Port
}

// NewLogger builds a slog.Logger writing to w using LogLevel and LogFormat.
// Unknown levels fall back to info and unknown formats to text.
func (c *AppConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)}

	var handler slog.Handler
	switch c.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name onto slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
