// Package config reads the console's settings from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fleetconsole/console/internal/drawing"
	"github.com/fleetconsole/console/internal/geocoding"
	"github.com/fleetconsole/console/internal/utils/logger"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET environment variable is required")
	ErrInvalidPort        = errors.New("PORT must be a number between 1 and 65535")
	ErrInvalidRate        = errors.New("GEOCODE_RATE_PER_SEC must be positive")
	ErrInvalidThreshold   = errors.New("CLOSURE_THRESHOLD_PX must be positive")
)

const (
	DefaultPort       = "5050"
	DefaultRatePerSec = 10.0
)

// Config holds every setting main needs to wire the console.
type Config struct {
	DatabaseURL string
	Port        string

	// Geocoding. An empty key disables address lookup.
	GoogleMapsKey     string
	GeocodeRatePerSec float64
	RedisAddr         string
	GeocodeCacheTTL   time.Duration

	JWTSecret  string
	RoutesFile string // optional YAML allow-list override

	ClosureThresholdPx float64
	AllowedOrigins     []string
	LogLevel           logger.Level
}

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - DATABASE_URL: Postgres DSN (required)
//   - PORT: listen port (default: 5050)
//   - GOOGLE_MAPS_API_KEY: geocoding key (optional)
//   - GEOCODE_RATE_PER_SEC: outbound geocode rate (default: 10)
//   - REDIS_ADDR: geocode cache address (optional)
//   - GEOCODE_CACHE_TTL: cache entry lifetime, e.g. "12h" (default: 24h)
//   - JWT_SECRET: bearer token signing secret (required)
//   - ROUTES_FILE: YAML screen allow-list (optional)
//   - CLOSURE_THRESHOLD_PX: polygon closing distance (default: 20)
//   - ALLOWED_ORIGINS: comma separated CORS origins
//   - LOG_LEVEL: debug, info, warn or error (default: info)
func LoadFromEnv() Config {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = DefaultPort
	}

	return Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Port:               port,
		GoogleMapsKey:      os.Getenv("GOOGLE_MAPS_API_KEY"),
		GeocodeRatePerSec:  floatEnv("GEOCODE_RATE_PER_SEC", DefaultRatePerSec),
		RedisAddr:          strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		GeocodeCacheTTL:    durationEnv("GEOCODE_CACHE_TTL", geocoding.DefaultCacheTTL),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RoutesFile:         strings.TrimSpace(os.Getenv("ROUTES_FILE")),
		ClosureThresholdPx: floatEnv("CLOSURE_THRESHOLD_PX", drawing.DefaultClosureThresholdPx),
		AllowedOrigins:     listEnv("ALLOWED_ORIGINS"),
		LogLevel:           logger.ParseLevel(os.Getenv("LOG_LEVEL")),
	}
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 1 || p > 65535 {
		return ErrInvalidPort
	}
	if c.GeocodeRatePerSec <= 0 {
		return ErrInvalidRate
	}
	if c.ClosureThresholdPx <= 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// Geocoding returns the client settings derived from c.
func (c Config) Geocoding() geocoding.Config {
	return geocoding.Config{APIKey: c.GoogleMapsKey, RatePerSec: c.GeocodeRatePerSec}
}

func floatEnv(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return -1
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
