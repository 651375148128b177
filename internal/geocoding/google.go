package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/observability"
	"github.com/fleetconsole/console/internal/utils/logger"
)

// DefaultBaseURL is the Google Maps Geocoding endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

var log = logger.New("geocoding")

// Result holds structured data from a Google Maps geocoding response.
type Result struct {
	Formatted string  `json:"formatted"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Zip       string  `json:"zip"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

// Point returns the result's coordinate.
func (r Result) Point() geo.Point {
	return geo.Point{Lat: r.Lat, Lng: r.Lng}
}

// Config configures the Google client.
type Config struct {
	APIKey     string
	BaseURL    string
	RatePerSec float64 // 0 disables client-side limiting
	Timeout    time.Duration
}

// Client wraps the Google Maps Geocoding API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Collector
}

// NewClient returns nil, nil when no API key is configured so callers can
// run with address lookup disabled.
func NewClient(cfg Config, metrics *observability.Collector) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("geocoding base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
	}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c, nil
}

type geocodeResponse struct {
	Results      []geocodeResult `json:"results"`
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
}

type geocodeResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
	Geometry          geometry           `json:"geometry"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geometry struct {
	Location latLng `json:"location"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Search resolves free text to the best matching coordinate.
func (c *Client) Search(ctx context.Context, text string) (geo.Point, error) {
	res, err := c.Geocode(ctx, text)
	switch {
	case err == nil:
		c.metrics.GeocodeLookup(observability.OutcomeOK)
		return res.Point(), nil
	case errors.Is(err, ErrNotFound):
		c.metrics.GeocodeLookup(observability.OutcomeNotFound)
	default:
		c.metrics.GeocodeLookup(observability.OutcomeTransport)
	}
	return geo.Point{}, err
}

// Geocode converts a free-form address into structured location data.
func (c *Client) Geocode(ctx context.Context, address string) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: "rate limit", Err: err}
		}
	}

	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)
	u := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	log.Request(http.MethodGet, c.baseURL)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveGeocode(time.Since(start))
	if err != nil {
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "request", Status: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	var geoResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return nil, &TransportError{Op: "decode", Status: resp.StatusCode, Err: err}
	}
	log.Response(resp.StatusCode, time.Since(start), len(geoResp.Results))

	switch geoResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNotFound
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT", "UNKNOWN_ERROR":
		return nil, &TransportError{Op: "search", Err: fmt.Errorf("status=%s", geoResp.Status)}
	default:
		// REQUEST_DENIED and INVALID_REQUEST point at configuration, not at
		// the address the operator typed.
		msg := strings.TrimSpace(geoResp.ErrorMessage)
		if msg == "" {
			msg = "check API key permissions"
		}
		return nil, fmt.Errorf("geocoding failed: status=%s: %s", geoResp.Status, msg)
	}
	if len(geoResp.Results) == 0 {
		return nil, ErrNotFound
	}

	result := geoResp.Results[0]
	out := &Result{
		Formatted: result.FormattedAddress,
		Lat:       result.Geometry.Location.Lat,
		Lng:       result.Geometry.Location.Lng,
	}
	for _, comp := range result.AddressComponents {
		for _, t := range comp.Types {
			switch t {
			case "postal_code":
				out.Zip = comp.ShortName
			case "administrative_area_level_1":
				out.State = comp.ShortName
			case "locality":
				out.City = comp.LongName
			case "country":
				out.Country = comp.ShortName
			}
		}
	}
	return out, nil
}
