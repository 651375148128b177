// Package observability holds the console's Prometheus collectors.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Geocode lookup outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeCacheHit  = "cache_hit"
	OutcomeNotFound  = "not_found"
	OutcomeTransport = "transport_error"
	OutcomeStale     = "stale"
)

// Collector bundles the console metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	ShapesClosed   *prometheus.CounterVec
	GeocodeLookups *prometheus.CounterVec
	GeocodeLatency prometheus.Histogram
	GuardDecisions *prometheus.CounterVec
	GeofencesSaved *prometheus.CounterVec
}

// NewCollector registers the console metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing
// collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	closed, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofence_shapes_closed_total",
		Help: "Geofence shapes completed in an editor, labeled by geometry kind.",
	}, []string{"kind"}), "geofence_shapes_closed_total")
	if err != nil {
		return nil, err
	}

	lookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_lookups_total",
		Help: "Address lookups, labeled by outcome.",
	}, []string{"outcome"}), "geocode_lookups_total")
	if err != nil {
		return nil, err
	}

	latency, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocode_request_duration_seconds",
		Help:    "Upstream geocoding latency in seconds.",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}), "geocode_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	decisions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_guard_decisions_total",
		Help: "Route guard resolutions, labeled by screen and resulting state.",
	}, []string{"screen", "state"}), "route_guard_decisions_total")
	if err != nil {
		return nil, err
	}

	saved, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geofences_saved_total",
		Help: "Geofence submissions, labeled by result.",
	}, []string{"result"}), "geofences_saved_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:       gatherer,
		ShapesClosed:   closed,
		GeocodeLookups: lookups,
		GeocodeLatency: latency,
		GuardDecisions: decisions,
		GeofencesSaved: saved,
	}, nil
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) ShapeClosed(kind string) {
	if c == nil {
		return
	}
	c.ShapesClosed.WithLabelValues(kind).Inc()
}

func (c *Collector) GeocodeLookup(outcome string) {
	if c == nil {
		return
	}
	c.GeocodeLookups.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveGeocode(d time.Duration) {
	if c == nil {
		return
	}
	c.GeocodeLatency.Observe(d.Seconds())
}

func (c *Collector) GuardDecision(screen, state string) {
	if c == nil {
		return
	}
	c.GuardDecisions.WithLabelValues(screen, state).Inc()
}

func (c *Collector) GeofenceSaved(result string) {
	if c == nil {
		return
	}
	c.GeofencesSaved.WithLabelValues(result).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}
