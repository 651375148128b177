package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/circle"
	"github.com/fleetconsole/console/internal/config"
	"github.com/fleetconsole/console/internal/console"
	"github.com/fleetconsole/console/internal/db"
	"github.com/fleetconsole/console/internal/directory"
	"github.com/fleetconsole/console/internal/geocoding"
	"github.com/fleetconsole/console/internal/middleware"
	"github.com/fleetconsole/console/internal/observability"
	"github.com/fleetconsole/console/internal/store"
	"github.com/fleetconsole/console/internal/utils/logger"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	applog := logger.New("main")

	if err := db.Connect(cfg.DatabaseURL, cfg.LogLevel == logger.LevelDebug); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := directory.Migrate(db.DB); err != nil {
		log.Fatalf("Failed to migrate users: %v", err)
	}
	if err := store.Migrate(db.DB); err != nil {
		log.Fatalf("Failed to migrate geofences: %v", err)
	}

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	routes := access.DefaultRoutes()
	if cfg.RoutesFile != "" {
		if routes, err = access.LoadRoutes(cfg.RoutesFile); err != nil {
			log.Fatalf("routes: %v", err)
		}
	}

	geocoder := setupGeocoder(cfg, metrics, applog)
	dir := directory.New(db.DB)
	handler := console.NewHandler(store.New(db.DB), dir, geocoder, metrics)

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ActorMiddleware(access.NewTokenResolver(cfg.JWTSecret), dir))
		r.Mount("/geofences", handler.SetupRoutes(routes, metrics))
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	applog.Info("Server listening on port :%s...", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %v", err)
	}
}

// setupGeocoder returns nil when no key is configured. Redis is optional; an
// unreachable cache falls back to uncached lookups.
func setupGeocoder(cfg config.Config, metrics *observability.Collector, applog *logger.Logger) circle.Geocoder {
	client, err := geocoding.NewClient(cfg.Geocoding(), metrics)
	if err != nil {
		log.Fatalf("geocoding: %v", err)
	}
	if client == nil {
		applog.Warn("GOOGLE_MAPS_API_KEY not set, address lookup disabled")
		return nil
	}
	if cfg.RedisAddr == "" {
		return client
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cache, err := geocoding.ConnectCache(ctx, cfg.RedisAddr, cfg.GeocodeCacheTTL)
	if err != nil {
		applog.Warn("geocode cache unavailable at %s: %v", cfg.RedisAddr, err)
		return client
	}
	applog.Success("geocode cache connected at %s", cfg.RedisAddr)
	return geocoding.NewCachedSearcher(client, cache, metrics)
}
