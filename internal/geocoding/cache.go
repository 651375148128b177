package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/cases"

	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/observability"
)

// Searcher is anything that resolves an address to a coordinate.
type Searcher interface {
	Search(ctx context.Context, text string) (geo.Point, error)
}

// ErrCacheMiss is returned by the cache for keys it does not hold.
var ErrCacheMiss = errors.New("geocoding: cache miss")

const (
	keyPrefix       = "geocode:"
	DefaultCacheTTL = 24 * time.Hour
)

// Cache stores successful lookups in Redis.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// ConnectCache dials Redis and checks the connection.
func ConnectCache(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewCache(rdb, ttl), nil
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func (c *Cache) Close() error { return c.rdb.Close() }

var fold = cases.Fold()

// CacheKey normalises an address so that case and spacing differences share
// one entry.
func CacheKey(text string) string {
	return keyPrefix + fold.String(strings.Join(strings.Fields(text), " "))
}

func (c *Cache) Get(ctx context.Context, text string) (geo.Point, error) {
	raw, err := c.rdb.Get(ctx, CacheKey(text)).Bytes()
	if err == redis.Nil {
		return geo.Point{}, ErrCacheMiss
	} else if err != nil {
		return geo.Point{}, err
	}
	var p geo.Point
	if err := json.Unmarshal(raw, &p); err != nil {
		return geo.Point{}, err
	}
	return p, nil
}

func (c *Cache) Set(ctx context.Context, text string, p geo.Point) error {
	val, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, CacheKey(text), val, c.ttl).Err()
}

// CachedSearcher answers from the cache first. Cache failures are logged and
// the upstream is used instead; only successful lookups are stored.
type CachedSearcher struct {
	next    Searcher
	cache   *Cache
	metrics *observability.Collector
}

func NewCachedSearcher(next Searcher, cache *Cache, metrics *observability.Collector) *CachedSearcher {
	return &CachedSearcher{next: next, cache: cache, metrics: metrics}
}

func (s *CachedSearcher) Search(ctx context.Context, text string) (geo.Point, error) {
	p, err := s.cache.Get(ctx, text)
	if err == nil {
		s.metrics.GeocodeLookup(observability.OutcomeCacheHit)
		return p, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn("cache read failed: %v", err)
	}

	p, err = s.next.Search(ctx, text)
	if err != nil {
		return geo.Point{}, err
	}
	if err := s.cache.Set(ctx, text, p); err != nil {
		log.Warn("cache write failed: %v", err)
	}
	return p, nil
}
