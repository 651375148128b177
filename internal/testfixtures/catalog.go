package testfixtures

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fleetconsole/console/internal/access"
	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geofence"
	"github.com/fleetconsole/console/internal/store"
	"github.com/fleetconsole/console/internal/visibility"
)

// Catalog is an in-memory geofence store with the same visibility rules as
// the Postgres one.
type Catalog struct {
	mu      sync.Mutex
	records map[string]catalogEntry
	seq     int

	// Err, when set, fails every save.
	Err error
}

type catalogEntry struct {
	seq int
	g   geofence.Geofence
	res visibility.Resource
}

func NewCatalog() *Catalog {
	return &Catalog{records: make(map[string]catalogEntry)}
}

func (c *Catalog) SaveGeofence(ctx context.Context, owner access.Actor, g geofence.Geofence, scope visibility.Scope) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}

	res := visibility.Resource{OwnerID: owner.UserID, ClientID: g.Assignment.ClientID, Scope: scope}
	if g.ID == "" {
		c.seq++
		g.ID = fmt.Sprintf("gf-%d", c.seq)
		c.records[g.ID] = catalogEntry{seq: c.seq, g: g, res: res}
		return g.ID, nil
	}

	prev, ok := c.records[g.ID]
	if !ok {
		return "", store.ErrNotFound
	}
	res.OwnerID = prev.res.OwnerID
	c.records[g.ID] = catalogEntry{seq: prev.seq, g: g, res: res}
	return g.ID, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (geofence.Geofence, visibility.Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.records[id]
	if !ok {
		return geofence.Geofence{}, visibility.Resource{}, store.ErrNotFound
	}
	return e.g, e.res, nil
}

// ListVisible returns newest first, like the Postgres store.
func (c *Catalog) ListVisible(ctx context.Context, actor access.Actor) ([]geofence.Geofence, error) {
	c.mu.Lock()
	entries := make([]catalogEntry, 0, len(c.records))
	for _, e := range c.records {
		if visibility.CanView(actor, e.res) {
			entries = append(entries, e)
		}
	}
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	out := make([]geofence.Geofence, len(entries))
	for i, e := range entries {
		out[i] = e.g
	}
	return out, nil
}

func (c *Catalog) FindContaining(ctx context.Context, actor access.Actor, p geo.Point) ([]geofence.Geofence, error) {
	visible, _ := c.ListVisible(ctx, actor)
	var hits []geofence.Geofence
	for _, g := range visible {
		if store.Contains(g, p) {
			hits = append(hits, g)
		}
	}
	return hits, nil
}

// Len returns the number of stored geofences.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
