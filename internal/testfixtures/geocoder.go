package testfixtures

import (
	"context"
	"sync"

	"github.com/fleetconsole/console/internal/geo"
	"github.com/fleetconsole/console/internal/geocoding"
)

type hold struct {
	started chan struct{}
	release chan struct{}
}

// Geocoder answers address lookups from a table. Unknown addresses are not
// found.
type Geocoder struct {
	mu      sync.Mutex
	results map[string]geo.Point
	errs    map[string]error
	holds   map[string]*hold
	calls   []string
}

func NewGeocoder() *Geocoder {
	return &Geocoder{
		results: make(map[string]geo.Point),
		errs:    make(map[string]error),
		holds:   make(map[string]*hold),
	}
}

// Set registers the point returned for text.
func (g *Geocoder) Set(text string, p geo.Point) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results[text] = p
}

// Fail makes lookups of text return err.
func (g *Geocoder) Fail(text string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs[text] = err
}

// Hold blocks lookups of text until release is called. started is closed
// once a lookup is waiting.
func (g *Geocoder) Hold(text string) (started <-chan struct{}, release func()) {
	h := &hold{started: make(chan struct{}), release: make(chan struct{})}
	g.mu.Lock()
	g.holds[text] = h
	g.mu.Unlock()

	var once sync.Once
	return h.started, func() { once.Do(func() { close(h.release) }) }
}

// Calls returns every text searched, in order.
func (g *Geocoder) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *Geocoder) Search(ctx context.Context, text string) (geo.Point, error) {
	g.mu.Lock()
	g.calls = append(g.calls, text)
	h := g.holds[text]
	delete(g.holds, text)
	g.mu.Unlock()

	if h != nil {
		close(h.started)
		select {
		case <-h.release:
		case <-ctx.Done():
			return geo.Point{}, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.errs[text]; ok {
		return geo.Point{}, err
	}
	if p, ok := g.results[text]; ok {
		return p, nil
	}
	return geo.Point{}, geocoding.ErrNotFound
}
