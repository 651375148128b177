package mapsurface

// ShapeTable is the set of shapes one editor has placed on a surface. The
// editor owns it exclusively and must Release it on every re-render and on
// teardown; the surface does not reclaim shapes on its own.
type ShapeTable struct {
	surface Surface
	handles map[string][]Handle
}

// NewShapeTable binds a table to a surface.
func NewShapeTable(s Surface) *ShapeTable {
	return &ShapeTable{surface: s, handles: make(map[string][]Handle)}
}

// Track records a handle under a layer name ("markers", "edges", ...).
func (t *ShapeTable) Track(layer string, h Handle) {
	t.handles[layer] = append(t.handles[layer], h)
}

// ReleaseLayer removes every shape of one layer from the surface.
func (t *ShapeTable) ReleaseLayer(layer string) {
	for _, h := range t.handles[layer] {
		t.surface.RemoveShape(h)
	}
	delete(t.handles, layer)
}

// Release removes every tracked shape from the surface.
func (t *ShapeTable) Release() {
	for layer := range t.handles {
		t.ReleaseLayer(layer)
	}
}

// Len returns the number of shapes currently tracked.
func (t *ShapeTable) Len() int {
	n := 0
	for _, hs := range t.handles {
		n += len(hs)
	}
	return n
}
