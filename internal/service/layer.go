package service

import (
	"context"
	"fmt"
	"sync"
)

// ProviderKind is the globe-engine imagery provider to construct.
type ProviderKind string

const (
	ArcGISMapServer ProviderKind = "arcgis-mapserver"
	WebMapService   ProviderKind = "wms"
)

// Provider describes a constructed imagery provider.
type Provider struct {
	Kind ProviderKind `json:"kind" enum:"arcgis-mapserver,wms" doc:"Engine provider type"`
	// URL is the address the browser loads tiles from.
	URL string `json:"url" doc:"Service URL as seen by the browser"`
	// Layers and Parameters apply to WMS only.
	Layers     string            `json:"layers,omitempty" doc:"WMS layer names"`
	Parameters map[string]string `json:"parameters,omitempty" doc:"Extra WMS GetMap parameters"`
	// Tiled reports a published tile cache (map services only).
	Tiled bool `json:"tiled,omitempty" doc:"Map service publishes a tile cache"`
}

// Layer is one entry of the imagery stack.
type Layer struct {
	Source     SourceID
	Provider   Provider
	Alpha      float64
	Brightness float64
	Contrast   float64
	Show       bool
}

// LayerState is an immutable copy of a layer with its stack position.
type LayerState struct {
	Source     SourceID `json:"source" doc:"Source identifier"`
	Position   int      `json:"position" doc:"Stack index, 0 is the bottom"`
	Provider   Provider `json:"provider" doc:"Imagery provider"`
	Alpha      float64  `json:"alpha" minimum:"0" maximum:"1" doc:"Layer alpha"`
	Brightness float64  `json:"brightness" doc:"Layer brightness"`
	Contrast   float64  `json:"contrast" doc:"Layer contrast"`
	Show       bool     `json:"show" doc:"Layer shown"`
}

// Placement is where a newly attached layer enters the stack.
type Placement int

const (
	PlaceTop Placement = iota
	PlaceBottom
)

// LayerRegistry is the imagery stack of one viewer, keyed by source.
// Ensure is lookup-then-create: a source is constructed at most once.
type LayerRegistry struct {
	mu     sync.RWMutex
	layers map[SourceID]*Layer
	order  []SourceID // bottom -> top

	attachMu sync.Mutex
	built    map[SourceID]int // construction count per source
}

// NewLayerRegistry creates an empty stack.
func NewLayerRegistry() *LayerRegistry {
	return &LayerRegistry{
		layers: make(map[SourceID]*Layer),
		built:  make(map[SourceID]int),
	}
}

// Constructor builds the provider for a source.
type Constructor func(ctx context.Context) (Provider, error)

// Ensure returns the layer for id, constructing it with build when absent.
// created reports whether construction happened. A failed construction
// leaves the registry unchanged so a later pass can try again.
func (r *LayerRegistry) Ensure(ctx context.Context, id SourceID, place Placement, build Constructor) (created bool, err error) {
	r.attachMu.Lock()
	defer r.attachMu.Unlock()

	if _, ok := r.lookup(id); ok {
		return false, nil
	}

	p, err := build(ctx)
	if err != nil {
		return false, fmt.Errorf("constructing %s provider: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers[id] = &Layer{Source: id, Provider: p, Alpha: 1, Brightness: 1, Contrast: 1, Show: true}
	r.built[id]++
	if place == PlaceBottom {
		r.order = append([]SourceID{id}, r.order...)
	} else {
		r.order = append(r.order, id)
	}
	return true, nil
}

func (r *LayerRegistry) lookup(id SourceID) (*Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.layers[id]
	return l, ok
}

// Has reports whether a layer exists for id.
func (r *LayerRegistry) Has(id SourceID) bool {
	_, ok := r.lookup(id)
	return ok
}

// Update applies fn to the layer for id. It reports false when absent.
func (r *LayerRegistry) Update(id SourceID, fn func(l *Layer)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.layers[id]
	if !ok {
		return false
	}
	fn(l)
	return true
}

// RaiseToTop moves id to the top of the stack.
func (r *LayerRegistry) RaiseToTop(id SourceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, s := range r.order {
		if s == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	r.order = append(append(r.order[:idx:idx], r.order[idx+1:]...), id)
	return true
}

// Constructions returns how many providers were built for id.
func (r *LayerRegistry) Constructions(id SourceID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.built[id]
}

// Len returns the number of layers in the stack.
func (r *LayerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns the stack from bottom to top.
func (r *LayerRegistry) Snapshot() []LayerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]LayerState, 0, len(r.order))
	for i, id := range r.order {
		l := r.layers[id]
		out = append(out, LayerState{
			Source:     id,
			Position:   i,
			Provider:   l.Provider,
			Alpha:      l.Alpha,
			Brightness: l.Brightness,
			Contrast:   l.Contrast,
			Show:       l.Show,
		})
	}
	return out
}
