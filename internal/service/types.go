// Package service contains the viewer logic of the marine globe: layer
// provisioning, viewport-driven vector refresh and pick/inspect.
package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	ErrViewerNotFound = errors.New("viewer not found")
	ErrViewerClosed   = errors.New("viewer closed")
	ErrUnknownSource  = errors.New("unknown source")
)

// SourceID identifies one of the imagery sources of the layer stack.
type SourceID string

const (
	Basemap        SourceID = "basemap"
	Bathymetry     SourceID = "bathymetry"
	ProtectedAreas SourceID = "protected-areas"
	Mangroves      SourceID = "mangroves"
)

// Sources lists the imagery sources in provisioning order.
var Sources = []SourceID{Basemap, Bathymetry, ProtectedAreas, Mangroves}

// ParseSource validates a source identifier.
func ParseSource(s string) (SourceID, error) {
	for _, id := range Sources {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// LayerVisibility holds one independent flag per source.
type LayerVisibility struct {
	Basemap        bool `json:"basemap" doc:"Satellite basemap visible"`
	Bathymetry     bool `json:"bathymetry" doc:"GEBCO bathymetry visible"`
	ProtectedAreas bool `json:"protectedAreas" doc:"WDPA protected areas visible"`
	Mangroves      bool `json:"mangroves" doc:"WCMC mangrove habitat visible"`
}

// DefaultVisibility has bathymetry off so the imagery reads better.
func DefaultVisibility() LayerVisibility {
	return LayerVisibility{Basemap: true, Bathymetry: false, ProtectedAreas: true, Mangroves: true}
}

// Get returns the flag for id.
func (v LayerVisibility) Get(id SourceID) bool {
	switch id {
	case Basemap:
		return v.Basemap
	case Bathymetry:
		return v.Bathymetry
	case ProtectedAreas:
		return v.ProtectedAreas
	case Mangroves:
		return v.Mangroves
	}
	return false
}

// Toggle returns a copy with only the flag for id flipped.
func (v LayerVisibility) Toggle(id SourceID) LayerVisibility {
	switch id {
	case Basemap:
		v.Basemap = !v.Basemap
	case Bathymetry:
		v.Bathymetry = !v.Bathymetry
	case ProtectedAreas:
		v.ProtectedAreas = !v.ProtectedAreas
	case Mangroves:
		v.Mangroves = !v.Mangroves
	}
	return v
}

// Status is the attach state of a GIS source shown in the status badges.
type Status string

const (
	StatusLoading Status = "loading"
	StatusActive  Status = "active"
	StatusError   Status = "error"
)

// ServiceStatus tracks the two sources that have a badge. A status leaves
// loading once and is not re-evaluated afterwards.
type ServiceStatus struct {
	ProtectedAreas Status `json:"protectedAreas" enum:"loading,active,error" doc:"WDPA service status"`
	Bathymetry     Status `json:"bathymetry" enum:"loading,active,error" doc:"GEBCO grid status"`
}

// Bathymetry is built without a network call, so it starts active and stays so.
func initialStatus() ServiceStatus {
	return ServiceStatus{ProtectedAreas: StatusLoading, Bathymetry: StatusActive}
}

// settle moves the protected-areas status out of loading. It reports whether
// it changed; the first outcome sticks.
func (s *ServiceStatus) settle(to Status) bool {
	if s.ProtectedAreas != StatusLoading {
		return false
	}
	s.ProtectedAreas = to
	return true
}

// Camera is the pose reported by the globe on camera-move-end.
// View is nil when the engine could not compute a visible rectangle.
type Camera struct {
	View   *Rectangle
	Height float64
}

// Rectangle is a visible geographic rectangle in degrees.
type Rectangle struct {
	West  float64 `json:"west" minimum:"-180" maximum:"180" doc:"Western bound (deg)"`
	South float64 `json:"south" minimum:"-90" maximum:"90" doc:"Southern bound (deg)"`
	East  float64 `json:"east" minimum:"-180" maximum:"180" doc:"Eastern bound (deg)"`
	North float64 `json:"north" minimum:"-90" maximum:"90" doc:"Northern bound (deg)"`
}

// Bound converts the rectangle to an orb bound. ok is false for a
// degenerate rectangle (non-finite values, south above north, or zero area).
// A rectangle crossing the antimeridian (west > east) widens to all
// longitudes.
func (r Rectangle) Bound() (orb.Bound, bool) {
	for _, x := range []float64{r.West, r.South, r.East, r.North} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return orb.Bound{}, false
		}
	}
	if r.South >= r.North || r.West == r.East {
		return orb.Bound{}, false
	}
	west, east := r.West, r.East
	if west > east {
		west, east = -180, 180
	}
	return orb.Bound{Min: orb.Point{west, r.South}, Max: orb.Point{east, r.North}}, true
}

// FlyTo is a timed camera transition for the globe to perform.
type FlyTo struct {
	Longitude float64   `json:"longitude" doc:"Target longitude (deg)"`
	Latitude  float64   `json:"latitude" doc:"Target latitude (deg)"`
	Height    float64   `json:"height,omitempty" doc:"Destination height (m) for point fly-tos"`
	Duration  float64   `json:"duration" doc:"Transition duration (s)"`
	Heading   float64   `json:"heading" doc:"Heading (rad)"`
	Pitch     float64   `json:"pitch" doc:"Pitch (rad)"`
	Range     float64   `json:"range,omitempty" doc:"Distance from target (m) for entity fly-tos"`
	Bound     []float64 `json:"bound,omitempty" doc:"Target extent [west,south,east,north]"`
}
