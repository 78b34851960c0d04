package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Record maps display labels to string or float64 values.
type Record map[string]any

// Selection is the feature picked by the user.
type Selection struct {
	FeatureID string `json:"featureId" doc:"Picked feature identifier"`
	Record    Record `json:"record" doc:"Extracted display attributes"`
	FlyTo     FlyTo  `json:"flyTo" doc:"Camera transition framing the feature"`
}

// field is one label of the selection record. The value is the first
// present key of the chain, or def.
type field struct {
	label string
	keys  []string
	def   any
}

var recordFields = []field{
	{"NAME", []string{"ORIG_NAME", "NAME"}, "Unavailable"},
	{"STATUS", []string{"STATUS"}, "Designated"},
	{"DESIG", []string{"DESIG_ENG", "DESIG"}, "Protected Area"},
	{"IUCN_CAT", []string{"IUCN_CAT"}, "Not Reported"},
	{"REP_AREA", []string{"REP_AREA"}, 0.0},
	{"STATUS_YR", []string{"STATUS_YR"}, "N/A"},
	{"GOV_TYPE", []string{"GOV_TYPE"}, "Local/State Governance"},
}

// RecordLabels lists the record labels in display order.
func RecordLabels() []string {
	out := make([]string, len(recordFields))
	for i, f := range recordFields {
		out[i] = f.label
	}
	return out
}

// ExtractRecord builds the display record from feature attributes.
// Missing keys, nulls, blank strings and zero numbers fall through the chain.
func ExtractRecord(props geojson.Properties) Record {
	rec := make(Record, len(recordFields))
	for _, f := range recordFields {
		rec[f.label] = f.def
		for _, k := range f.keys {
			if v, ok := present(props[k]); ok {
				rec[f.label] = v
				break
			}
		}
	}
	return rec
}

func present(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case float64:
		return x, x != 0 && !math.IsNaN(x)
	case int:
		return float64(x), x != 0
	case int64:
		return float64(x), x != 0
	case bool:
		return fmt.Sprint(x), x
	default:
		return fmt.Sprint(x), true
	}
}

// HitTest finds the feature under p. A non-empty entityID is matched first
// against feature ids; otherwise polygons containing p are tested, last
// drawn first. A nil p is a click off the globe and only the entity can hit.
func HitTest(fc *geojson.FeatureCollection, p *orb.Point, entityID string) (*geojson.Feature, bool) {
	if fc == nil {
		return nil, false
	}
	if entityID != "" {
		for _, f := range fc.Features {
			if featureID(f) == entityID {
				return f, true
			}
		}
	}
	if p == nil {
		return nil, false
	}
	for i := len(fc.Features) - 1; i >= 0; i-- {
		f := fc.Features[i]
		if contains(f.Geometry, *p) {
			return f, true
		}
	}
	return nil, false
}

func contains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	case orb.Ring:
		return planar.RingContains(geom, p)
	case orb.Collection:
		for _, sub := range geom {
			if contains(sub, p) {
				return true
			}
		}
	}
	return false
}

func featureID(f *geojson.Feature) string {
	if f.ID != nil {
		return formatID(f.ID)
	}
	if v, ok := f.Properties["WDPAID"]; ok && v != nil {
		return formatID(v)
	}
	return ""
}

// formatID prints numeric ids without exponent notation; JSON numbers
// decode to float64 and WDPA ids run to nine digits.
func formatID(v any) string {
	if x, ok := v.(float64); ok {
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Camera framing used when flying to a picked feature.
const (
	pickFlyDuration = 1.5
	pickFlyRange    = 1_000_000
)

// FlyToFeature frames f at the pick offset: heading 0, pitch -45 deg.
func FlyToFeature(f *geojson.Feature) FlyTo {
	var b orb.Bound
	if f.Geometry != nil {
		b = f.Geometry.Bound()
	}
	c := b.Center()
	return FlyTo{
		Longitude: c.Lon(),
		Latitude:  c.Lat(),
		Duration:  pickFlyDuration,
		Heading:   0,
		Pitch:     -math.Pi / 4,
		Range:     pickFlyRange,
		Bound:     []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()},
	}
}

// Inspect turns a hit feature into a selection.
func Inspect(f *geojson.Feature) *Selection {
	return &Selection{
		FeatureID: featureID(f),
		Record:    ExtractRecord(f.Properties),
		FlyTo:     FlyToFeature(f),
	}
}
