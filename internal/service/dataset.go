package service

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// VectorDataset is the named feature collection downloaded per viewport.
// Load replaces its contents; features are never merged.
type VectorDataset struct {
	name     string
	features *geojson.FeatureCollection
	show     bool
	version  uint64
}

func newVectorDataset(name string) *VectorDataset {
	return &VectorDataset{name: name, features: geojson.NewFeatureCollection()}
}

// Name returns the dataset name.
func (d *VectorDataset) Name() string { return d.name }

// Load swaps in fc. A nil fc loads an empty collection.
func (d *VectorDataset) Load(fc *geojson.FeatureCollection) {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	d.features = fc
	d.version++
}

// Features returns the current collection. Callers must not mutate it.
func (d *VectorDataset) Features() *geojson.FeatureCollection { return d.features }

// Len returns the number of loaded features.
func (d *VectorDataset) Len() int { return len(d.features.Features) }

// Version increments on every Load.
func (d *VectorDataset) Version() uint64 { return d.version }

// DataSources is the viewer's collection of vector datasets.
type DataSources struct {
	items []*VectorDataset
}

// Add attaches ds. Attaching the same name twice is an error.
func (c *DataSources) Add(ds *VectorDataset) error {
	for _, it := range c.items {
		if it.name == ds.name {
			return fmt.Errorf("data source %q already attached", ds.name)
		}
	}
	c.items = append(c.items, ds)
	return nil
}

// Len returns the number of attached datasets.
func (c *DataSources) Len() int { return len(c.items) }
