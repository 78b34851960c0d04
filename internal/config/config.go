// Package config holds the service configuration and the GIS source catalog.
//
// Defaults are built in. An optional YAML catalog file overrides any subset of
// them; fields left out of the file keep their defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects the network path used for GIS requests.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// Config is the runtime configuration of the marine globe service.
type Config struct {
	Host    string  `yaml:"host"`
	Port    string  `yaml:"port"`
	Mode    Mode    `yaml:"mode"`
	Catalog Catalog `yaml:"catalog"`
}

// Catalog describes the upstream GIS endpoints and viewer tuning.
type Catalog struct {
	// UpstreamHost is the origin behind the local proxy prefixes.
	UpstreamHost string `yaml:"upstreamHost"`
	// CORSProxy is prepended to the escaped upstream URL in production.
	CORSProxy string `yaml:"corsProxy"`

	Basemap        MapService `yaml:"basemap"`
	Bathymetry     WMS        `yaml:"bathymetry"`
	ProtectedAreas MapService `yaml:"protectedAreas"`
	Mangroves      MapService `yaml:"mangroves"`

	// FeatureQueryPath is the WDPA FeatureServer query path under UpstreamHost.
	FeatureQueryPath string `yaml:"featureQueryPath"`
	// VectorMaxHeight is the camera height in meters above which the
	// vector dataset is hidden and no query is issued.
	VectorMaxHeight float64 `yaml:"vectorMaxHeight"`
	// DatasetName names the per-viewer vector collection.
	DatasetName string `yaml:"datasetName"`
	// MetadataTTL is how long map-service metadata lookups are reused.
	// Zero disables the cache.
	MetadataTTL time.Duration `yaml:"metadataTTL"`
}

// MapService is a tiled ArcGIS map service.
type MapService struct {
	// Route is the local proxy prefix ("/wdpa-api"); empty means the URL is
	// absolute and never proxied.
	Route   string  `yaml:"route"`
	Path    string  `yaml:"path"`
	URL     string  `yaml:"url"`
	Visuals Visuals `yaml:"visuals"`
}

// WMS is a Web Map Service source.
type WMS struct {
	URL     string  `yaml:"url"`
	Layer   string  `yaml:"layer"`
	Format  string  `yaml:"format"`
	Visuals Visuals `yaml:"visuals"`
}

// Visuals are the imagery parameters applied on every provisioning pass.
type Visuals struct {
	Alpha      float64 `yaml:"alpha"`
	Brightness float64 `yaml:"brightness"`
	Contrast   float64 `yaml:"contrast"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host: "0.0.0.0",
		Port: "8087",
		Mode: Development,
		Catalog: Catalog{
			UpstreamHost: "https://data-gis.unep-wcmc.org",
			CORSProxy:    "https://corsproxy.io/?",
			Basemap: MapService{
				URL:     "https://services.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer",
				Visuals: Visuals{Alpha: 1, Brightness: 1, Contrast: 1},
			},
			Bathymetry: WMS{
				URL:     "https://wms.gebco.net/mapserv",
				Layer:   "gebco_latest",
				Format:  "image/png",
				Visuals: Visuals{Alpha: 0.5, Brightness: 1, Contrast: 1},
			},
			ProtectedAreas: MapService{
				Route:   "/wdpa-api",
				Path:    "/server/rest/services/ProtectedSites/The_World_Database_of_Protected_Areas/MapServer",
				Visuals: Visuals{Alpha: 0.8, Brightness: 1, Contrast: 1},
			},
			Mangroves: MapService{
				Route:   "/habitats-api",
				Path:    "/server/rest/services/HabitatsAndBiotopes/WCMC011_AtlasMangrove2010_v3/MapServer",
				Visuals: Visuals{Alpha: 1, Brightness: 2.5, Contrast: 1.5},
			},
			FeatureQueryPath: "/server/rest/services/ProtectedSites/The_World_Database_of_Protected_Areas/FeatureServer/1/query",
			VectorMaxHeight:  6_000_000,
			DatasetName:      "WDPA-Vector",
			MetadataTTL:      10 * time.Minute,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	switch c.Mode {
	case Development, Production:
	default:
		return fmt.Errorf("invalid mode %q: want development or production", c.Mode)
	}
	if c.Catalog.UpstreamHost == "" {
		return fmt.Errorf("catalog.upstreamHost is required")
	}
	if c.Catalog.VectorMaxHeight <= 0 {
		return fmt.Errorf("catalog.vectorMaxHeight must be positive, got %v", c.Catalog.VectorMaxHeight)
	}
	if c.Catalog.MetadataTTL < 0 {
		return fmt.Errorf("catalog.metadataTTL must not be negative, got %v", c.Catalog.MetadataTTL)
	}
	if c.Mode == Production && c.Catalog.CORSProxy == "" {
		return fmt.Errorf("catalog.corsProxy is required in production mode")
	}
	return nil
}
