package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-marine/internal/arcgis"
	"github.com/joeblew999/plat-marine/internal/config"
	"github.com/joeblew999/plat-marine/internal/gisproxy"
	"github.com/joeblew999/plat-marine/internal/logging"
	"github.com/joeblew999/plat-marine/internal/metrics"
)

// MapServiceClient fetches ArcGIS map-service metadata.
type MapServiceClient interface {
	MapService(ctx context.Context, metadataURL string) (*arcgis.MapServiceInfo, error)
}

// FeatureClient fetches GeoJSON feature collections.
type FeatureClient interface {
	Features(ctx context.Context, queryURL string) (*geojson.FeatureCollection, error)
}

// GISClient is the full upstream surface a server wires in.
type GISClient interface {
	MapServiceClient
	FeatureClient
}

// Provisioner attaches the four imagery sources to a layer registry.
type Provisioner struct {
	client   MapServiceClient
	resolver *gisproxy.Resolver
	catalog  config.Catalog
}

// NewProvisioner creates a provisioner for the catalog.
func NewProvisioner(client MapServiceClient, resolver *gisproxy.Resolver, catalog config.Catalog) *Provisioner {
	return &Provisioner{client: client, resolver: resolver, catalog: catalog}
}

// ProvisionReport is the outcome of one provisioning pass.
type ProvisionReport struct {
	Created []SourceID
	Failed  map[SourceID]error
}

// Provision attaches any missing source and then applies visuals and
// visibility to every attached source, created this pass or not.
// Each source fails on its own; the others proceed.
func (p *Provisioner) Provision(ctx context.Context, reg *LayerRegistry, vis LayerVisibility) ProvisionReport {
	report := ProvisionReport{Failed: map[SourceID]error{}}
	log := logging.With("provision")

	for _, id := range Sources {
		place := PlaceTop
		if id == Basemap {
			place = PlaceBottom
		}

		created, err := reg.Ensure(ctx, id, place, p.constructor(id))
		switch {
		case err != nil:
			report.Failed[id] = err
			metrics.LayerAttachments.WithLabelValues(string(id), "error").Inc()
			log.Error().Err(err).Str("source", string(id)).Msg("layer attach failed")
		case created:
			report.Created = append(report.Created, id)
			metrics.LayerAttachments.WithLabelValues(string(id), "ok").Inc()
			log.Debug().Str("source", string(id)).Msg("layer attached")
		}

		visuals := p.visuals(id)
		reg.Update(id, func(l *Layer) {
			l.Alpha = visuals.Alpha
			l.Brightness = visuals.Brightness
			l.Contrast = visuals.Contrast
			l.Show = vis.Get(id)
		})
	}

	// mangroves stay above the other overlays
	reg.RaiseToTop(Mangroves)
	return report
}

func (p *Provisioner) visuals(id SourceID) config.Visuals {
	switch id {
	case Basemap:
		return p.catalog.Basemap.Visuals
	case Bathymetry:
		return p.catalog.Bathymetry.Visuals
	case ProtectedAreas:
		return p.catalog.ProtectedAreas.Visuals
	default:
		return p.catalog.Mangroves.Visuals
	}
}

func (p *Provisioner) constructor(id SourceID) Constructor {
	switch id {
	case Basemap:
		return p.mapService(p.catalog.Basemap)
	case Bathymetry:
		return p.wms(p.catalog.Bathymetry)
	case ProtectedAreas:
		return p.mapService(p.catalog.ProtectedAreas)
	default:
		return p.mapService(p.catalog.Mangroves)
	}
}

// mapService checks the service metadata before handing the URL to the
// browser, the way the engine's fromUrl constructor does.
func (p *Provisioner) mapService(svc config.MapService) Constructor {
	return func(ctx context.Context) (Provider, error) {
		browserURL, serverURL := svc.URL, arcgis.MetadataURL(svc.URL)
		if svc.URL == "" {
			browserURL = p.resolver.BrowserURL(svc.Route, svc.Path)
			serverURL = p.resolver.ServerURL(arcgis.MetadataURL(svc.Path))
		}

		info, err := p.client.MapService(ctx, serverURL)
		if err != nil {
			return Provider{}, err
		}
		return Provider{Kind: ArcGISMapServer, URL: browserURL, Tiled: info.Tiled()}, nil
	}
}

// wms builds the provider without a network round trip.
func (p *Provisioner) wms(svc config.WMS) Constructor {
	return func(ctx context.Context) (Provider, error) {
		u, err := url.Parse(svc.URL)
		if err != nil {
			return Provider{}, err
		}
		if u.Scheme == "" || u.Host == "" {
			return Provider{}, fmt.Errorf("wms url %q must be absolute", svc.URL)
		}
		if svc.Layer == "" {
			return Provider{}, fmt.Errorf("wms layer name is required")
		}
		format := svc.Format
		if format == "" {
			format = "image/png"
		}
		return Provider{
			Kind:       WebMapService,
			URL:        svc.URL,
			Layers:     svc.Layer,
			Parameters: map[string]string{"transparent": "true", "format": format},
		}, nil
	}
}
