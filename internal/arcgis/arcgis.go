// Package arcgis is a small client for the ArcGIS REST endpoints the viewer
// consumes: map-service metadata and feature-service envelope queries.
package arcgis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"

	"github.com/joeblew999/plat-marine/internal/metrics"
)

// maxBody bounds how much of a response is read.
const maxBody = 64 << 20

// Client performs ArcGIS REST requests.
type Client struct {
	http *http.Client
}

// New creates a client. A nil httpClient uses a client with a 30s timeout.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{http: httpClient}
}

// APIError is the error envelope ArcGIS returns with a 200 status.
type APIError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("arcgis error %d: %s", e.Code, e.Message)
}

// MapServiceInfo is the subset of map-service metadata the viewer relies on.
type MapServiceInfo struct {
	CurrentVersion      float64 `json:"currentVersion"`
	MapName             string  `json:"mapName"`
	Description         string  `json:"description"`
	SingleFusedMapCache bool    `json:"singleFusedMapCache"`
	SpatialReference    struct {
		WKID       int `json:"wkid"`
		LatestWKID int `json:"latestWkid"`
	} `json:"spatialReference"`
	TileInfo *struct {
		Rows int `json:"rows"`
		Cols int `json:"cols"`
	} `json:"tileInfo,omitempty"`
	CopyrightText string `json:"copyrightText"`
}

// Tiled reports whether the service publishes a tile cache.
func (m *MapServiceInfo) Tiled() bool {
	return m.SingleFusedMapCache && m.TileInfo != nil
}

// EnvelopeQuery returns the feature-service query path for an
// intersects-envelope query over b, with all fields, as GeoJSON.
func EnvelopeQuery(queryPath string, b orb.Bound) string {
	v := url.Values{}
	v.Set("geometry", formatEnvelope(b))
	v.Set("geometryType", "esriGeometryEnvelope")
	v.Set("spatialRel", "esriSpatialRelIntersects")
	v.Set("outFields", "*")
	v.Set("f", "geojson")
	return queryPath + "?" + v.Encode()
}

func formatEnvelope(b orb.Bound) string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	return f(b.Min.X()) + "," + f(b.Min.Y()) + "," + f(b.Max.X()) + "," + f(b.Max.Y())
}

// MetadataURL returns the JSON metadata URL for a service root.
func MetadataURL(serviceURL string) string {
	return serviceURL + "?f=json"
}

// Features fetches and decodes a GeoJSON feature collection from queryURL.
func (c *Client) Features(ctx context.Context, queryURL string) (*geojson.FeatureCollection, error) {
	start := time.Now()
	fc, err := c.features(ctx, queryURL)
	metrics.GISRequestDuration.WithLabelValues("feature_query").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GISRequestErrors.WithLabelValues("feature_query").Inc()
	}
	return fc, err
}

func (c *Client) features(ctx context.Context, queryURL string) (*geojson.FeatureCollection, error) {
	body, err := c.get(ctx, queryURL)
	if err != nil {
		return nil, err
	}
	if err := apiError(body); err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decoding feature collection: %w", err)
	}
	return fc, nil
}

// MapService fetches map-service metadata from metadataURL.
func (c *Client) MapService(ctx context.Context, metadataURL string) (*MapServiceInfo, error) {
	start := time.Now()
	info, err := c.mapService(ctx, metadataURL)
	metrics.GISRequestDuration.WithLabelValues("map_service").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GISRequestErrors.WithLabelValues("map_service").Inc()
	}
	return info, err
}

func (c *Client) mapService(ctx context.Context, metadataURL string) (*MapServiceInfo, error) {
	body, err := c.get(ctx, metadataURL)
	if err != nil {
		return nil, err
	}
	if err := apiError(body); err != nil {
		return nil, err
	}

	var info MapServiceInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding map service metadata: %w", err)
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/geo+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	return body, nil
}

// apiError reports the error envelope in body, if any. ArcGIS answers
// failed queries with a 200 and {"error": {...}}.
func apiError(body []byte) error {
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("decoding response: invalid JSON")
	}
	res := gjson.GetBytes(body, "error")
	if !res.Exists() || res.Type == gjson.Null {
		return nil
	}
	var apiErr APIError
	if err := json.Unmarshal([]byte(res.Raw), &apiErr); err != nil {
		return fmt.Errorf("decoding error envelope: %w", err)
	}
	return &apiErr
}
