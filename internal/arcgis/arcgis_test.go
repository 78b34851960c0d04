package arcgis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoFeatures = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": 1, "properties": {"NAME": "Moucha"},
     "geometry": {"type": "Polygon", "coordinates": [[[43,11],[44,11],[44,12],[43,12],[43,11]]]}},
    {"type": "Feature", "id": 2, "properties": {"NAME": "Godoria"},
     "geometry": {"type": "Point", "coordinates": [43.5, 12.1]}}
  ]
}`

func TestEnvelopeQuery(t *testing.T) {
	q := EnvelopeQuery("/fs/1/query", orb.Bound{Min: orb.Point{42.5, -1}, Max: orb.Point{44, 12.25}})

	u, err := url.Parse(q)
	require.NoError(t, err)
	assert.Equal(t, "/fs/1/query", u.Path)

	v := u.Query()
	assert.Equal(t, "42.5,-1,44,12.25", v.Get("geometry"))
	assert.Equal(t, "esriGeometryEnvelope", v.Get("geometryType"))
	assert.Equal(t, "esriSpatialRelIntersects", v.Get("spatialRel"))
	assert.Equal(t, "*", v.Get("outFields"))
	assert.Equal(t, "geojson", v.Get("f"))
}

func TestFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "geojson", r.URL.Query().Get("f"))
		io.WriteString(w, twoFeatures)
	}))
	defer srv.Close()

	fc, err := New(srv.Client()).Features(context.Background(), srv.URL+"/q?f=geojson")
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "Moucha", fc.Features[0].Properties.MustString("NAME"))
}

func TestFeaturesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":{"code":400,"message":"Invalid query parameters","details":[]}}`)
	}))
	defer srv.Close()

	_, err := New(nil).Features(context.Background(), srv.URL)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)
}

func TestFeaturesHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(nil).Features(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestFeaturesCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, twoFeatures)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Features(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMapService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("f"))
		io.WriteString(w, `{"currentVersion":10.91,"mapName":"Layers","singleFusedMapCache":true,
			"spatialReference":{"wkid":102100,"latestWkid":3857},"tileInfo":{"rows":256,"cols":256}}`)
	}))
	defer srv.Close()

	info, err := New(nil).MapService(context.Background(), MetadataURL(srv.URL+"/MapServer"))
	require.NoError(t, err)
	assert.Equal(t, "Layers", info.MapName)
	assert.Equal(t, 3857, info.SpatialReference.LatestWKID)
	assert.True(t, info.Tiled())
}

func TestFeaturesInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>maintenance</html>")
	}))
	defer srv.Close()

	_, err := New(nil).Features(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestNullErrorIsNotAnError(t *testing.T) {
	assert.NoError(t, apiError([]byte(`{"error":null,"type":"FeatureCollection","features":[]}`)))
}

func TestCachedMapService(t *testing.T) {
	var hits atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"currentVersion":10.9,"mapName":"WDPA"}`)
	}))
	defer srv.Close()

	c := NewCached(New(nil), 8, time.Minute)
	ctx := context.Background()
	metaURL := MetadataURL(srv.URL + "/MapServer")

	for i := 0; i < 3; i++ {
		info, err := c.MapService(ctx, metaURL)
		require.NoError(t, err)
		assert.Equal(t, "WDPA", info.MapName)
	}
	assert.EqualValues(t, 1, hits.Load())

	// failures are not cached
	fail.Store(true)
	other := MetadataURL(srv.URL + "/Other/MapServer")
	_, err := c.MapService(ctx, other)
	require.Error(t, err)
	_, err = c.MapService(ctx, other)
	require.Error(t, err)
	assert.EqualValues(t, 3, hits.Load())

	// the earlier entry still serves while upstream is down
	info, err := c.MapService(ctx, metaURL)
	require.NoError(t, err)
	assert.Equal(t, "WDPA", info.MapName)
	assert.EqualValues(t, 3, hits.Load())
}
