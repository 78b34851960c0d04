package server

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/config"
)

const featureCollection = `{"type":"FeatureCollection","features":[{"type":"Feature","id":555,
"geometry":{"type":"Polygon","coordinates":[[[43,11],[44,11],[44,12],[43,12],[43,11]]]},
"properties":{"ORIG_NAME":"Moucha","REP_AREA":30.5,"IUCN_CAT":"II","STATUS_YR":2004}}]}`

// upstream fakes the GIS host and records the paths it served.
type upstream struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.paths = append(u.paths, r.URL.Path)
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/MapServer"):
			io.WriteString(w, `{"currentVersion":10.9,"singleFusedMapCache":true,"tileInfo":{"rows":256,"cols":256}}`)
		case strings.HasSuffix(r.URL.Path, "/query"):
			io.WriteString(w, featureCollection)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, p := range u.paths {
		if p == path {
			n++
		}
	}
	return n
}

func (u *upstream) served(path string) bool { return u.count(path) > 0 }

func newTestServer(t *testing.T, mode config.Mode) (*Server, *httptest.Server, *upstream) {
	t.Helper()
	up := newUpstream(t)

	cfg := config.Default()
	cfg.Mode = mode
	cfg.Catalog.UpstreamHost = up.URL
	cfg.Catalog.Basemap.URL = up.URL + "/ArcGIS/rest/services/World_Imagery/MapServer"

	srv, err := New(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.Close() })
	return srv, ts, up
}

func createViewer(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/viewers", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.ID
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRootBanner(t *testing.T) {
	_, ts, _ := newTestServer(t, config.Development)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readAll(t, resp), `"service":"plat-marine"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestViewerPageStartsSession(t *testing.T) {
	srv, ts, up := newTestServer(t, config.Development)

	resp, err := http.Get(ts.URL + "/viewer")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := readAll(t, resp)

	viewers := srv.Viewers().List()
	require.Len(t, viewers, 1)
	id := viewers[0].ID()
	assert.Contains(t, html, "/api/v1/shell/"+id+"/events")
	assert.Contains(t, html, "Cesium.js")
	assert.Contains(t, html, `"baseColor":"#000814"`)

	assert.True(t, up.served("/ArcGIS/rest/services/World_Imagery/MapServer"))
	assert.True(t, up.served("/server/rest/services/ProtectedSites/The_World_Database_of_Protected_Areas/MapServer"))
}

func TestMetadataProbesAreShared(t *testing.T) {
	_, ts, up := newTestServer(t, config.Development)
	createViewer(t, ts)
	createViewer(t, ts)

	assert.Equal(t, 1, up.count("/server/rest/services/HabitatsAndBiotopes/WCMC011_AtlasMangrove2010_v3/MapServer"))
}

func TestDevProxyStripsPrefix(t *testing.T) {
	_, ts, up := newTestServer(t, config.Development)

	resp, err := http.Get(ts.URL + "/habitats-api/server/rest/services/HabitatsAndBiotopes/WCMC011_AtlasMangrove2010_v3/MapServer?f=json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, up.served("/server/rest/services/HabitatsAndBiotopes/WCMC011_AtlasMangrove2010_v3/MapServer"))
}

func TestProductionHasNoLocalProxy(t *testing.T) {
	_, ts, _ := newTestServer(t, config.Production)

	resp, err := http.Get(ts.URL + "/wdpa-api/server/rest/services/x/MapServer")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCameraRefreshThroughUpstream(t *testing.T) {
	_, ts, up := newTestServer(t, config.Development)
	id := createViewer(t, ts)

	resp := postJSON(t, ts.URL+"/api/v1/viewers/"+id+"/camera",
		`{"view":{"west":42,"south":10,"east":45,"north":13},"height":250000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readAll(t, resp)
	assert.Contains(t, body, `"outcome":"fetched"`)
	assert.Contains(t, body, `"features":1`)
	assert.True(t, up.served("/server/rest/services/ProtectedSites/The_World_Database_of_Protected_Areas/FeatureServer/1/query"))
}

func TestShellToggle(t *testing.T) {
	srv, ts, _ := newTestServer(t, config.Development)
	id := createViewer(t, ts)

	resp := postJSON(t, ts.URL+"/api/v1/shell/"+id+"/layers/mangroves/toggle", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	body := readAll(t, resp)
	assert.Contains(t, body, "datastar-patch-elements")
	assert.Contains(t, body, `id="layer-mangroves"`)

	v, err := srv.Viewers().Get(id)
	require.NoError(t, err)
	assert.False(t, v.Visibility().Mangroves)
	assert.True(t, v.Visibility().ProtectedAreas)
}

func TestShellPickRendersSidebar(t *testing.T) {
	_, ts, _ := newTestServer(t, config.Development)
	id := createViewer(t, ts)
	postJSON(t, ts.URL+"/api/v1/viewers/"+id+"/camera",
		`{"view":{"west":42,"south":10,"east":45,"north":13},"height":250000}`)

	resp := postJSON(t, ts.URL+"/api/v1/shell/"+id+"/pick",
		`{"pickOnGlobe":true,"pickLongitude":43.5,"pickLatitude":11.5,"pickEntity":""}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readAll(t, resp)
	assert.Contains(t, body, "Official WDPA record")
	assert.Contains(t, body, "Moucha")
	assert.Contains(t, body, "30.5 km²")
	assert.Contains(t, body, "<dd>2004</dd>")
	assert.NotContains(t, body, "2,004")
	assert.Contains(t, body, "Local/State Governance")

	resp = postJSON(t, ts.URL+"/api/v1/shell/"+id+"/pick", `{"pickOnGlobe":true,"pickLongitude":0,"pickLatitude":0}`)
	assert.Contains(t, readAll(t, resp), `id="sidebar" class="panel" hidden`)

	// a click off the globe carries stale coordinates over Moucha but misses
	postJSON(t, ts.URL+"/api/v1/shell/"+id+"/pick", `{"pickOnGlobe":true,"pickLongitude":43.5,"pickLatitude":11.5}`)
	resp = postJSON(t, ts.URL+"/api/v1/shell/"+id+"/pick", `{"pickOnGlobe":false,"pickLongitude":43.5,"pickLatitude":11.5}`)
	assert.Contains(t, readAll(t, resp), `id="sidebar" class="panel" hidden`)
}

func TestShellPresetDispatchesFlyTo(t *testing.T) {
	_, ts, _ := newTestServer(t, config.Development)
	id := createViewer(t, ts)

	resp := postJSON(t, ts.URL+"/api/v1/shell/"+id+"/presets/djibouti", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readAll(t, resp)
	assert.Contains(t, body, "fly-to")
	assert.Contains(t, body, "43.15")

	resp = postJSON(t, ts.URL+"/api/v1/shell/"+id+"/presets/atlantis", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestShellEventsStream(t *testing.T) {
	_, ts, _ := newTestServer(t, config.Development)
	id := createViewer(t, ts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/shell/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 256)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	waitFor := func(substr string) bool {
		for line := range lines {
			if strings.Contains(line, substr) {
				return true
			}
		}
		return false
	}

	require.True(t, waitFor("layer-protected-areas"), "initial panel render")
	require.True(t, waitFor("layers-changed"), "initial layer stack")
	require.True(t, waitFor("vector-changed"), "initial dataset state")

	postJSON(t, ts.URL+"/api/v1/viewers/"+id+"/camera",
		`{"view":{"west":42,"south":10,"east":45,"north":13},"height":250000}`)
	assert.True(t, waitFor("vector-changed"), "refresh applied")

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/viewers/"+id, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()

	// the stream ends once the viewer is destroyed
	for range lines {
	}
	assert.NoError(t, ctx.Err())
}

func TestOpenAPIDocumentsRoutes(t *testing.T) {
	srv, _, _ := newTestServer(t, config.Development)
	paths := srv.OpenAPI().Paths
	for _, p := range []string{
		"/health",
		"/api/v1/info",
		"/api/v1/viewers",
		"/api/v1/viewers/{id}",
		"/api/v1/viewers/{id}/layers/{source}/toggle",
		"/api/v1/viewers/{id}/camera",
		"/api/v1/viewers/{id}/vector",
		"/api/v1/viewers/{id}/pick",
		"/api/v1/viewers/{id}/selection",
		"/api/v1/shell/{id}/events",
	} {
		assert.Contains(t, paths, p)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t, config.Development)
	createViewer(t, ts)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := readAll(t, resp)
	assert.Contains(t, body, "marine_active_viewers")
	assert.Contains(t, body, "marine_layer_attach_total")
}
