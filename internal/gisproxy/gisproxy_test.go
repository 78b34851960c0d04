package gisproxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/config"
)

func TestResolverDevelopment(t *testing.T) {
	r := NewResolver(config.Development, config.Default().Catalog)

	assert.Equal(t, "/wdpa-api/server/rest/x", r.BrowserURL("/wdpa-api", "/server/rest/x"))
	assert.Equal(t, "https://data-gis.unep-wcmc.org/server/rest/x", r.ServerURL("/server/rest/x"))
}

func TestResolverProduction(t *testing.T) {
	r := NewResolver(config.Production, config.Default().Catalog)

	got := r.BrowserURL("/wdpa-api", "/server/rest/x?f=json")
	want := "https://corsproxy.io/?" + url.QueryEscape("https://data-gis.unep-wcmc.org/server/rest/x?f=json")
	assert.Equal(t, want, got)
	assert.Equal(t, want, r.ServerURL("/server/rest/x?f=json"))
}

func TestHandlerStripsPrefix(t *testing.T) {
	var gotPath, gotQuery, gotHost string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotHost = r.Host
		io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	h, err := Handler(upstream.URL, "/wdpa-api", "/habitats-api")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/habitats-api/server/rest/services/M/MapServer?f=json", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/server/rest/services/M/MapServer", gotPath)
	assert.Equal(t, "f=json", gotQuery)
	assert.Equal(t, upstream.Listener.Addr().String(), gotHost)
}

func TestHandlerUnknownPrefix(t *testing.T) {
	h, err := Handler("https://example.org", "/wdpa-api")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wdpa-apix/y", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerUpstreamDown(t *testing.T) {
	h, err := Handler("http://127.0.0.1:1", "/wdpa-api")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wdpa-api/q", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandlerRejectsRelativeUpstream(t *testing.T) {
	_, err := Handler("data-gis.example", "/wdpa-api")
	assert.Error(t, err)
}
