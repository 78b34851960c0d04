package humastar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-marine/internal/templates"
)

func testRenderer(t *testing.T) *templates.Renderer {
	t.Helper()
	r, err := templates.New(fstest.MapFS{
		"t.html": {Data: []byte(`{{define "item"}}<li>{{.}}</li>{{end}}` +
			`{{define "empty-state"}}<p>{{.Title}}: {{.Message}}</p>{{end}}`)},
	})
	require.NoError(t, err)
	return r
}

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"pickLongitude":43.5,"pickLatitude":null,"pickEntity":"555","pickOnGlobe":true}`))
	require.NoError(t, err)
	lon, ok := s.Number("pickLongitude")
	assert.True(t, ok)
	assert.Equal(t, 43.5, lon)
	assert.Equal(t, "555", s.String("pickEntity"))
	assert.True(t, s.Bool("pickOnGlobe"))

	// null, wrong types and missing keys are not numbers
	_, ok = s.Number("pickLatitude")
	assert.False(t, ok)
	_, ok = s.Number("pickEntity")
	assert.False(t, ok)
	_, ok = s.Number("missing")
	assert.False(t, ok)
	assert.Empty(t, s.String("pickLongitude"))
	assert.False(t, s.Bool("missing"))

	s, err = ParseSignals([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = ParseSignals([]byte("{nope"))
	assert.Error(t, err)
}

func TestSignalsInputMustParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte("[1,")}
	_, err := in.MustParse()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}

func TestActions(t *testing.T) {
	actions := ActionsFor("v1", []ActionDef{
		{Rel: "pick", Pattern: "/api/v1/viewers/%s/pick", Method: "POST", Title: "Inspect a point"},
		{Rel: "vector", Pattern: "/api/v1/viewers/%s/vector"},
	})
	require.Len(t, actions, 2)
	assert.Equal(t, `</api/v1/viewers/v1/pick>; rel="pick"; method="POST"; title="Inspect a point"`, actions[0].LinkHeader())
	assert.Equal(t, `</api/v1/viewers/v1/vector>; rel="vector"`, actions[1].LinkHeader())
}

func TestRenderList(t *testing.T) {
	r := testRenderer(t)
	assert.Equal(t, "<li>a</li><li>b</li>", RenderList(r, "item", []any{"a", "b"}, "None", "nothing"))
	assert.Equal(t, "<p>None: nothing</p>", RenderList(r, "item", nil, "None", "nothing"))

	h := Handler{Renderer: r}
	assert.Equal(t, "<li>x</li>", h.Render("item", "x"))
	assert.Empty(t, h.Render("missing", nil))
}

func TestStream(t *testing.T) {
	h := &Handler{Renderer: testRenderer(t)}
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
	huma.Post(api, "/stream", func(ctx context.Context, in *SignalsInput) (*huma.StreamResponse, error) {
		signals, err := in.MustParse()
		if err != nil {
			return nil, err
		}
		return h.Stream(func(sse SSE) {
			sse.Patch(h.Render("item", signals.String("name")), "#list")
			sse.Replace(h.Render("item", "outer"), "#other")
			sse.Dispatch("fly-to", map[string]float64{"longitude": 43.15})
			sse.Error("boom")
		}), nil
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/stream", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		return w
	}

	resp := post(`{"name":"Moucha"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, body, "event: datastar-patch-elements")
	assert.Contains(t, body, "data: selector #list")
	assert.Contains(t, body, "data: mode inner")
	assert.Contains(t, body, "<li>Moucha</li>")
	assert.Contains(t, body, "<li>outer</li>")
	assert.Contains(t, body, "fly-to")
	assert.Contains(t, body, "event: datastar-patch-signals")
	assert.Contains(t, body, `"error":"boom"`)

	resp = post("{bad")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
