package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Picks.WithLabelValues("hit"))
	Picks.WithLabelValues("hit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Picks.WithLabelValues("hit")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	VectorRefreshes.WithLabelValues("fetched").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `marine_vector_refresh_total{outcome="fetched"}`)
}
