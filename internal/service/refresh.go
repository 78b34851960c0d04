package service

import (
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-marine/internal/arcgis"
	"github.com/joeblew999/plat-marine/internal/gisproxy"
)

// RefreshOutcome is what a refresh cycle did.
type RefreshOutcome string

const (
	// RefreshFetched: a response was applied and the dataset shown.
	RefreshFetched RefreshOutcome = "fetched"
	// RefreshHidden: camera above the height threshold; no fetch, dataset hidden.
	RefreshHidden RefreshOutcome = "hidden"
	// RefreshDisabled: protected areas are toggled off; no fetch, dataset hidden.
	RefreshDisabled RefreshOutcome = "disabled"
	// RefreshSkipped: no usable view rectangle; nothing changed.
	RefreshSkipped RefreshOutcome = "skipped"
	// RefreshFailed: the fetch failed; dataset unchanged.
	RefreshFailed RefreshOutcome = "failed"
	// RefreshStale: a newer cycle was applied first; response discarded.
	RefreshStale RefreshOutcome = "stale"
)

// RefreshResult reports one refresh cycle.
type RefreshResult struct {
	Outcome  RefreshOutcome `json:"outcome" enum:"fetched,hidden,disabled,skipped,failed,stale" doc:"What the cycle did"`
	Seq      uint64         `json:"seq" doc:"Sequence number of the cycle (0 when none was issued)"`
	Features int            `json:"features" doc:"Feature count of the dataset after the cycle"`
	Show     bool           `json:"show" doc:"Dataset visible after the cycle"`
	Version  uint64         `json:"version" doc:"Dataset content version after the cycle"`
}

// VectorRefresher decides whether a camera pose warrants a feature query
// and builds the query URL.
type VectorRefresher struct {
	client    FeatureClient
	resolver  *gisproxy.Resolver
	queryPath string
	maxHeight float64
}

// NewVectorRefresher creates a refresher querying queryPath, gated at maxHeight meters.
func NewVectorRefresher(client FeatureClient, resolver *gisproxy.Resolver, queryPath string, maxHeight float64) *VectorRefresher {
	return &VectorRefresher{client: client, resolver: resolver, queryPath: queryPath, maxHeight: maxHeight}
}

// plan classifies a camera pose. When the outcome is empty the caller
// should fetch from the returned URL.
func (r *VectorRefresher) plan(cam Camera) (RefreshOutcome, string) {
	if cam.View == nil {
		return RefreshSkipped, ""
	}
	b, ok := cam.View.Bound()
	if !ok {
		return RefreshSkipped, ""
	}
	if cam.Height > r.maxHeight {
		return RefreshHidden, ""
	}
	return "", r.QueryURL(b)
}

// QueryURL returns the server-side feature query URL for b.
func (r *VectorRefresher) QueryURL(b orb.Bound) string {
	return r.resolver.ServerURL(arcgis.EnvelopeQuery(r.queryPath, b))
}
