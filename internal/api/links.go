package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-marine/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/viewers>; rel="viewers"`,
		`</metrics>; rel="metrics"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/viewers>; rel="viewers"`,
	},
	"/api/v1/viewers": {
		`</viewer>; rel="alternate"; type="text/html"`,
	},
	"/api/v1/viewers/{id}": {
		`</api/v1/viewers>; rel="collection"`,
		`</api/v1/viewers/{id}/layers>; rel="layers"`,
	},
	"/api/v1/viewers/{id}/layers": {
		`</api/v1/viewers/{id}>; rel="up"`,
	},
	"/api/v1/viewers/{id}/vector": {
		`</api/v1/viewers/{id}>; rel="up"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link headers.
// Bodies implementing humastar.Actor add their state-dependent actions.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		id := ctx.Param("id")
		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", strings.ReplaceAll(link, "{id}", id))
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if actor, ok := v.(humastar.Actor); ok {
			for _, a := range actor.Actions() {
				ctx.AppendHeader("Link", a.LinkHeader())
			}
		}

		return v, nil
	}
}
