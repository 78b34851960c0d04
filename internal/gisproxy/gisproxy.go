// Package gisproxy switches the network path of GIS requests by run mode.
//
// In production the browser cannot reach the GIS host directly, so URLs are
// wrapped in a public CORS proxy. In development the browser talks to local
// prefixes ("/wdpa-api", "/habitats-api") which this package reverse-proxies
// to the upstream host with the prefix stripped.
package gisproxy

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/joeblew999/plat-marine/internal/config"
	"github.com/joeblew999/plat-marine/internal/logging"
)

// Resolver builds URLs for upstream GIS paths.
type Resolver struct {
	mode      config.Mode
	upstream  string
	corsProxy string
}

// NewResolver creates a resolver for the given mode and catalog.
func NewResolver(mode config.Mode, cat config.Catalog) *Resolver {
	return &Resolver{
		mode:      mode,
		upstream:  strings.TrimSuffix(cat.UpstreamHost, "/"),
		corsProxy: cat.CORSProxy,
	}
}

// BrowserURL returns the URL the globe page should use for path behind route.
func (r *Resolver) BrowserURL(route, path string) string {
	if r.mode == config.Production {
		return r.wrap(r.upstream + path)
	}
	return route + path
}

// ServerURL returns the URL this service uses for its own fetches of path.
// Development fetches go straight to upstream; the proxy prefix only exists
// for the browser.
func (r *Resolver) ServerURL(path string) string {
	if r.mode == config.Production {
		return r.wrap(r.upstream + path)
	}
	return r.upstream + path
}

func (r *Resolver) wrap(target string) string {
	return r.corsProxy + url.QueryEscape(target)
}

// Handler reverse-proxies every route prefix to the upstream host.
// Requests outside the prefixes get 404.
func Handler(upstreamHost string, routes ...string) (http.Handler, error) {
	target, err := url.Parse(upstreamHost)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream host: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream host %q must be absolute", upstreamHost)
	}

	log := logging.With("gisproxy")
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = target.Host
			pr.Out.URL.Path = stripRoute(pr.In.URL.Path, routes)
			pr.Out.URL.RawPath = ""
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if matchRoute(r.URL.Path, routes) == "" {
			http.NotFound(w, r)
			return
		}
		proxy.ServeHTTP(w, r)
	}), nil
}

func matchRoute(path string, routes []string) string {
	for _, route := range routes {
		if route == "" {
			continue
		}
		if path == route || strings.HasPrefix(path, route+"/") {
			return route
		}
	}
	return ""
}

func stripRoute(path string, routes []string) string {
	route := matchRoute(path, routes)
	p := strings.TrimPrefix(path, route)
	if p == "" {
		return "/"
	}
	return p
}
