package server

import (
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/goccy/go-json"

	"github.com/joeblew999/plat-marine/internal/api"
	"github.com/joeblew999/plat-marine/internal/api/shell"
	"github.com/joeblew999/plat-marine/internal/arcgis"
	"github.com/joeblew999/plat-marine/internal/config"
	"github.com/joeblew999/plat-marine/internal/gisproxy"
	"github.com/joeblew999/plat-marine/internal/logging"
	"github.com/joeblew999/plat-marine/internal/metrics"
	"github.com/joeblew999/plat-marine/internal/service"
	"github.com/joeblew999/plat-marine/internal/templates"
	"github.com/joeblew999/plat-marine/web"
)

// cesiumVersion is the CesiumJS release loaded by the globe page.
const cesiumVersion = "1.121"

// Server is the marine globe HTTP server.
type Server struct {
	config   config.Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	viewers  *service.ViewerService
	renderer *templates.Renderer
}

// Option customizes a Server.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the client used for upstream GIS requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates a new marine globe server.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	renderer, err := templates.New(web.FS, web.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-marine API", "1.0.0")
	humaConfig.Info.Description = "Marine protected-area globe: imagery layer provisioning, viewport-driven WDPA features and pick/inspect."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, api.LinkTransformer())

	humaAPI := humago.New(mux, humaConfig)

	gis := arcgis.New(o.httpClient)
	var client service.GISClient = gis
	if ttl := cfg.Catalog.MetadataTTL; ttl > 0 {
		client = arcgis.NewCached(gis, 64, ttl)
	}
	resolver := gisproxy.NewResolver(cfg.Mode, cfg.Catalog)
	viewers := service.NewViewerService(service.Deps{
		Provisioner: service.NewProvisioner(client, resolver, cfg.Catalog),
		Refresher:   service.NewVectorRefresher(client, resolver, cfg.Catalog.FeatureQueryPath, cfg.Catalog.VectorMaxHeight),
		DatasetName: cfg.Catalog.DatasetName,
	})

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		viewers:  viewers,
		renderer: renderer,
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	s.handler = requestLogger(mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Viewers returns the viewer session registry.
func (s *Server) Viewers() *service.ViewerService {
	return s.viewers
}

// Close tears down every live viewer.
func (s *Server) Close() error {
	for _, v := range s.viewers.List() {
		_ = s.viewers.Delete(v.ID())
	}
	return nil
}

func (s *Server) routes() error {
	// REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(&api.Services{Viewers: s.viewers}))
	api.NewInfoHandler(s.config, s.viewers.Len).RegisterRoutes(s.humaAPI)

	// Shell SSE routes using Huma + Datastar SDK
	shell.New(s.viewers, s.renderer).RegisterRoutes(s.humaAPI)

	s.mux.Handle("/metrics", metrics.Handler())

	// The browser reaches the GIS host through local prefixes in development.
	if s.config.Mode == config.Development {
		routes := proxyRoutes(s.config.Catalog)
		proxy, err := gisproxy.Handler(s.config.Catalog.UpstreamHost, routes...)
		if err != nil {
			return fmt.Errorf("gis proxy: %w", err)
		}
		for _, route := range routes {
			s.mux.Handle(route+"/", proxy)
		}
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
	return nil
}

// proxyRoutes lists the distinct proxy prefixes of the map services.
func proxyRoutes(cat config.Catalog) []string {
	var routes []string
	seen := map[string]bool{}
	for _, svc := range []config.MapService{cat.Basemap, cat.ProtectedAreas, cat.Mangroves} {
		if svc.Route == "" || svc.URL != "" || seen[svc.Route] {
			continue
		}
		seen[svc.Route] = true
		routes = append(routes, svc.Route)
	}
	return routes
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-marine",
		"status":  "running",
		"mode":    string(s.config.Mode),
	})
}

// ViewerPage is the data of the globe page template.
type ViewerPage struct {
	ID            string
	Bootstrap     service.BootstrapOptions
	CesiumVersion string
}

// handleViewer starts a viewer session and serves the globe page bound to it.
func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := s.viewers.Create(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("viewer bootstrap failed")
		http.Error(w, "Viewer unavailable", http.StatusInternalServerError)
		return
	}

	html, err := s.renderer.Render("viewer-page", ViewerPage{
		ID:            v.ID(),
		Bootstrap:     v.Bootstrap(),
		CesiumVersion: cesiumVersion,
	})
	if err != nil {
		logging.Error().Err(err).Msg("render viewer page")
		_ = s.viewers.Delete(v.ID())
		http.Error(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	fmt.Fprint(w, html)
}
