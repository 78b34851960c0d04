package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-marine/internal/config"
	"github.com/joeblew999/plat-marine/internal/logging"
	"github.com/joeblew999/plat-marine/internal/server"
)

// Options defines all CLI flags and env vars for the marine server.
// Flags: --host, --port, --mode, --catalog, --log-level, --log-format
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_MODE, SERVICE_CATALOG, ...
type Options struct {
	Host      string `doc:"Host to bind to" default:"0.0.0.0"`
	Port      int    `doc:"Port to listen on" short:"p" default:"8087"`
	Mode      string `doc:"GIS network path: development (local proxy) or production (CORS proxy)" default:"development"`
	Catalog   string `doc:"Optional YAML catalog overriding GIS endpoints and tuning"`
	LogLevel  string `doc:"Log level: debug, info, warn, error" default:"info"`
	LogFormat string `doc:"Log format: json or console" default:"console"`
}

func loadConfig(opts *Options) (config.Config, error) {
	logging.Init(logging.Config{Level: opts.LogLevel, Format: opts.LogFormat})

	cfg, err := config.Load(opts.Catalog)
	if err != nil {
		return config.Config{}, err
	}
	cfg.Host = opts.Host
	cfg.Port = fmt.Sprintf("%d", opts.Port)
	cfg.Mode = config.Mode(opts.Mode)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newServer(opts *Options) (*server.Server, config.Config, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, config.Config{}, err
	}
	srv, err := server.New(cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return srv, cfg, nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var httpServer *http.Server
		var srv *server.Server

		hooks.OnStart(func() {
			var cfg config.Config
			var err error
			srv, cfg, err = newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-marine globe server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Mode:    %s (upstream %s)\n", cfg.Mode, cfg.Catalog.UpstreamHost)
			fmt.Println()
			fmt.Printf("  Pages:   %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpServer = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l := logging.Logger()
				l.Fatal().Err(err).Msg("server error")
			}
		})

		hooks.OnStop(func() {
			if httpServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				logging.Warn().Err(err).Msg("shutdown")
			}
			srv.Close()
		})
	})

	cli.Root().Use = "marine"
	cli.Root().Short = "Marine protected-area globe viewer"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	cli.Run()
}
