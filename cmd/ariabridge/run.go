package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aria-bridge/bridge-go/cmd/ariabridge/interactive"
	"github.com/aria-bridge/bridge-go/internal/config"
	"github.com/aria-bridge/bridge-go/pkg/bridge"
	"github.com/aria-bridge/bridge-go/pkg/control"
	"github.com/aria-bridge/bridge-go/pkg/log"
)

type runOptions struct {
	configPath  string
	url         string
	secret      string
	projectID   string
	metricsAddr string
	protocolLog string
	logLevel    string
	interactive bool
}

func runCmd() *cobra.Command {
	cmd, _ := newRunCommand()
	return cmd
}

func newRunCommand() (*cobra.Command, *runOptions) {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to a bridge host and keep the session alive",
		Long: `Run a bridge client until interrupted.

Settings are read from --config (YAML or TOML), then the ARIA_BRIDGE_URL,
ARIA_BRIDGE_SECRET and ARIA_BRIDGE_PROJECT_ID environment variables, then
the flags below.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			return runBridge(cmd.Context(), settings, opts.interactive)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml)")
	f.StringVar(&opts.url, "url", "", "Bridge host URL (default "+bridge.DefaultURL+")")
	f.StringVar(&opts.secret, "secret", "", "Shared secret")
	f.StringVar(&opts.projectID, "project", "", "Project ID announced in hello")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	f.StringVar(&opts.protocolLog, "protocol-log", "", "Record protocol events to this file")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "Start an interactive console")
	return cmd, opts
}

// settings merges the config file and environment with the flags that were
// set explicitly.
func (o runOptions) settings(cmd *cobra.Command) (config.Settings, error) {
	s, err := config.Load(o.configPath)
	if err != nil {
		return s, err
	}

	changed := cmd.Flags().Changed
	if changed("url") {
		s.Bridge.URL = o.url
	}
	if changed("secret") {
		s.Bridge.Secret = o.secret
	}
	if changed("project") {
		s.Bridge.ProjectID = o.projectID
	}
	if changed("metrics-addr") {
		s.MetricsAddr = o.metricsAddr
	}
	if changed("protocol-log") {
		s.ProtocolLog = o.protocolLog
	}
	if changed("log-level") {
		if err := s.LogLevel.UnmarshalText([]byte(o.logLevel)); err != nil {
			return s, fmt.Errorf("parse log-level: %w", err)
		}
	}
	return s, s.Bridge.Validate()
}

func runBridge(ctx context.Context, s config.Settings, console bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: s.LogLevel}))

	opts := []bridge.Option{bridge.WithLogger(logger)}

	if s.ProtocolLog != "" {
		plog, err := log.NewFileLogger(s.ProtocolLog)
		if err != nil {
			return fmt.Errorf("open protocol log: %w", err)
		}
		defer plog.Close()
		opts = append(opts, bridge.WithProtocolLogger(plog))
		logger.Info("recording protocol log", "path", plog.Path())
	}

	if s.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, bridge.WithMetrics(bridge.NewMetrics(bridge.WithRegistry(registry))))

		srv := &http.Server{
			Addr:              s.MetricsAddr,
			Handler:           metricsRouter(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving metrics", "addr", s.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client, err := bridge.New(s.Bridge, opts...)
	if err != nil {
		return err
	}
	client.OnControl(control.HandlerFunc(builtinActions))

	if err := client.Start(ctx); err != nil {
		return err
	}

	if console {
		c, err := interactive.New(client)
		if err != nil {
			client.Stop()
			return err
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go c.Run(ctx, cancel)
		<-ctx.Done()
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down")
	client.Stop()
	return nil
}

// metricsRouter serves the registry on /metrics.
func metricsRouter(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// builtinActions answers the control actions every ariabridge run supports.
func builtinActions(ctx context.Context, req control.Request) (any, error) {
	switch req.Action {
	case "echo":
		var args any
		if err := req.Bind(&args); err != nil {
			return nil, err
		}
		return map[string]any{"echo": args}, nil
	case "ping":
		return map[string]any{"pong": time.Now().UnixMilli()}, nil
	case "fail":
		return nil, errors.New("requested failure")
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
}
