package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/trustgate/trustgate/internal/admin"
	"github.com/trustgate/trustgate/internal/auth"
	"github.com/trustgate/trustgate/internal/canon"
	"github.com/trustgate/trustgate/internal/config"
	"github.com/trustgate/trustgate/internal/gateway"
	"github.com/trustgate/trustgate/internal/mcpclient"
	"github.com/trustgate/trustgate/internal/registry"
	"github.com/trustgate/trustgate/internal/scheduler"
	"github.com/trustgate/trustgate/internal/snapshotter"
	"github.com/trustgate/trustgate/internal/store"
	"github.com/trustgate/trustgate/internal/telemetry"
	"github.com/trustgate/trustgate/internal/trustgateerr"
)

var serveDevMode bool
var servicesFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin control plane and proxy gateway",
	Long: `Start trustgate's two listeners:

  - the admin control plane (service CRUD, approve, diff, audit, client-config)
  - the proxy gateway (transparent MCP forwarding gated by approval state)

Example:
  trustgate serve
  trustgate --config /path/to/trustgate.yaml serve --dev`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "enable development mode (relaxed admin auth, debug logging)")
	serveCmd.Flags().StringVar(&servicesFile, "services-file", "", "path to a standalone services[] seed YAML file, merged with the config's own services: block")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveDevMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if servicesFile != "" {
		seeds, err := config.LoadServicesFile(servicesFile)
		if err != nil {
			return fmt.Errorf("load services file: %w", err)
		}
		cfg.Services = append(cfg.Services, seeds...)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	logger.Debug("log level configured", "configured", cfg.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.Admin.DisableUI {
		logger.Warn("admin.disable_ui has no effect: trustgate has no HTML admin UI")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger)
}

// run wires every core component together and blocks until ctx is
// cancelled, then shuts everything down in reverse dependency order.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var telemetryWriter io.Writer
	if cfg.Telemetry.Enabled {
		telemetryWriter = os.Stderr
	}
	provider, err := telemetry.NewProvider(telemetryWriter)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	st, err := store.Open(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	var filter canon.VolatileFilter
	if cfg.Canon.FilterExpr != "" {
		celFilter, err := canon.NewCELVolatileFilter(cfg.Canon.FilterExpr)
		if err != nil {
			return fmt.Errorf("compile canon.filter_expr: %w", err)
		}
		filter = celFilter
	}

	client := mcpclient.New()
	snap := snapshotter.New(client, provider.Tracer("trustgate.snapshotter"), filter, logger)
	reg := registry.New()
	signal := scheduler.NewSignal()

	interval := time.Duration(cfg.Polling.IntervalSeconds) * time.Second
	checker := scheduler.NewChecker(st, snap, interval, signal, logger)
	poller := scheduler.NewPoller(st, reg, interval, signal, logger)

	adminService, err := admin.New(st, snap, signal, cfg.Polling.MinCheckFrequency, cfg.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("init admin service: %w", err)
	}

	if err := seedServices(ctx, adminService, cfg.Services, logger); err != nil {
		return fmt.Errorf("seed services: %w", err)
	}

	password, generated := cfg.ResolveAdminPassword()
	if generated {
		logger.Warn("no admin password configured, generated a random one for this run", "password", password)
	}
	authenticator, err := auth.New(password, cfg.DevMode)
	if err != nil {
		return fmt.Errorf("init admin authenticator: %w", err)
	}

	apiHandler := admin.NewAPIHandler(adminService, logger)
	gw := gateway.New(reg, logger)

	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.Handle("/", apiHandler.Routes(authenticator.Middleware))

	adminServer := &http.Server{Addr: cfg.Admin.ListenAddr, Handler: adminMux}
	gatewayServer := &http.Server{Addr: cfg.Gateway.ListenAddr, Handler: gw.Routes()}

	go checker.Run(ctx)
	go poller.Run(ctx)

	errc := make(chan error, 2)
	go func() { errc <- serveListener(adminServer, "admin", logger) }()
	go func() { errc <- serveListener(gatewayServer, "gateway", logger) }()

	logger.Info("trustgate started",
		"admin_addr", cfg.Admin.ListenAddr,
		"gateway_addr", cfg.Gateway.ListenAddr,
		"dev_mode", cfg.DevMode,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errc:
		if err != nil {
			logger.Error("listener failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var shutdownErrs []error
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("admin server shutdown: %w", err))
	}
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("gateway server shutdown: %w", err))
	}
	if len(shutdownErrs) > 0 {
		return errors.Join(shutdownErrs...)
	}

	logger.Info("trustgate stopped")
	return nil
}

// serveListener runs srv.ListenAndServe, logging which listener is starting
// and returning nil on the expected http.ErrServerClosed shutdown path.
func serveListener(srv *http.Server, name string, logger *slog.Logger) error {
	logger.Info("listener starting", "listener", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", name, err)
	}
	return nil
}

// seedServices creates every configured service that doesn't already
// exist. Creation-only: an existing service of the same name is left
// untouched, matching config.go's documented seeding contract.
func seedServices(ctx context.Context, svc *admin.Service, seeds []config.ServiceSeed, logger *slog.Logger) error {
	for _, seed := range seeds {
		_, err := svc.GetService(ctx, seed.Name)
		if err == nil {
			logger.Debug("seed service already exists, skipping", "service", seed.Name)
			continue
		}
		if !trustgateerr.Is(err, trustgateerr.KindNotFound) {
			return fmt.Errorf("check seed service %s: %w", seed.Name, err)
		}

		_, err = svc.Create(ctx, admin.CreateInput{
			Name:                  seed.Name,
			UpstreamURL:           seed.UpstreamURL,
			Enabled:               seed.Enabled,
			CheckFrequencyMinutes: seed.CheckFrequencyMinutes,
		})
		if err != nil {
			return fmt.Errorf("seed service %s: %w", seed.Name, err)
		}
		logger.Info("seeded service from config", "service", seed.Name)
	}
	return nil
}

// discardSlogger returns a logger that drops everything, for CLI commands
// that only need the core components' constructors to accept one.
func discardSlogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
