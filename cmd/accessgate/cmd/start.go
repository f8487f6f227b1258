package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	api "github.com/Sentinel-Gate/accessgate/internal/adapter/inbound/http"
	"github.com/Sentinel-Gate/accessgate/internal/config"
	"github.com/Sentinel-Gate/accessgate/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the control plane",
	Long: `Start the accessgate control plane.

Gateways call /api/gateway/evaluate and /api/gateway/telemetry with their
X-API-Key. Operators use /internal/... with an admin token (see "accessgate
token"), or from localhost when admin.jwt_secret is unset.

Examples:
  # Start with config file settings
  accessgate start

  # Start in development mode (debug logging, demo organization "acme")
  accessgate start --dev

  # Start with a specific config file
  accessgate --config /path/to/accessgate.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, demo seed)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load without validation so CLI flags can override first.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(os.Stderr, cfg.Server)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("accessgate stopped")
	return nil
}

// run wires the control plane and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(telemetry.Options{
		ServiceName: "accessgate",
		Version:     Version,
		Stdout:      cfg.Telemetry.TraceStdout,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close backends", "error", err)
		}
	}()

	if err := a.seed(ctx); err != nil {
		return err
	}

	logger.Info("accessgate starting",
		"version", Version,
		"dev_mode", cfg.DevMode,
		"http_addr", cfg.Server.HTTPAddr,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Backend,
		"cache_ttl", cfg.Cache.TTL,
		"auto_record", cfg.Gateway.AutoRecord,
		"admin_auth", cfg.Admin.JWTSecret != "",
	)
	printBanner(os.Stderr, Version, cfg)

	srv := api.NewServer(a.handler,
		api.WithAddr(cfg.Server.HTTPAddr),
		api.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		api.WithServerLogger(logger),
	)
	return a.serve(ctx, srv)
}

// newLogger builds the process logger. Dev mode always logs at debug.
func newLogger(w io.Writer, cfg config.ServerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
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

func printBanner(w io.Writer, version string, cfg *config.Config) {
	const (
		reset  = "\033[0m"
		bold   = "\033[1m"
		cyan   = "\033[36m"
		green  = "\033[32m"
		yellow = "\033[33m"
		dim    = "\033[2m"
	)

	base := "http://" + cfg.Server.HTTPAddr
	if strings.HasPrefix(cfg.Server.HTTPAddr, ":") {
		base = "http://localhost" + cfg.Server.HTTPAddr
	}

	modeStr := green + "production" + reset
	if cfg.DevMode {
		modeStr = yellow + "development" + reset + dim + " (demo org acme)" + reset
	}
	admin := "bearer token"
	if cfg.Admin.JWTSecret == "" {
		admin = "localhost only"
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  %s%s accessgate %s%s\n", bold, cyan, version, reset)
	fmt.Fprintf(w, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(w, "  %-14s %s/api/gateway/evaluate\n", "Gateway API:", base)
	fmt.Fprintf(w, "  %-14s %s/internal (%s)\n", "Internal API:", base, admin)
	fmt.Fprintf(w, "  %-14s %s\n", "Mode:", modeStr)
	fmt.Fprintf(w, "  %-14s %s\n", "Store:", cfg.Store.Driver)
	fmt.Fprintf(w, "  %-14s %s (ttl %s)\n", "Policy cache:", cfg.Cache.Backend, cfg.Cache.TTL)
	fmt.Fprintf(w, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(w, "\n")
}
