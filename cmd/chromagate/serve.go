package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chromagate/internal/chroma"
	"github.com/fyrsmithlabs/chromagate/internal/config"
	"github.com/fyrsmithlabs/chromagate/internal/gateway"
	httpserver "github.com/fyrsmithlabs/chromagate/internal/http"
	"github.com/fyrsmithlabs/chromagate/internal/logging"
	"github.com/fyrsmithlabs/chromagate/internal/session"
	"github.com/fyrsmithlabs/chromagate/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the command gateway",
		Long: `Start the HTTP command gateway.

Configuration is read from --config (default ~/.config/chromagate/config.yaml)
and CHROMAGATE_* environment variables, e.g. CHROMAGATE_SERVER_PORT=9292.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	return cmd
}

// run starts the gateway and blocks until ctx is cancelled or the server
// fails.
//
//  1. Initializes telemetry and the logger
//  2. Builds the session store, gateway and HTTP server
//  3. Optionally configures the startup session
//  4. Shuts down within server.shutdown_timeout once ctx is done
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if degraded, reasons := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", reasons))
	}

	logger.Info(ctx, "starting chromagate",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Duration("chroma_request_timeout", cfg.Chroma.RequestTimeout.Duration()),
	)

	store := session.New(chroma.NewHTTPDialer(
		cfg.Chroma.RequestTimeout.Duration(),
		chroma.WithLogger(logger.Named("chroma")),
	))
	gw := gateway.New(store)

	if cfg.Connection.AutoConnect {
		autoConnect(ctx, gw, cfg.Connection, logger)
	}

	opts := []httpserver.Option{
		httpserver.WithVersion(version),
		httpserver.WithTelemetry(tel),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, httpserver.WithMetricsPath(cfg.Metrics.Path))
	}
	srv, err := httpserver.NewServer(gw, logger, cfg.Server, opts...)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	stopped := false
	select {
	case err := <-errCh:
		stopped = true
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if !stopped {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "http server shutdown", zap.Error(err))
		}
		<-errCh
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "telemetry shutdown", zap.Error(err))
	}

	logger.Info(shutdownCtx, "chromagate stopped")
	return serveErr
}

func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}

	var provider log.LoggerProvider
	if logCfg.Output.OTEL {
		provider = tel.LoggerProvider()
	}
	return logging.NewLogger(logCfg, provider)
}

// autoConnect configures the startup session. Failures are logged and the
// server starts without a session; callers can still run create_client.
func autoConnect(ctx context.Context, gw *gateway.Gateway, conn config.ConnectionConfig, logger *logging.Logger) {
	ctx = logging.WithCommand(ctx, "create_client")

	info, err := gw.Connect(ctx, gateway.ConnectRequest{
		URL:      conn.URL,
		Auth:     conn.Auth.AuthPayload(),
		Tenant:   conn.Tenant,
		Database: conn.Database,
	})
	if err != nil {
		logger.Error(ctx, "auto-connect failed",
			zap.String("url", conn.URL),
			zap.String("kind", string(gateway.KindOf(err))),
			zap.Error(err),
		)
		return
	}

	beat, err := gw.HealthCheck(ctx)
	if err != nil {
		logger.Warn(ctx, "auto-connect session configured but chroma is unreachable",
			zap.String("url", conn.URL),
			zap.Error(err),
		)
		return
	}
	logger.Info(ctx, "auto-connect session configured",
		zap.String("url", info.URL),
		zap.String("auth_method", string(info.AuthMethod)),
		zap.String("tenant", info.Tenant),
		zap.String("database", info.Database),
		zap.Int64("heartbeat", beat),
	)
}
