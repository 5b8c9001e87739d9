package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/inventory-console/config"
	httpx "github.com/target/inventory-console/internal/http"
	"github.com/target/inventory-console/internal/navigation"
)

// HTTPServerConfig contains configuration for the console server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	// Navigation is the recorder the session core navigates into; the server
	// turns its pending targets into redirects.
	Navigation *navigation.Recorder
	Logger     *slog.Logger
}

// BuildHTTPHandler creates the console router.
func BuildHTTPHandler(cfg *HTTPServerConfig) http.Handler {
	services := httpx.RouterServices{
		Auth:   cfg.Services.Auth,
		Users:  cfg.Services.Users,
		State:  cfg.Services.State,
		Gate:   cfg.Services.Gate,
		Logger: cfg.Logger,
	}
	if cfg.Navigation != nil {
		services.Navigation = cfg.Navigation
	}
	return httpx.NewRouter(services)
}

// StartHTTPServer creates and starts the console server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig, errCh chan<- error) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
		appCfg.HTTP.Sanitize()
	}

	server := &http.Server{
		Addr:              appCfg.HTTP.Addr,
		Handler:           BuildHTTPHandler(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if errCh != nil {
				errCh <- err
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for console server shutdown.
type ShutdownConfig struct {
	Context  context.Context
	Server   *http.Server
	Services ServiceContainer
	Timeout  time.Duration
	Logger   *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the console server, then waits for
// background session work (revoke, restore validation) to finish.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("shutting down HTTP server")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if cfg.Services.Auth != nil {
		cfg.Services.Auth.Wait()
	}

	logger.Info("HTTP server stopped")
	return nil
}

// ServeConfig groups what RunServer needs.
type ServeConfig struct {
	Config     *config.AppConfig
	Services   ServiceContainer
	Navigation *navigation.Recorder
	Logger     *slog.Logger
}

// RunServer starts the console server and blocks until SIGINT/SIGTERM or a server error.
func RunServer(ctx context.Context, cfg ServeConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	errCh := make(chan error, 1)
	server := StartHTTPServer(&HTTPServerConfig{
		Config:     cfg.Config,
		Services:   cfg.Services,
		Navigation: cfg.Navigation,
		Logger:     logger,
	}, errCh)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down...")
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", "error", runErr)
	}

	var timeout time.Duration
	if cfg.Config != nil {
		timeout = cfg.Config.HTTP.ShutdownTimeout
	}
	if err := ShutdownHTTPServer(ShutdownConfig{
		Context:  context.WithoutCancel(ctx),
		Server:   server,
		Services: cfg.Services,
		Timeout:  timeout,
		Logger:   logger,
	}); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
