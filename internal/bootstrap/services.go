package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/inventory-console/config"
	"github.com/target/inventory-console/internal/adapters/inventoryapi"
	"github.com/target/inventory-console/internal/navigation"
	"github.com/target/inventory-console/internal/observability/metrics"
	"github.com/target/inventory-console/internal/observability/statsd"
	"github.com/target/inventory-console/internal/ports"
	"github.com/target/inventory-console/internal/service"
)

// ServiceContainer holds the session core and its collaborators.
type ServiceContainer struct {
	State  *service.SessionState
	Auth   *service.AuthService
	Gate   *service.Gate
	Users  *service.UserAdminService
	Client *inventoryapi.Client

	// Navigator is what the session core navigates through (coalesced).
	Navigator navigation.Navigator

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   statsd.Sink
	MetricsClient *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Close releases observability resources.
func (c ServiceContainer) Close() error {
	if c.Observability.MetricsClient != nil {
		return c.Observability.MetricsClient.Close()
	}
	return nil
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Store  ports.KeyValueStore
	// Navigator receives navigation requests from the session core, e.g. a
	// navigation.Recorder for the console server or a navigation.Logger for the CLI.
	Navigator navigation.Navigator
	// Transport overrides the base HTTP transport for backend calls (tests).
	Transport http.RoundTripper
	Logger    *slog.Logger
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if !cfg.Metrics.IsEnabled() {
		return out
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled:    true,
		Address:    cfg.Metrics.StatsdAddress,
		Prefix:     cfg.Metrics.Prefix,
		GlobalTags: cfg.Metrics.Tags,
		Logger:     obsLogger,
	})
	if err != nil {
		obsLogger.Error("failed to initialise statsd client", "error", err)
		return out
	}
	out.MetricsClient = client
	out.MetricsSink = client
	return out
}

// NewServices wires store → session state → API client → services.
// The API client tears the session down through the state on any backend 401.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	if deps.Store == nil {
		return ServiceContainer{}, errors.New("session store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := buildObservability(logger, cfg.Observability)

	nav := deps.Navigator
	if nav == nil {
		nav = navigation.NewLogger(logger)
	}
	nav = navigation.NewCoalescer(nav, cfg.Navigation.CoalesceWindow)

	state := service.NewSessionState(deps.Store, logger)

	client, err := inventoryapi.New(inventoryapi.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		Base:      deps.Transport,
		Store:     deps.Store,
		Session:   state,
		Navigator: nav,
		OnUnauthorized: func(context.Context, *http.Request) {
			metrics.EmitSessionEvent(obs.MetricsSink, metrics.SessionEvent{
				Operation: metrics.OpUnauthorized,
				Result:    metrics.ResultNoop,
			})
		},
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create inventory api client: %w", err)
	}

	auth := service.NewAuthService(service.AuthServiceOptions{
		API:           client,
		Store:         deps.Store,
		State:         state,
		Navigator:     nav,
		Metrics:       obs.MetricsSink,
		Logger:        logger,
		RevokeTimeout: cfg.API.RevokeTimeout,
	})

	return ServiceContainer{
		State:         state,
		Auth:          auth,
		Gate:          service.NewGate(state, nav),
		Users:         service.NewUserAdminService(service.UserAdminServiceOptions{API: client, Logger: logger}),
		Client:        client,
		Navigator:     nav,
		Observability: obs,
	}, nil
}
