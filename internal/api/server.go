package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dosebox/dosebox-core/internal/catalog"
	"github.com/dosebox/dosebox-core/internal/infrastructure/config"
	"github.com/dosebox/dosebox-core/internal/infrastructure/logging"
	"github.com/dosebox/dosebox-core/internal/infrastructure/mqtt"
	"github.com/dosebox/dosebox-core/internal/organizer"
	"github.com/dosebox/dosebox-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Fleet      config.OrganizersConfig
	Logger     *logging.Logger
	Times      catalog.Repository
	Organizers organizer.Repository
	Service    *organizer.Service
	Telemetry  telemetry.Repository
	MQTT       *mqtt.Client // optional: health reporting only
	Version    string
}

// Server is the HTTP API server for DoseBox Core.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	fleet      config.OrganizersConfig
	logger     *logging.Logger
	times      catalog.Repository
	organizers organizer.Repository
	service    *organizer.Service
	telemetry  telemetry.Repository
	mqtt       *mqtt.Client
	version    string
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Times == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	if deps.Organizers == nil {
		return nil, fmt.Errorf("organizer repository is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("organizer service is required")
	}
	if deps.Telemetry == nil {
		return nil, fmt.Errorf("telemetry repository is required")
	}
	// MQTT is optional here — publish failures surface through the service

	fleet := deps.Fleet
	if fleet.DefaultColumns < 1 {
		fleet.DefaultColumns = 4
	}
	if fleet.MaxColumns < fleet.DefaultColumns {
		fleet.MaxColumns = fleet.DefaultColumns
	}

	return &Server{
		cfg:        deps.Config,
		fleet:      fleet,
		logger:     deps.Logger.With("component", "api"),
		times:      deps.Times,
		organizers: deps.Organizers,
		service:    deps.Service,
		telemetry:  deps.Telemetry,
		mqtt:       deps.MQTT,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
