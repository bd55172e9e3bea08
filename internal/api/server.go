// Package api provides the HTTP REST API and WebSocket server for Minihub Core.
//
// It exposes entity state, device and area management, automations, and the
// recent event and history stores, plus a WebSocket feed of live events.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/minihub-dev/minihub-core/internal/area"
	"github.com/minihub-dev/minihub-core/internal/automation"
	"github.com/minihub-dev/minihub-core/internal/device"
	"github.com/minihub-dev/minihub-core/internal/entity"
	"github.com/minihub-dev/minihub-core/internal/event"
	"github.com/minihub-dev/minihub-core/internal/history"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/config"
	"github.com/minihub-dev/minihub-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ServiceCaller routes entity service calls. In the full wiring this is the
// integration manager, which forwards to the owning integration or falls back
// to the entity authority's built-ins.
type ServiceCaller interface {
	CallService(ctx context.Context, entityID, service string, data map[string]any) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Logger      *logging.Logger
	Entities    *entity.Authority
	Devices     device.Repository
	Areas       area.Repository
	Automations automation.Repository
	Engine      *automation.Engine
	Services    ServiceCaller
	Events      event.Repository
	History     history.Repository
	Bus         *event.Bus
	Version     string
}

// Server is the HTTP API server for Minihub Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	entities    *entity.Authority
	devices     device.Repository
	areas       area.Repository
	automations automation.Repository
	engine      *automation.Engine
	services    ServiceCaller
	events      event.Repository
	history     history.Repository
	bus         *event.Bus
	version     string
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity authority is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("event bus is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		entities:    deps.Entities,
		devices:     deps.Devices,
		areas:       deps.Areas,
		automations: deps.Automations,
		engine:      deps.Engine,
		services:    deps.Services,
		events:      deps.Events,
		history:     deps.History,
		bus:         deps.Bus,
		version:     deps.Version,
	}
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, starts the bus-to-hub
// relay, and launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)
	go s.relayEvents(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// relayEvents forwards every bus event to the WebSocket hub. A lagging
// relay logs and continues; the hub itself disconnects slow clients.
func (s *Server) relayEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer sub.Close()

	for {
		ev, err := sub.Recv(ctx)
		if err != nil {
			var lag *event.LagError
			if errors.As(err, &lag) {
				s.logger.Warn("websocket relay lagging", "missed", lag.Missed)
				continue
			}
			return
		}
		s.hub.BroadcastEvent(ev)
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
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
