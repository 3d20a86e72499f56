package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/device"
	"github.com/nerrad567/devicehealth/internal/infrastructure/config"
	"github.com/nerrad567/devicehealth/internal/infrastructure/database"
	"github.com/nerrad567/devicehealth/internal/infrastructure/logging"
	"github.com/nerrad567/devicehealth/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicehealth/internal/ingest"
)

// shutdownGrace bounds how long Close waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// Deps wires the server to the rest of the service. DB, MQTT and
// Dispatcher may be nil; they only feed the health report.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Ingest     *ingest.Handler
	Query      *device.QueryService
	DB         *database.DB
	MQTT       *mqtt.Client
	Dispatcher *alert.Dispatcher
	Version    string
}

// Server serves the REST API, the WebSocket feed and the dashboard.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	ingest     *ingest.Handler
	query      *device.QueryService
	db         *database.DB
	mqtt       *mqtt.Client
	dispatcher *alert.Dispatcher
	version    string

	hub     *Hub
	server  *http.Server
	stopHub context.CancelFunc
}

// New validates deps and subscribes the WebSocket hub to ingestion
// results. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Ingest == nil:
		return nil, errors.New("api: ingestion handler is required")
	case deps.Query == nil:
		return nil, errors.New("api: query service is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		ingest:     deps.Ingest,
		query:      deps.Query,
		db:         deps.DB,
		mqtt:       deps.MQTT,
		dispatcher: deps.Dispatcher,
		version:    deps.Version,
		hub:        NewHub(deps.Logger),
	}
	s.ingest.AddListener(s.hub.PublishIngest)
	return s, nil
}

// Start binds the listen address and serves in the background. A port that
// cannot be bound is reported here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listening on %s: %w", addr, err)
	}

	hubCtx, cancel := context.WithCancel(ctx)
	s.stopHub = cancel
	go s.hub.Run(hubCtx)

	read := time.Duration(s.cfg.Timeouts.Read) * time.Second
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("api listening", "address", addr)
	go func() {
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", "error", err)
		}
	}()
	return nil
}

// Close stops the hub, then drains in-flight requests for up to
// shutdownGrace before dropping the remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.stopHub != nil {
		s.stopHub()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("api shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has succeeded.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api: server not started")
	}
	return nil
}
