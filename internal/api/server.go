package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/dccutils-server/internal/bridge"
	"github.com/nerrad567/dccutils-server/internal/capture"
	"github.com/nerrad567/dccutils-server/internal/dcc"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/config"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/database"
	"github.com/nerrad567/dccutils-server/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ErrNoFreePort is returned by Start when no port of the configured range
// can be bound.
var ErrNoFreePort = errors.New("api: no free port")

// Bridge is the dispatch facade as the server uses it. *bridge.Bridge
// satisfies it.
type Bridge interface {
	bridge.Dispatcher
	Mode() bridge.Mode
	Stats() bridge.Stats
}

// EventPublisher forwards server events to an external bus. *mqtt.Client
// satisfies it.
type EventPublisher interface {
	PublishEvent(kind string, v any) error
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Bridge   Bridge
	Context  dcc.Context
	Captures capture.Repository // optional: capture history
	DB       *database.DB       // optional: pool metrics
	Events   EventPublisher     // optional: MQTT event relay
	Version  string
}

// Server is the HTTP API server.
//
// Every call into the automation context goes through the bridge; handlers
// never touch the context directly.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	bridge   Bridge
	dcc      dcc.Context
	captures capture.Repository
	db       *database.DB
	events   EventPublisher
	version  string

	server    *http.Server
	listener  net.Listener
	hub       *Hub
	cancel    context.CancelFunc
	startTime time.Time
	served    sync.WaitGroup
	now       func() time.Time
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, bridge, automation context)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Context == nil {
		return nil, fmt.Errorf("automation context is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		dcc:       deps.Context,
		captures:  deps.Captures,
		db:        deps.DB,
		events:    deps.Events,
		version:   deps.Version,
		hub:       NewHub(deps.Logger),
		startTime: time.Now(),
		now:       time.Now,
	}
	return s, nil
}

// Start binds a listener and serves HTTP in a background goroutine.
//
// With api.port > 0 only that port is tried. Otherwise the first bindable
// port of api.port_range wins; if there is none the failure is printed to
// the automation context's console and ErrNoFreePort is returned.
//
// Parameters:
//   - ctx: Parent context for background goroutines (WebSocket hub)
//
// Returns:
//   - error: If no listener could be bound
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String(), "mode", string(s.bridge.Mode()))

	s.served.Add(1)
	go func() {
		defer s.served.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// listen binds the first available port.
func (s *Server) listen() (net.Listener, error) {
	var lastErr error
	for _, port := range s.cfg.Ports() {
		ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, fmt.Sprint(port)))
		if err == nil {
			return ln, nil
		}
		lastErr = err
		s.logger.Debug("port unavailable", "port", port, "error", err)
	}

	if s.cfg.Port > 0 {
		return nil, fmt.Errorf("listening on port %d: %w", s.cfg.Port, lastErr)
	}

	r := s.cfg.PortRange
	msg := fmt.Sprintf("Cannot find a free port in the range [%d...%d]", r.Start, r.End-1)
	if err := bridge.Exec(s.bridge, "software_print", func() error {
		s.dcc.SoftwarePrint(msg)
		return nil
	}); err != nil {
		s.logger.Warn("printing to host console failed", "error", err)
	}
	return nil, fmt.Errorf("%w in range [%d...%d]", ErrNoFreePort, r.Start, r.End-1)
}

// Addr returns the bound listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
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
	s.served.Wait()
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
