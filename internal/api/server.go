package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/sentinel-core/internal/accesslog"
	"github.com/nerrad567/sentinel-core/internal/auth"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/config"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/database"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/logging"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/metrics"
	"github.com/nerrad567/sentinel-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/sentinel-core/internal/resource"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Security      config.SecurityConfig
	Logger        *logging.Logger
	DB            *database.DB
	Users         auth.UserRepository
	Resources     resource.Repository
	AccessLogs    accesslog.Repository
	Authenticator *auth.Authenticator
	Guard         *auth.Guard
	Metrics       *metrics.Metrics
	MQTT          *mqtt.Client    // optional
	Influx        *influxdb.Client // optional
	Version       string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub and
// the asynchronous access-log recorder. Create it with New and start it
// with Start.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	db         *database.DB
	users      auth.UserRepository
	resources  resource.Repository
	accessLogs accesslog.Repository
	authn      *auth.Authenticator
	guard      *auth.Guard
	metrics    *metrics.Metrics
	mqtt       *mqtt.Client
	influx     *influxdb.Client
	version    string
	startTime  time.Time

	server      *http.Server
	hub         *Hub
	recorder    *accesslog.Recorder
	tickets     *ticketStore
	loginLimits *ipRateLimiter
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user repository is required")
	case deps.Resources == nil:
		return nil, fmt.Errorf("resource repository is required")
	case deps.AccessLogs == nil:
		return nil, fmt.Errorf("access log repository is required")
	case deps.Authenticator == nil:
		return nil, fmt.Errorf("authenticator is required")
	case deps.Guard == nil:
		return nil, fmt.Errorf("guard is required")
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.New(deps.Version, "")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		db:         deps.DB,
		users:      deps.Users,
		resources:  deps.Resources,
		accessLogs: deps.AccessLogs,
		authn:      deps.Authenticator,
		guard:      deps.Guard,
		metrics:    m,
		mqtt:       deps.MQTT,
		influx:     deps.Influx,
		version:    deps.Version,
		startTime:  time.Now(),
		tickets:    newTicketStore(),
	}

	s.hub = NewHub(s.logger)
	s.recorder = accesslog.NewRecorder(s.accessLogs, s.logger, accesslog.DefaultQueueSize, s.accessSinks()...)
	if s.secCfg.RateLimit.Enabled {
		s.loginLimits = newIPRateLimiter(s.secCfg.RateLimit.RequestsPerMinute, s.secCfg.RateLimit.Burst)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, the access-log recorder and the housekeeping
// loops, subscribes to inbound MQTT access reports, and launches the HTTP
// listener in a background goroutine. Stop it with Close().
func (s *Server) Start(ctx context.Context) error {
	srvCtx := s.startBackground(ctx)

	if err := s.subscribeAccessReports(); err != nil {
		s.logger.Warn("failed to subscribe to MQTT access reports", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadDuration(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadDuration(),
		WriteTimeout:      s.cfg.Timeouts.WriteDuration(),
		IdleTimeout:       s.cfg.Timeouts.IdleDuration(),
		BaseContext:       func(_ net.Listener) context.Context { return srvCtx },
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startBackground launches the goroutines that outlive single requests and
// returns the context that stops them.
func (s *Server) startBackground(ctx context.Context) context.Context {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)
	if s.loginLimits != nil {
		go s.loginLimits.cleanupLoop(srvCtx)
	}
	s.recorder.Start(srvCtx)

	return srvCtx
}

// Close gracefully shuts down the API server.
//
// In-flight requests get up to gracefulShutdownTimeout to finish. Queued
// access-log entries are written before Close returns.
func (s *Server) Close() error {
	var shutdownErr error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("API server shutting down")
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("shutting down API server: %w", err)
		}
	}

	if s.cancel != nil {
		s.recorder.Close()
		s.cancel()
	}
	return shutdownErr
}

// HealthCheck verifies the API server is running and its store answers.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	if s.db != nil {
		if err := s.db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api health check: %w", err)
		}
	}
	return nil
}
