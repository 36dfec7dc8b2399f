package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/api/http"
	"github.com/driftwatch/driftwatch/internal/api/middleware"
	"github.com/driftwatch/driftwatch/internal/api/ws"
	"github.com/driftwatch/driftwatch/internal/infrastructure/config"
	"github.com/driftwatch/driftwatch/internal/infrastructure/governor"
	"github.com/driftwatch/driftwatch/internal/infrastructure/logging"
	"github.com/driftwatch/driftwatch/internal/infrastructure/monitoring"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	governor *governor.Governor
	hub      *ws.Hub
	registry *prometheus.Registry
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing driftwatch server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
	)

	// Initialize metrics first (needed by other components)
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.New(registry)
	logger.Info("Performance monitoring initialized")

	// Load per-source budgets
	var limits map[string]governor.Limits
	if cfg.Sources.Path != "" {
		loaded, err := config.LoadSources(cfg.Sources.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load sources: %w", err)
		}
		limits = loaded
		logger.Info("Loaded source budgets",
			zap.String("path", cfg.Sources.Path),
			zap.Int("sources", len(limits)),
		)
	} else {
		limits = config.DefaultSources()
		logger.Info("Using built-in source budgets", zap.Int("sources", len(limits)))
	}
	metrics.SetSourcesConfigured(len(limits))

	// Event hub feeds breaker and backoff notifications to /stream clients
	hub := ws.NewHub(logger.Named("stream")).WithMetrics(metrics)

	// Governor policy callbacks fan out to logs, metrics, and the hub
	govLog := logger.Named("governor")
	policy := cfg.Governor.Policy()
	policy.OnStateChange = func(source string, from, to governor.State) {
		if to == governor.StateOpen {
			govLog.Warn("Source tripped", zap.String("source", source))
		} else {
			govLog.Info("Source recovered", zap.String("source", source))
		}
		metrics.SetBreakerOpen(source, to == governor.StateOpen)
		metrics.RecordBreakerTransition(source, from.String(), to.String())
		hub.Broadcast(ws.NewBreakerEvent(source, from.String(), to.String()))
	}
	policy.OnBackoff = func(source string, failures int, delay time.Duration, throttled bool) {
		govLog.Warn("Backoff scheduled",
			zap.String("source", source),
			zap.Int("failures", failures),
			zap.Duration("delay", delay),
			zap.Bool("throttled", throttled),
		)
		hub.Broadcast(ws.NewBackoffEvent(source, failures, delay, throttled))
	}
	gov := governor.New(limits,
		governor.WithPolicy(policy),
		governor.WithMetrics(metrics),
	)
	logger.Info("Governor initialized",
		zap.Int("sources", len(limits)),
		zap.Int("trip_threshold", cfg.Governor.TripThreshold),
	)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Create handlers
	handlers := http.NewHandlers(gov, metrics, hub)
	wsHandler := ws.NewHandler(hub, logger.Named("stream"))

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Source status
	router.GET("/sources", handlers.ListSources)
	router.GET("/sources/:name", handlers.GetSource)

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	// Prometheus exposition
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		governor: gov,
		hub:      hub,
		registry: registry,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Governor exposes the admission API for in-process collaborators.
func (s *Server) Governor() *governor.Governor {
	return s.governor
}

// Router exposes the HTTP handler for embedding and tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
