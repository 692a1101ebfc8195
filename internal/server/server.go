package server

import (
	"context"
	"fmt"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/frameport/frameport/internal/api/http"
	"github.com/frameport/frameport/internal/api/middleware"
	"github.com/frameport/frameport/internal/component"
	"github.com/frameport/frameport/internal/hostdom"
	"github.com/frameport/frameport/internal/infrastructure/config"
	"github.com/frameport/frameport/internal/infrastructure/logging"
	"github.com/frameport/frameport/internal/infrastructure/monitoring"
	"github.com/frameport/frameport/internal/transport/wsbus"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	engine  *component.Engine
	bus     *wsbus.Bus
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize logger
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		l, err := logging.New(logging.Config{Level: cfg.Logging.Level})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
	}

	logger.Info("Initializing frameport host",
		zap.String("port", cfg.Server.Port),
		zap.String("manifest_dir", cfg.Engine.ManifestDir),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()

	// Initialize transport bus
	busOpts := wsbus.Options{}
	if cfg.RateLimit.Enabled {
		busOpts.MessagesPerSecond = cfg.RateLimit.MessagesPerSecond
		busOpts.Burst = cfg.RateLimit.Burst
	}
	if len(cfg.Engine.BridgeDomains) > 0 {
		domains := slices.Clone(cfg.Engine.BridgeDomains)
		busOpts.BridgePolicy = func(domain string) bool {
			return slices.Contains(domains, domain)
		}
	}
	bus := wsbus.New(logger, metrics, busOpts)

	// Load component definitions
	definitions := component.NewRegistry()
	seeder := component.NewSeeder(definitions, cfg.Engine.ManifestDir, logger)
	if err := seeder.Seed(); err != nil {
		logger.Warn("Failed to seed component definitions", zap.Error(err))
	}

	// The host page's DOM is driven over the bus once it connects.
	dom := hostdom.New(bus)

	engine := component.NewEngine(component.EngineConfig{
		Logger:          logger,
		Metrics:         metrics,
		Messenger:       bus,
		Opener:          dom,
		ResolveElement:  dom.ResolveElement,
		Peers:           bus,
		WindowHandleFor: bus.WindowHandle,
		Definitions:     definitions,
		Settings: component.Settings{
			RenderTimeout:      cfg.Engine.RenderTimeout,
			ClosePollInterval:  cfg.Engine.ClosePollInterval,
			CloseCheckDebounce: cfg.CloseCheck.Debounce,
			CloseCheckPhases:   cfg.CloseCheck.Phases,
			HostDomain:         cfg.Engine.HostDomain,
		},
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("mps", cfg.RateLimit.MessagesPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	}

	// Create handlers
	handlers := http.NewHandlers(engine, bus, metrics, logger)

	// Register routes
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	// Component catalog
	router.GET("/components", handlers.ListComponents)
	router.POST("/components/:tag/instances", handlers.RenderComponent)

	// Instance lifecycle
	router.GET("/instances", handlers.ListInstances)
	router.GET("/instances/:id", handlers.GetInstance)
	router.PUT("/instances/:id/props", handlers.UpdateProps)
	router.POST("/instances/:id/resize", handlers.ResizeInstance)
	router.POST("/instances/:id/show", handlers.ShowInstance)
	router.POST("/instances/:id/hide", handlers.HideInstance)
	router.DELETE("/instances/:id", handlers.CloseInstance)

	// WebSocket transport for the host page and child contexts
	router.GET("/connect", bus.HandleConnection)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	logger.Info("Server initialized successfully",
		zap.Int("components", definitions.Len()))

	return &Server{
		router:  router,
		engine:  engine,
		bus:     bus,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Engine exposes the embedding engine, mainly for tests.
func (s *Server) Engine() *component.Engine {
	return s.engine
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

	// Wake unload watchdogs first so instance teardown skips the child
	// round-trip, then close whatever is still live.
	s.engine.NotifyUnload()
	if err := s.engine.Instances().CloseAll(context.Background(), component.ReasonUnload); err != nil {
		s.logger.Error("Failed to close instances", zap.Error(err))
		return fmt.Errorf("failed to close instances: %w", err)
	}

	// Sync logger before exit
	s.logger.Sync()

	return nil
}
