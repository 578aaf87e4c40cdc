package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/chungindustries/cpm-registry/internal/api/http"
	"github.com/chungindustries/cpm-registry/internal/api/middleware"
	"github.com/chungindustries/cpm-registry/internal/api/openapi"
	"github.com/chungindustries/cpm-registry/internal/domain/registry"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/config"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/logging"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/monitoring"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/tracing"
)

// Version is reported by the API and written into the OpenAPI document.
var Version = "0.0.0-development"

// Server wraps the HTTP server and dependencies
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
	service *registry.Service
	router  *gin.Engine
	handler http.Handler
}

// New creates a new server instance
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	}

	logger.Info("Initializing CPM registry",
		zap.String("version", Version),
		zap.String("addr", cfg.Addr()),
		zap.String("storage_dir", cfg.Storage.Dir),
	)

	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("cpm-registry", logger.Named("tracing"))

	regLogger := logger.Named("registry")
	index := registry.NewIndex(cfg.Storage.Dir).WithLogger(regLogger).WithMetrics(metrics)
	service := registry.NewService(registry.NewFileStore(cfg.Storage.Dir), index).
		WithLogger(regLogger).
		WithMetrics(metrics)

	doc, err := openapi.Build(openapi.DefaultInfo(Version, cfg.Server.PublicURL))
	if err != nil {
		tracer.Close()
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger.Named("http")))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	if cfg.CORS.Enabled {
		logger.Info("CORS enabled")
		router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	}
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

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	handlers := apihttp.NewHandlers(service, logger.Named("http"), apihttp.Options{
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Version:        Version,
		OpenAPI:        doc,
	})
	handlers.Register(router)

	logger.Info("Server initialized successfully")

	return &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		service: service,
		router:  router,
		handler: gzhttp.GzipHandler(router),
	}, nil
}

// Handler returns the root HTTP handler, compression included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Service returns the registry service backing the API.
func (s *Server) Service() *registry.Service {
	return s.service
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http.server")),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases background resources. Call after Run returns.
func (s *Server) Close() error {
	s.tracer.Close()
	_ = s.logger.Sync()
	return nil
}
