// Package server exposes the extraction pipeline and the segment store over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgpai22/smriti/internal/config"
	"github.com/mgpai22/smriti/internal/knowledge"
	"github.com/mgpai22/smriti/internal/logging"
	"github.com/mgpai22/smriti/internal/storage"
)

// Dependencies are the services handlers reach for. Pipeline.Summarizer may
// be nil when no provider key is configured; Store may be nil when storage
// is disabled.
type Dependencies struct {
	Pipeline *knowledge.Pipeline
	Store    storage.Store
	Logger   *logging.Logger
}

func (d *Dependencies) summarizerConfigured() bool {
	return d.Pipeline != nil && d.Pipeline.Summarizer != nil
}

type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	deps       *Dependencies
	logger     *logging.Logger
}

// New builds the engine with middleware and routes in place.
func New(cfg config.ServerConfig, deps *Dependencies) *Server {
	if deps == nil {
		deps = &Dependencies{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger.Named("http")))
	engine.Use(CORS())
	engine.Use(RequestSizeLimit(1 << 20))

	s := &Server{
		engine: engine,
		deps:   deps,
		logger: logger,
		httpServer: &http.Server{
			Addr:    cfg.Addr(),
			Handler: engine,
			// extraction waits on the LLM, so writes get a generous budget
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   3 * time.Minute,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		},
	}

	s.registerRoutes()
	return s
}

// Engine returns the gin engine for testing
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.index)
	s.engine.GET("/health", s.health)
	s.engine.POST("/extract", s.extract)

	v1 := s.engine.Group("/api/v1")
	segments := v1.Group("/segments")
	segments.GET("", s.searchSegments)
	segments.GET("/:id", s.getSegment)
	segments.PATCH("/:id", s.updateSegment)
	segments.DELETE("/:id", s.deleteSegment)

	v1.GET("/videos/:video_id", s.getVideoSegments)
	v1.GET("/stats", s.stats)
	v1.POST("/collections", s.createCollection)
	v1.GET("/collections/:id", s.getCollection)

	s.engine.NoRoute(func(c *gin.Context) {
		sendError(c, http.StatusNotFound, "The requested endpoint does not exist")
	})
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return <-serverErr
}
