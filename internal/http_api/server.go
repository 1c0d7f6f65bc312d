// Package http_api exposes the liveness endpoints. It deliberately carries
// no business routes: the bot is the product surface, this server only
// answers deployment health checks.
package http_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
)

// HTTPServer is the HTTP server struct that will serve the API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger

	// router is the HTTP router
	router *gin.Engine
	// port is the port on which the server will listen
	port int

	// server is the underlying HTTP server
	server *http.Server

	// chainID and startedAt feed the status response
	chainID   string
	startedAt time.Time
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(chainID string, port int, development bool, logger *logger.Logger) models.APIServer {
	if !development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	server := &HTTPServer{
		router:    router,
		port:      port,
		logger:    logger,
		chainID:   chainID,
		startedAt: time.Now(),
	}

	// Define routes
	server.routes()

	return server
}

// Start starts the HTTP server
func (s *HTTPServer) Start() {
	addr := fmt.Sprintf("0.0.0.0:%v", s.port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.logger.Info("Starting HTTP server", "address", addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal("Failed to start the HTTP server: ", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}
