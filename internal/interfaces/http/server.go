// Package http exposes the Prompt Engine (C7) over a gin HTTP API plus a
// gorilla/websocket status stream for in-flight chain sessions.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promptgate/gateway/internal/infrastructure/promptengine"
)

// Config configures the HTTP listener.
type Config struct {
	Host string
	Port int
	Mode string // "debug" or "release"
}

// Server wraps the gin engine and its net/http.Server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wires the tool-execution/management handlers and the
// session-status websocket stream onto a gin router.
func NewServer(cfg Config, dispatcher *promptengine.Dispatcher, mgr ManagerAPI, sessions SessionLookup, logger *zap.Logger) *Server {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	toolHandler := NewToolHandler(dispatcher, logger)
	manageHandler := NewManageHandler(mgr, logger)
	wsHandler := NewSessionStatusHandler(sessions, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/tools/execute", toolHandler.Execute)
		v1.POST("/tools/resume", toolHandler.Resume)

		v1.GET("/tools/manage/:kind", manageHandler.List)
		v1.GET("/tools/manage/:kind/:id", manageHandler.Inspect)
		v1.POST("/tools/manage/:kind", manageHandler.Create)
		v1.PUT("/tools/manage/:kind/:id", manageHandler.Update)
		v1.DELETE("/tools/manage/:kind/:id", manageHandler.Delete)
		v1.GET("/tools/manage/:kind/:id/history", manageHandler.History)
		v1.GET("/tools/manage/:kind/:id/compare", manageHandler.Compare)
		v1.POST("/tools/manage/:kind/:id/rollback/:version", manageHandler.Rollback)
		v1.POST("/tools/manage/reload", manageHandler.Reload)
	}

	router.GET("/ws/sessions/:chain_id", wsHandler.Serve)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
