// Package diag exposes the diagnostics HTTP listener: a health probe and the
// Prometheus metrics endpoint. It is off unless an address is configured.
package diag

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fitsch/aggregator/internal/document"
)

// Server is the diagnostics listener.
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// New builds the listener. The document store may be nil; health then only
// reports process liveness.
func New(addr string, store *document.Store, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				status["status"] = "degraded"
				status["document_store"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, status)
				return
			}
			status["document_store"] = "ok"
		}
		c.JSON(http.StatusOK, status)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "diag").Logger(),
	}
}

// Run starts serving on a background goroutine.
func (s *Server) Run() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("Diagnostics listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Diagnostics server failed")
		}
	}()
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
