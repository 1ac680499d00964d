// Package api runs the mock LinkMark bookmark backend used for local development.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/linkmark/internal/api/handlers"
	"github.com/router-for-me/linkmark/internal/api/middleware"
	"github.com/router-for-me/linkmark/internal/logging"
	log "github.com/sirupsen/logrus"
)

// DefaultAddr is the listen address of the mock backend.
const DefaultAddr = "127.0.0.1:8317"

const shutdownTimeout = 5 * time.Second

// Server is the mock backend.
type Server struct {
	engine    *gin.Engine
	bookmarks *handlers.BookmarkHandler
}

// NewServer builds the gin engine with logging, recovery and the bookmark routes.
func NewServer(debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery())

	s := &Server{engine: engine, bookmarks: handlers.NewBookmarkHandler()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		logging.SkipGinRequestLogging(c)
		handlers.Health(c)
	})

	api := s.engine.Group("/api", middleware.RequireBearer())
	api.POST("/bookmarks", s.bookmarks.Create)
	api.GET("/bookmarks", s.bookmarks.List)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("mock backend listening on http://%s/api", ln.Addr())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(stopCtx); err != nil {
		log.Errorf("mock backend stop failed: %v", err)
		return err
	}
	log.Info("mock backend stopped")
	return nil
}

// ListenAndServe listens on addr (DefaultAddr when empty) and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
