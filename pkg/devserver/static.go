package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// StaticStarter serves a pre-built site directory (e.g. vite's dist/) instead of running a dev server
type StaticStarter struct {
	Dir string

	// Address to listen on, host:port. Port 0 picks a free port.
	Address string

	Logger log.Logger
}

type StaticServer struct {
	server   *http.Server
	listener net.Listener
	logger   log.Logger

	done chan struct{}
	err  error

	stopOnce sync.Once
	stopErr  error
}

func (s StaticStarter) Start(ctx context.Context) (Server, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	info, err := os.Stat(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open site directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrNotADirectory, s.Dir)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %q: %w", s.Address, err)
	}

	srv := &StaticServer{
		listener: listener,
		logger:   log.With(logger, "addr", listener.Addr().String()),
		done:     make(chan struct{}),
	}
	srv.server = &http.Server{
		Handler:           NewStaticRouter(s.Dir, srv.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(srv.done)
		if err := srv.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.err = err
		}
	}()
	level.Info(srv.logger).Log("msg", "serving static site", "dir", s.Dir)

	return srv, nil
}

// NewStaticRouter serves files from dir, unknown paths fall back to index.html so client side routing works
func NewStaticRouter(dir string, logger log.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.NoRoute(func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet && ctx.Request.Method != http.MethodHead {
			ctx.Status(http.StatusMethodNotAllowed)
			return
		}

		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+ctx.Request.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			ctx.File(name)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			ctx.Status(http.StatusNotFound)
			return
		}

		ctx.File(index)
	})

	return router
}

func requestLogger(logger log.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		level.Debug(logger).Log("msg", "request", "method", ctx.Request.Method, "path", ctx.Request.URL.Path, "status", ctx.Writer.Status(), "duration", time.Since(start))
	}
}

// Addr is the base URL the site is served on
func (s *StaticServer) Addr() string {
	return "http://" + s.listener.Addr().String()
}

func (s *StaticServer) Done() <-chan struct{} {
	return s.done
}

func (s *StaticServer) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}

	if s.err != nil {
		return fmt.Errorf("%w: %w", ErrServerExited, s.err)
	}

	return ErrServerExited
}

func (s *StaticServer) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.stopErr = s.server.Shutdown(ctx)
		<-s.done
		level.Info(s.logger).Log("msg", "static server stopped")
	})

	return s.stopErr
}
