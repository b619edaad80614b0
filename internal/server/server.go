// Package server exposes the broadcast pool over HTTP: a server-sent event
// stream, a websocket stream, a health probe, Prometheus metrics and the
// static web GUI.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rileyhilliard/boincwatch/internal/broadcast"
	"github.com/rileyhilliard/boincwatch/internal/errors"
	"github.com/rileyhilliard/boincwatch/internal/logger"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests once
// its context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Broadcaster is the part of broadcast.Pool the server needs.
type Broadcaster interface {
	Attach() *broadcast.Queue
	Detach(q *broadcast.Queue)
	Listeners() int
	Sources() []string
}

// Options configures a Server. The zero value serves the streams and health
// endpoint only.
type Options struct {
	// StaticDir holds the web GUI; index.html is served at /.
	StaticDir string

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler

	Logger logger.Logger
}

// Server routes HTTP requests to the pool.
type Server struct {
	pool      Broadcaster
	staticDir string
	log       logger.Logger
	started   time.Time
	upgrader  websocket.Upgrader
	engine    *gin.Engine
}

// New builds the router. Nothing listens until Serve or ListenAndServe.
func New(pool Broadcaster, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewEnvLogger("[http]")
	}

	s := &Server{
		pool:      pool,
		staticDir: opts.StaticDir,
		log:       log,
		started:   time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS())
	r.Use(Logger(log))

	r.GET("/results", s.Results)
	r.GET("/ws", s.WebSocket)
	r.GET("/api/v1/health", s.Health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	if s.staticDir != "" {
		// FileServer answers / with index.html.
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(s.staticDir))))
	} else {
		r.GET("/", s.Index)
	}

	s.engine = r
	return s
}

// Handler returns the router, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Listeners int      `json:"listeners"`
	Sources   []string `json:"sources"`
	Uptime    float64  `json:"uptime_seconds"`
}

// Health reports the consumer count and configured sources.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Listeners: s.pool.Listeners(),
		Sources:   s.pool.Sources(),
		Uptime:    time.Since(s.started).Seconds(),
	})
}

// Index lists the endpoints when no GUI is configured.
func (s *Server) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":      "boincwatch",
		"endpoints": []string{"/results", "/ws", "/api/v1/health", "/metrics"},
	})
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrServer,
			fmt.Sprintf("Can't listen on %s", addr),
			"Pick another port with --port or stop whatever is using it")
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully. Open streams see their request context cancelled with ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on http://%s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.WrapWithCode(err, errors.ErrServer, "HTTP server stopped", "")
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapWithCode(err, errors.ErrServer, "HTTP server didn't shut down cleanly", "")
	}
	return nil
}
