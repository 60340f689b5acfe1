package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lox/marbleguess/internal/game"
	"github.com/lox/marbleguess/internal/gameid"
)

// Server is the HTTP boundary: it maps REST requests onto engine operations
// and WebSocket upgrades onto broadcast subscriptions. The engine, registry
// and hub are constructed here and torn down with the process; nothing
// survives a restart.
type Server struct {
	cfg      *Config
	logger   *log.Logger
	engine   *game.Engine
	hub      *Hub
	metrics  *Metrics
	router   *gin.Engine
	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

// NewServer wires the registry, engine, hub and routes together. The clock
// parameter drives WebSocket keepalive; pass quartz.NewReal() outside tests.
func NewServer(cfg *Config, logger *log.Logger, clock quartz.Clock) *Server {
	metrics := NewMetrics()
	hub := NewHub(cfg, logger, clock, metrics)
	registry := game.NewRegistry()
	engine := game.NewEngine(registry, hub, gameid.NewGenerator(nil), logger)

	s := &Server{
		cfg:     cfg,
		logger:  logger.WithPrefix("server"),
		engine:  engine,
		hub:     hub,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Broadcast.AllowedOrigins),
		},
	}

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()

	s.httpSrv = &http.Server{
		Addr:    cfg.Addr(),
		Handler: s.router,
	}

	return s
}

func (s *Server) routes() {
	api := s.router.Group("/api")
	api.GET("/games", s.handleListGames)
	api.POST("/games", s.handleCreateGame)
	api.GET("/games/:id", s.handleGetGame)
	api.POST("/games/:id/join", s.handleJoinGame)
	api.POST("/games/:id/hide", s.handleHide)
	api.POST("/games/:id/bet", s.handleBet)
	api.POST("/games/:id/guess", s.handleGuess)
	api.POST("/games/:id/restart", s.handleRestart)
	api.POST("/games/:id/quit", s.handleQuit)

	s.router.GET("/ws/:id", s.handleWebSocket)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
}

// Handler exposes the router for tests driving the server with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Engine exposes the engine for tests.
func (s *Server) Engine() *game.Engine {
	return s.engine
}

// Start runs the listener until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.cfg.Addr())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		s.hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// requestLogger logs each request with its status and duration.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// originChecker allows any origin when the list is empty; set
// allowed_origins in config to lock upgrades down for real deployments.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}
