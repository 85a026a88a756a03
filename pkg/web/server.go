// Package web serves the focusd REST API, the landmark ingest socket and
// the live score dashboard socket.
package web

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/hub"
	"github.com/teslashibe/go-focus/pkg/ingest"
	"github.com/teslashibe/go-focus/pkg/protocol"
	"github.com/teslashibe/go-focus/pkg/session"
)

// Version is reported by /health.
var Version = "dev"

// UserHeader carries the opaque user ID on every session request and
// websocket upgrade.
const UserHeader = ingest.UserHeader

// Options configures a Server.
type Options struct {
	Addr  string // listen address, e.g. ":8080"
	Debug bool   // request logging
}

// Server is the focusd HTTP server
type Server struct {
	app     *fiber.App
	addr    string
	started time.Time

	sessions *session.Manager
	gateway  *ingest.Gateway
	scoreHub *hub.Hub

	// Stats
	scoresBroadcast atomic.Uint64
	reports         atomic.Uint64
}

// NewServer creates a server over a session manager
func NewServer(opts Options, sessions *session.Manager) *Server {
	s := &Server{
		addr:     opts.Addr,
		started:  time.Now(),
		sessions: sessions,
		gateway:  ingest.NewGateway(sessions),
		scoreHub: hub.New("scores"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "focusd",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Content-Type," + UserHeader,
	}))
	if opts.Debug {
		app.Use(logger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	// API routes
	api := app.Group("/api")
	sessionsAPI := api.Group("/sessions")
	sessionsAPI.Post("/", s.handleStartSession)
	sessionsAPI.Get("/", s.handleListSessions)
	sessionsAPI.Get("/analytics", s.handleAnalytics)
	sessionsAPI.Get("/:id", s.handleGetSession)
	sessionsAPI.Get("/:id/logs", s.handleGetLogs)
	sessionsAPI.Post("/:id/frames", s.handleFrame)
	sessionsAPI.Post("/:id/focus-log", s.handleFocusLog)
	sessionsAPI.Put("/:id/end", s.handleEndSession)
	s.gateway.RegisterAPIRoutes(api)

	// Landmark providers
	s.gateway.RegisterRoutes(app)

	// Dashboard WebSocket
	app.Use("/ws/scores", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/scores", s.authorizeScores, websocket.New(s.handleScoresWS))

	sessions.OnUpdate(s.broadcastUpdate)

	s.app = app
	return s
}

// App returns the underlying Fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the score hub and serves until ctx is done
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the score hub and serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.scoreHub.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Warn("shutdown error", "error", err)
		}
	}()

	log.Info("focusd listening", "addr", ln.Addr().String(),
		"ingest", "/ws/ingest/:session", "dashboard", "/ws/scores")
	return s.app.Listener(ln)
}

// broadcastUpdate forwards every accepted frame's score to dashboards
func (s *Server) broadcastUpdate(u session.Update) {
	if u.Report {
		s.reports.Add(1)
	}
	msg, err := protocol.NewScoreMessage(u.Session, u.State, u.Report)
	if err == nil {
		err = s.scoreHub.BroadcastJSON(u.User, u.Session, msg)
	}
	if err != nil {
		log.Warn("failed to encode score", "session", u.Session, "error", err)
		return
	}
	s.scoresBroadcast.Add(1)
}

// ScoreHub returns the dashboard hub
func (s *Server) ScoreHub() *hub.Hub {
	return s.scoreHub
}

// Gateway returns the ingest gateway
func (s *Server) Gateway() *ingest.Gateway {
	return s.gateway
}
