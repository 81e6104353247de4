// Package web serves the locomotion dashboard: health, status and metrics
// endpoints, a live cycle stream, and operator velocity commands.
package web

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	teleopws "github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-quadruped/internal/log"
	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/hub"
	"github.com/teslashibe/go-quadruped/pkg/protocol"
)

// DefaultPort is the dashboard listen port.
const DefaultPort = "8090"

// Config configures the dashboard server.
type Config struct {
	Port    string
	Version string

	// Limits validates operator commands.
	Limits command.Limits
	// Override receives operator commands. Nil disables teleoperation.
	Override *command.Override

	Logger *slog.Logger
}

// Snapshot is the latest loop state served by /api/status.
type Snapshot struct {
	RunID    string              `json:"run_id"`
	State    string              `json:"state"`
	Cycles   int                 `json:"cycles"`
	Override bool                `json:"override"`
	Clients  int                 `json:"clients"`
	Last     *protocol.CycleData `json:"last,omitempty"`
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	// Latest loop state
	snap     Snapshot
	stateNum int
	snapMu   sync.RWMutex

	// Hub for the cycle stream
	cycleHub *hub.Hub
	hubOnce  sync.Once
}

// NewServer creates a new dashboard server
func NewServer(cfg Config) *Server {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := log.Or(cfg.Logger).With("component", "web")
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		snap:     Snapshot{State: "initializing"},
		cycleHub: hub.New("cycles", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Quadruped Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/command", s.handleCommand)
	api.Delete("/command", s.handleClearCommand)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/cycles", websocket.New(s.handleCyclesWS))
	app.Get("/ws/teleop", teleopws.New(s.handleTeleopWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the cycle stream hub.
func (s *Server) Hub() *hub.Hub {
	return s.cycleHub
}

// Start starts the hub and blocks serving HTTP.
func (s *Server) Start() error {
	fmt.Printf("🌐 Dashboard: http://localhost:%s\n", s.cfg.Port)
	s.hubOnce.Do(func() { go s.cycleHub.Run() })
	return s.app.Listen(":" + s.cfg.Port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("⚠️  dashboard server stopped", "error", err)
		}
	}()
}

// Shutdown stops the hub and the HTTP server, waiting up to timeout for
// open connections.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cycleHub.Stop()
	return s.app.ShutdownWithTimeout(timeout)
}

// Snapshot returns a copy of the latest loop state.
func (s *Server) Snapshot() Snapshot {
	s.snapMu.RLock()
	snap := s.snap
	s.snapMu.RUnlock()
	snap.Override = s.cfg.Override != nil && s.cfg.Override.Active()
	snap.Clients = s.cycleHub.ClientCount()
	return snap
}
