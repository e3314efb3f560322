// Package web wires the HTTP API, the static browser client, and the
// real-time channels together: browser clients subscribe on /ws/updates,
// camera sources push frames on /ws/source.
package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/pathsense/go-pathsense/internal/log"
	"github.com/pathsense/go-pathsense/pkg/history"
	"github.com/pathsense/go-pathsense/pkg/hub"
	"github.com/pathsense/go-pathsense/pkg/ingest"
	"github.com/pathsense/go-pathsense/pkg/navigation"
	"github.com/pathsense/go-pathsense/pkg/vision"
)

// fallbackAfterMisses is how many consecutive analysis failures camera
// mode tolerates before a fallback reading is pushed through the engine.
const fallbackAfterMisses = 3

// Options configures the server.
type Options struct {
	// Addr is the listen address, e.g. ":5000".
	Addr string

	// StaticDir serves the browser client when non-empty.
	StaticDir string

	// Engine produces the navigation state. Required.
	Engine *navigation.Engine

	// Analyzer scores camera frames. Required.
	Analyzer *vision.Analyzer

	// Store persists readings. Optional; nil disables the history API.
	Store *history.Store
}

// Server is the pathsense web server.
type Server struct {
	app  *fiber.App
	addr string

	engine   *navigation.Engine
	analyzer *vision.Analyzer
	store    *history.Store

	updates *hub.Hub
	sources *ingest.Hub
}

// New creates a fully wired server. Call Start (or StartAsync) to serve.
func New(opts Options) *Server {
	s := &Server{
		addr:     opts.Addr,
		engine:   opts.Engine,
		analyzer: opts.Analyzer,
		store:    opts.Store,
		updates:  hub.New("updates"),
		sources:  ingest.NewHub(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "pathsense",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}

	app.Get("/healthz", s.handleHealth)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/sources", s.handleSources)
	api.Get("/history", s.handleHistory)
	api.Get("/stats", s.handleStats)
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handlePutConfig)

	// Browser client channel
	app.Use("/ws/updates", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/updates", websocket.New(s.handleUpdatesWS))

	// Camera source channel
	s.sources.RegisterRoutes(app)
	s.sources.OnFrame(s.handleSourceFrame)
	s.sources.OnConnect(func(sourceID string) {
		// A fresh source means fresh smoothing state
		s.analyzer.Reset()
	})

	// Engine → clients and storage
	s.engine.OnUpdate(s.broadcastUpdate)
	s.engine.OnReading(s.recordReading)

	// Client → engine commands
	s.updates.OnConnect = s.greetClient
	s.updates.OnMessage = s.handleCommand

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// UpdatesHub returns the client broadcast hub.
func (s *Server) UpdatesHub() *hub.Hub {
	return s.updates
}

// SourcesHub returns the camera source hub.
func (s *Server) SourcesHub() *ingest.Hub {
	return s.sources
}

// Start runs the hub and serves until Shutdown.
func (s *Server) Start() error {
	go s.updates.Run()
	log.Info("web server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server stopped", "err", err)
		}
	}()
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
