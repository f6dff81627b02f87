// Package web bridges the block extension to a browser-side host over
// HTTP and websockets.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-movenet/internal/log"
	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/extension"
	"github.com/teslashibe/go-movenet/pkg/hub"
	"github.com/teslashibe/go-movenet/pkg/tracking"
)

// Envelope types sent on the websocket streams.
const (
	TypeEvent = "event"
	TypePose  = "pose"
)

// DefaultPoseInterval paces the /ws/pose stream.
const DefaultPoseInterval = 100 * time.Millisecond

// Tracker is what the dashboard routes read from the controller.
// *tracking.Controller satisfies it.
type Tracker interface {
	Status() tracking.Status
	Snapshot() tracking.Snapshot
}

// Config holds server parameters.
type Config struct {
	Port         int
	PoseInterval time.Duration
	StaticDir    string // Served at / when set
}

// Server exposes the extension, tracker status and camera config.
type Server struct {
	app    *fiber.App
	config Config
	logger *slog.Logger

	ext     *extension.Extension
	tracker Tracker
	camera  *camera.Manager

	events *hub.Hub
	poses  *hub.Hub

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer builds the routes. Nothing listens until Start or Serve.
func NewServer(cfg Config, ext *extension.Extension, tracker Tracker, cam *camera.Manager, opts ...Option) *Server {
	if cfg.PoseInterval <= 0 {
		cfg.PoseInterval = DefaultPoseInterval
	}
	s := &Server{
		config:  cfg,
		logger:  log.L(),
		ext:     ext,
		tracker: tracker,
		camera:  cam,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.events = hub.New("events", s.logger)
	s.poses = hub.New("pose", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "MoveNet bridge",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	// Hosts load the extension from another origin
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/info", s.handleInfo)
	api.Post("/blocks/:opcode", s.handleBlock)
	api.Get("/status", s.handleStatus)
	api.Get("/pose", s.handlePose)
	api.Get("/camera", s.handleGetCamera)
	api.Put("/camera", s.handleUpdateCamera)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/pose", websocket.New(s.handlePoseWS))

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("web: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and the pose stream, then serves on ln until
// Shutdown. ctx bounds the background goroutines.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.events.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.poses.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.streamPoses(ctx)
	}()

	s.logger.Info("bridge listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// Shutdown stops serving and waits for the background goroutines.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := s.app.Shutdown()
	s.wg.Wait()
	return err
}

// Report implements tracking.Reporter by forwarding events to /ws/events.
func (s *Server) Report(e tracking.Event) {
	if err := s.events.BroadcastJSON(TypeEvent, newEventPayload(e)); err != nil {
		s.logger.Warn("encode event", "error", err)
	}
}

// streamPoses broadcasts a snapshot every PoseInterval while anyone
// listens.
func (s *Server) streamPoses(ctx context.Context) {
	ticker := time.NewTicker(s.config.PoseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.poses.ClientCount() == 0 {
				continue
			}
			if err := s.poses.BroadcastJSON(TypePose, s.tracker.Snapshot()); err != nil {
				s.logger.Warn("encode pose", "error", err)
			}
		}
	}
}

// handleError renders every error as {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
