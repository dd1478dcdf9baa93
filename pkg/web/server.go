// Package web serves the locomotion stream: a small REST API plus websocket
// feeds of pose frames and loop status.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-locomotion/internal/log"
	"github.com/teslashibe/go-locomotion/pkg/hub"
	"github.com/teslashibe/go-locomotion/pkg/motion"
	"github.com/teslashibe/go-locomotion/pkg/movement"
	"github.com/teslashibe/go-locomotion/pkg/protocol"
)

// DefaultStatusEvery is how many frames pass between status broadcasts.
const DefaultStatusEvery = 30

// Controller is the movement loop the server steers and reports on.
type Controller interface {
	SetObjective(movement.Objective) error
	Stats() movement.Stats
	Modes() int
}

// Server is the locomotion web server. It implements movement.Publisher.
type Server struct {
	app     *fiber.App
	port    string
	session string

	controller Controller

	libraries   []LibraryInfo
	librariesMu sync.RWMutex

	// Hubs for websocket broadcast
	poseHub   *hub.Hub
	statusHub *hub.Hub

	published   atomic.Uint64
	statusEvery uint64

	logger *slog.Logger
}

// NewServer creates a server on port steering controller.
func NewServer(port string, controller Controller) *Server {
	s := &Server{
		port:        port,
		session:     uuid.NewString(),
		controller:  controller,
		poseHub:     hub.New("poses"),
		statusHub:   hub.New("status"),
		statusEvery: DefaultStatusEvery,
		logger:      log.For("web"),
	}
	s.poseHub.OnMessage(s.handleClientMessage)
	s.statusHub.OnMessage(s.handleClientMessage)

	app := fiber.New(fiber.Config{
		AppName:               "go-locomotion",
		DisableStartupMessage: true,
	})

	// CORS for local viewers
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/library", s.handleLibrary)
	api.Post("/objective", s.handleObjective)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/poses", websocket.New(s.handlePosesWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Start starts the hubs and listens on the configured port.
func (s *Server) Start() error {
	s.logger.Info("web server listening", "addr", "http://localhost:"+s.port, "session", s.session)
	s.startHubs()
	return s.app.Listen(":" + s.port)
}

// Serve starts the hubs and serves on ln.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server listening", "addr", ln.Addr().String(), "session", s.session)
	s.startHubs()
	return s.app.Listener(ln)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

func (s *Server) startHubs() {
	go s.poseHub.Run()
	go s.statusHub.Run()
}

// Publish broadcasts one frame to pose viewers and, periodically, the loop
// status to status viewers.
func (s *Server) Publish(u movement.Update) error {
	msg, err := protocol.NewFrameMessage(WireFrame(u))
	if err != nil {
		return err
	}
	if err := s.poseHub.BroadcastJSON(msg); err != nil {
		return err
	}

	if n := s.published.Add(1); s.statusEvery > 0 && n%s.statusEvery == 0 {
		if err := s.broadcastStatus(); err != nil {
			return fmt.Errorf("status broadcast: %w", err)
		}
	}
	return nil
}

func (s *Server) broadcastStatus() error {
	if s.controller == nil {
		return nil
	}
	msg, err := protocol.NewStatusMessage(s.Status())
	if err != nil {
		return err
	}
	return s.statusHub.BroadcastJSON(msg)
}

// SetLibraries records the libraries served by /api/library. It is called at
// startup and after every reload.
func (s *Server) SetLibraries(sel *motion.Selecter) {
	libs := DescribeLibraries(sel)
	s.librariesMu.Lock()
	s.libraries = libs
	s.librariesMu.Unlock()
}

// Libraries returns the current library listing.
func (s *Server) Libraries() []LibraryInfo {
	s.librariesMu.RLock()
	defer s.librariesMu.RUnlock()
	return s.libraries
}

// Session returns the ID of this server run.
func (s *Server) Session() string {
	return s.session
}

// Status returns the loop diagnostics in wire form.
func (s *Server) Status() protocol.StatusData {
	status := protocol.StatusData{
		Session: s.session,
		Clients: s.poseHub.ClientCount() + s.statusHub.ClientCount(),
	}
	if s.controller == nil {
		return status
	}
	st := s.controller.Stats()
	status.Running = st.Running
	status.Ticks = st.Ticks
	status.Frame = st.Frame
	status.Discontinuities = st.Discontinuities
	status.Blends = st.Blends
	status.Reloads = st.Reloads
	status.State = st.State
	status.Mode = st.Mode
	status.Position = st.Position
	status.Facing = st.Facing
	status.Objective = st.Objective
	status.Moving = st.Moving
	return status
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	s.poseHub.Stop()
	s.statusHub.Stop()
	return s.app.Shutdown()
}

// setObjective forwards a wire objective to the controller.
func (s *Server) setObjective(data protocol.ObjectiveData) error {
	if s.controller == nil {
		return errors.New("no movement controller")
	}
	return s.controller.SetObjective(movement.Objective{
		Direction: data.Vector(),
		Moving:    data.Moving,
		Mode:      data.Mode,
	})
}
