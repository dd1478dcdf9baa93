package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-locomotion/pkg/hub"
	"github.com/teslashibe/go-locomotion/pkg/motion"
	"github.com/teslashibe/go-locomotion/pkg/protocol"
)

// handleStatus returns the loop diagnostics
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleLibrary returns the loaded libraries
func (s *Server) handleLibrary(c *fiber.Ctx) error {
	libs := s.Libraries()
	if libs == nil {
		libs = []LibraryInfo{}
	}
	return c.JSON(libs)
}

// handleObjective sets the movement intent
func (s *Server) handleObjective(c *fiber.Ctx) error {
	var req protocol.ObjectiveData
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid objective: " + err.Error(),
		})
	}

	if err := s.setObjective(req); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, motion.ErrUnknownMode) {
			status = fiber.StatusUnprocessableEntity
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.logger.Debug("objective set", "direction", req.Direction, "moving", req.Moving, "mode", req.Mode)
	return c.JSON(req)
}

// handlePosesWS streams pose frames and accepts objectives
func (s *Server) handlePosesWS(c *websocket.Conn) {
	client := hub.NewClient(s.poseHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// handleStatusWS streams loop status, starting with the current one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		return
	}
	if msg, err := protocol.NewStatusMessage(s.Status()); err == nil {
		s.reply(client, msg)
	}
	client.Run()
}

// handleClientMessage answers objectives and pings sent over a websocket.
func (s *Server) handleClientMessage(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.replyError(client, err)
		return
	}

	switch msg.Type {
	case protocol.TypeObjective:
		obj, err := msg.GetObjectiveData()
		if err == nil {
			err = s.setObjective(*obj)
		}
		if err != nil {
			s.replyError(client, err)
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			s.replyError(client, err)
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
		if err == nil {
			s.reply(client, pong)
		}

	default:
		s.logger.Debug("ignoring client message", "type", msg.Type)
	}
}

func (s *Server) reply(client *hub.Client, msg *protocol.Message) {
	data, err := msg.Bytes()
	if err != nil {
		s.logger.Warn("reply encode failed", "error", err)
		return
	}
	client.Send(hub.NewJSONMessage(data))
}

func (s *Server) replyError(client *hub.Client, err error) {
	msg, merr := protocol.NewErrorMessage(err)
	if merr != nil {
		return
	}
	s.reply(client, msg)
}
