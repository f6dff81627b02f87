package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-movenet/pkg/extension"
	"github.com/teslashibe/go-movenet/pkg/hub"
	"github.com/teslashibe/go-movenet/pkg/tracking"
)

// BlockRequest is the body of a block call.
type BlockRequest struct {
	Args map[string]any `json:"args"`
}

// BlockResponse is the result of a block call. Result is null for commands.
type BlockResponse struct {
	Opcode string `json:"opcode"`
	Result any    `json:"result"`
}

// eventPayload is a tracking event as sent to websocket clients.
type eventPayload struct {
	Kind    tracking.EventKind `json:"kind"`
	Session string             `json:"session,omitempty"`
	Variant string             `json:"variant,omitempty"`
	Error   string             `json:"error,omitempty"`
	Time    time.Time          `json:"time"`
}

func newEventPayload(e tracking.Event) eventPayload {
	return eventPayload{
		Kind:    e.Kind,
		Session: e.Session,
		Variant: e.Variant,
		Error:   e.Message(),
		Time:    e.Time,
	}
}

// handleInfo returns the block descriptor.
func (s *Server) handleInfo(c *fiber.Ctx) error {
	return c.JSON(s.ext.Info())
}

// handleBlock runs one block. An empty body means no arguments.
func (s *Server) handleBlock(c *fiber.Ctx) error {
	opcode := c.Params("opcode")

	var req BlockRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
		}
	}

	result, err := s.ext.Invoke(c.UserContext(), opcode, req.Args)
	if errors.Is(err, extension.ErrUnknownOpcode) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(BlockResponse{Opcode: opcode, Result: result})
}

// handleStatus returns the controller status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.tracker.Status())
}

// handlePose returns the thresholded snapshot of the latest pose.
func (s *Server) handlePose(c *fiber.Ctx) error {
	return c.JSON(s.tracker.Snapshot())
}

// handleGetCamera returns the capture config used by the next session.
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.camera.GetConfig())
}

// handleUpdateCamera applies a partial update or a preset.
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := s.camera.UpdateConfig(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.camera.GetConfig())
}

// handleEventsWS streams tracking events.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	hub.NewClient(s.events, conn).Run()
}

// handlePoseWS streams snapshots, starting with the current one.
func (s *Server) handlePoseWS(conn *websocket.Conn) {
	var initial []hub.Message
	if data, err := hub.Encode(TypePose, s.tracker.Snapshot()); err == nil {
		initial = append(initial, hub.Message{Data: data})
	}
	hub.NewClient(s.poses, conn, initial...).Run()
}
