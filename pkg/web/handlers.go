package web

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	teleopws "github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/go-quadruped/pkg/command"
	"github.com/teslashibe/go-quadruped/pkg/hub"
	"github.com/teslashibe/go-quadruped/pkg/protocol"
	"github.com/teslashibe/go-quadruped/pkg/robot"
)

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": s.cfg.Version,
	})
}

// handleStatus returns the latest loop snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

// handleMetrics writes counters in the Prometheus text exposition format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	snap := s.Snapshot()
	s.snapMu.RLock()
	state := s.stateNum
	s.snapMu.RUnlock()
	st := s.cycleHub.Stats()

	var t float64
	if snap.Last != nil {
		t = snap.Last.Time
	}
	override := 0
	if snap.Override {
		override = 1
	}

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(fmt.Sprintf(`# HELP quadruped_cycles_total Control cycles applied.
# TYPE quadruped_cycles_total counter
quadruped_cycles_total %d
# HELP quadruped_loop_state Driver state (0 initializing, 1 running, 2 terminated).
# TYPE quadruped_loop_state gauge
quadruped_loop_state %d
# HELP quadruped_loop_time_seconds Robot time of the last applied cycle.
# TYPE quadruped_loop_time_seconds gauge
quadruped_loop_time_seconds %g
# HELP quadruped_override_active Whether an operator command is in effect.
# TYPE quadruped_override_active gauge
quadruped_override_active %d
# HELP quadruped_telemetry_clients Connected cycle stream viewers.
# TYPE quadruped_telemetry_clients gauge
quadruped_telemetry_clients %d
# HELP quadruped_telemetry_published_total Telemetry messages queued.
# TYPE quadruped_telemetry_published_total counter
quadruped_telemetry_published_total %d
# HELP quadruped_telemetry_dropped_total Telemetry messages or clients dropped.
# TYPE quadruped_telemetry_dropped_total counter
quadruped_telemetry_dropped_total %d
`, snap.Cycles, state, t, override, st.Clients, st.Published, st.Dropped))
}

// handleCommand installs an operator velocity command
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req protocol.CommandData
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid command body: " + err.Error(),
		})
	}
	if err := s.applyCommand(&req); err != nil {
		return c.Status(commandStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"override": s.cfg.Override.Active(),
		"command":  req,
	})
}

// handleClearCommand removes any operator command
func (s *Server) handleClearCommand(c *fiber.Ctx) error {
	if err := s.applyCommand(&protocol.CommandData{Clear: true}); err != nil {
		return c.Status(commandStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"override": false})
}

func commandStatus(err error) int {
	if errors.Is(err, ErrTeleopDisabled) {
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusBadRequest
}

// applyCommand validates an operator command and hands it to the override.
func (s *Server) applyCommand(req *protocol.CommandData) error {
	if s.cfg.Override == nil {
		return ErrTeleopDisabled
	}
	if req.Clear {
		s.cfg.Override.Clear()
		s.logger.Info("🎮 operator command cleared")
		return nil
	}
	if req.Hold < 0 || math.IsNaN(req.Hold) || math.IsInf(req.Hold, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidHold, req.Hold)
	}
	cmd := command.Command{Linear: robot.Vec3(req.Linear), YawRate: req.YawRate}
	if err := cmd.Validate(s.cfg.Limits); err != nil {
		return err
	}
	hold := time.Duration(req.Hold * float64(time.Second))
	if err := s.cfg.Override.Set(cmd, hold); err != nil {
		return err
	}
	s.logger.Info("🎮 operator command", "cmd", cmd.String(), "hold", hold)
	return nil
}

// handleCyclesWS streams cycle telemetry through the hub
func (s *Server) handleCyclesWS(c *websocket.Conn) {
	// Current state first, written before the hub owns the connection
	snap := s.Snapshot()
	if msg, err := protocol.NewStateMessage(snap.RunID, snap.State, snap.Cycles); err == nil {
		if data, err := msg.Bytes(); err == nil {
			c.WriteMessage(websocket.TextMessage, data)
		}
	}

	client := hub.NewClient(s.cycleHub, c)
	if client == nil {
		return
	}
	client.Run()
}

// handleTeleopWS accepts operator commands over a websocket
func (s *Server) handleTeleopWS(c *teleopws.Conn) {
	s.logger.Info("🎮 teleop connected", "remote", c.RemoteAddr().String())
	defer s.logger.Info("🎮 teleop disconnected")

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		reply := s.handleTeleopMessage(data)
		if reply == nil {
			continue
		}
		out, err := reply.Bytes()
		if err != nil {
			continue
		}
		if err := c.WriteMessage(teleopws.TextMessage, out); err != nil {
			return
		}
	}
}

// handleTeleopMessage processes one teleop message and returns the reply.
func (s *Server) handleTeleopMessage(data []byte) *protocol.Message {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return errorReply(err)
	}

	switch msg.Type {
	case protocol.TypeCommand:
		req, err := msg.GetCommandData()
		if err != nil {
			return errorReply(err)
		}
		if err := s.applyCommand(req); err != nil {
			return errorReply(err)
		}
		ack, _ := protocol.NewMessage(protocol.TypeCommand, req)
		return ack

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return errorReply(err)
		}
		pingTS := ping.Timestamp
		if pingTS == 0 {
			pingTS = msg.Timestamp
		}
		pong, _ := protocol.NewPongMessage(ping.ID, pingTS, time.Now().UnixMilli())
		return pong

	default:
		return errorReply(fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Type))
	}
}

func errorReply(err error) *protocol.Message {
	msg, _ := protocol.NewErrorMessage(err)
	return msg
}
