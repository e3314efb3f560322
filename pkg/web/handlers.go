package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/pathsense/go-pathsense/internal/log"
	"github.com/pathsense/go-pathsense/pkg/history"
	"github.com/pathsense/go-pathsense/pkg/hub"
	"github.com/pathsense/go-pathsense/pkg/navigation"
	"github.com/pathsense/go-pathsense/pkg/protocol"
	"github.com/pathsense/go-pathsense/pkg/vision"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// handleStatus returns the current navigation state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.engine.Snapshot())
}

// handleSources returns camera source hub counters.
func (s *Server) handleSources(c *fiber.Ctx) error {
	return c.JSON(s.sources.GetStats())
}

// handleHistory returns recent readings, newest first.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "history disabled",
		})
	}

	entries, err := s.store.Recent(c.QueryInt("limit", 100))
	if err != nil {
		log.Error("history query failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "history query failed",
		})
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return c.JSON(entries)
}

// handleStats returns summary statistics over the recent window.
func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "history disabled",
		})
	}

	sum, err := s.store.Summarize(c.QueryInt("window", 100))
	if err != nil {
		log.Error("stats query failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "stats query failed",
		})
	}
	return c.JSON(sum)
}

// ConfigView is the GET/PUT body for the runtime configuration API.
type ConfigView struct {
	Engine   *navigation.Config `json:"engine,omitempty"`
	Analyzer *vision.Config     `json:"analyzer,omitempty"`
}

// handleGetConfig returns the current engine and analyzer configuration.
func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	engineCfg := s.engine.Config()
	analyzerCfg := s.analyzer.Config()
	return c.JSON(ConfigView{Engine: &engineCfg, Analyzer: &analyzerCfg})
}

// handlePutConfig validates and applies configuration updates.
// Sections omitted from the body are left untouched.
func (s *Server) handlePutConfig(c *fiber.Ctx) error {
	var view ConfigView
	if err := c.BodyParser(&view); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid config body",
		})
	}

	var errs []string
	if view.Engine != nil {
		errs = append(errs, s.engine.SetConfig(*view.Engine)...)
	}
	if view.Analyzer != nil {
		errs = append(errs, s.analyzer.SetConfig(*view.Analyzer)...)
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"errors": errs,
		})
	}

	return s.handleGetConfig(c)
}

// handleUpdatesWS handles a browser client connection.
func (s *Server) handleUpdatesWS(c *websocket.Conn) {
	client := hub.NewClient(s.updates, c)
	client.Run() // Blocks until the connection closes
}

// greetClient sends the connected event and the current state snapshot
// to a newly registered client.
func (s *Server) greetClient(client *hub.Client) {
	if msg, err := protocol.NewConnectedMessage(client.ID); err == nil {
		client.SendJSON(msg)
	}
	if msg, err := protocol.NewUpdateMessage(stateToUpdate(s.engine.Snapshot())); err == nil {
		client.SendJSON(msg)
	}
}

// handleCommand processes a start/stop/ping command from a browser client.
func (s *Server) handleCommand(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("unparseable client command", "client", client.ID, "err", err)
		return
	}

	switch msg.Type {
	case protocol.TypeStart:
		cmd, err := msg.GetStartCommand()
		if err != nil {
			log.Warn("invalid start command", "client", client.ID, "err", err)
			return
		}
		mode := navigation.ParseMode(cmd.Mode)

		state, started := s.engine.Start(mode)
		text := "Navigation system started"
		if !started {
			text = "Navigation system already running"
		}
		s.sendAck(client, protocol.TypeStarted, text, state.Mode)
		if started {
			s.broadcastUpdate(state)
		}

	case protocol.TypeStop:
		state := s.engine.Stop()
		s.sendAck(client, protocol.TypeStopped, "Navigation system stopped", state.Mode)

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
		if err != nil {
			return
		}
		client.SendJSON(pong)

	default:
		log.Debug("ignoring client message", "client", client.ID, "type", msg.Type)
	}
}

// sendAck delivers a start/stop acknowledgement to the requesting client.
func (s *Server) sendAck(client *hub.Client, msgType protocol.MessageType, text, mode string) {
	msg, err := protocol.NewAckMessage(msgType, text, mode)
	if err != nil {
		return
	}
	client.SendJSON(msg)
}

// handleSourceFrame runs a pushed camera frame through the analyzer and
// feeds the resulting reading into the engine.
func (s *Server) handleSourceFrame(sourceID string, frame *protocol.FrameData) {
	snap := s.engine.Snapshot()
	if !snap.Running || navigation.Mode(snap.Mode) != navigation.ModeCamera {
		return
	}

	data, err := frame.DecodeFrameData()
	if err != nil {
		log.Warn("frame decode failed", "source", sourceID, "err", err)
		return
	}

	reading, err := s.analyzer.AnalyzeJPEG(data)
	if err != nil {
		log.Warn("frame analysis failed", "source", sourceID, "err", err)
		if s.analyzer.Misses() >= fallbackAfterMisses {
			fb := s.analyzer.Fallback()
			fb.Source = sourceID
			s.engine.ApplyCamera(fb)
		}
		return
	}

	reading.Source = sourceID
	s.engine.ApplyCamera(reading)
}

// broadcastUpdate fans a state snapshot out to all connected clients.
func (s *Server) broadcastUpdate(state navigation.State) {
	msg, err := protocol.NewUpdateMessage(stateToUpdate(state))
	if err != nil {
		log.Error("encode update failed", "err", err)
		return
	}
	data, err := msg.Bytes()
	if err != nil {
		log.Error("encode update failed", "err", err)
		return
	}
	s.updates.Broadcast(hub.NewJSONMessage(data))
}

// recordReading persists an accepted reading. Best-effort only.
func (s *Server) recordReading(r navigation.Reading, state navigation.State) {
	if s.store == nil {
		return
	}
	if err := s.store.Record(r, state.Mode, state.ObstacleDetected); err != nil {
		log.Warn("reading not persisted", "err", err)
	}
}

// stateToUpdate maps the engine state to its wire form.
func stateToUpdate(state navigation.State) protocol.UpdateData {
	return protocol.UpdateData{
		Running:          state.Running,
		Mode:             state.Mode,
		DistanceCM:       state.DistanceCM,
		Direction:        state.Direction,
		ObstacleDetected: state.ObstacleDetected,
		Instruction:      state.Instruction,
		Urgent:           state.Urgent,
		Speak:            state.Speak,
		Confidence:       state.Confidence,
		Category:         state.Category,
		Source:           state.Source,
	}
}
