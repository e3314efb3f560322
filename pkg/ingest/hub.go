// Package ingest provides the WebSocket hub for camera sources: phones,
// robots, or the bundled simulator push frames here for analysis.
package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pathsense/go-pathsense/internal/log"
	"github.com/pathsense/go-pathsense/pkg/protocol"
)

// SourceConnection represents a connected camera source
type SourceConnection struct {
	ID        string
	Label     string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the source
func (s *SourceConnection) Send(msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections from camera sources
type Hub struct {
	mu      sync.RWMutex
	sources map[string]*SourceConnection

	// Callbacks
	onFrame      func(sourceID string, frame *protocol.FrameData)
	onState      func(sourceID string, state *protocol.StateData)
	onConnect    func(sourceID string)
	onDisconnect func(sourceID string)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// NewHub creates a new source hub
func NewHub() *Hub {
	return &Hub{
		sources: make(map[string]*SourceConnection),
	}
}

// OnFrame sets the callback for incoming camera frames
func (h *Hub) OnFrame(callback func(sourceID string, frame *protocol.FrameData)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// OnState sets the callback for incoming source status
func (h *Hub) OnState(callback func(sourceID string, state *protocol.StateData)) {
	h.mu.Lock()
	h.onState = callback
	h.mu.Unlock()
}

// OnConnect sets the callback invoked when a source registers
func (h *Hub) OnConnect(callback func(sourceID string)) {
	h.mu.Lock()
	h.onConnect = callback
	h.mu.Unlock()
}

// OnDisconnect sets the callback invoked when a source drops
func (h *Hub) OnDisconnect(callback func(sourceID string)) {
	h.mu.Lock()
	h.onDisconnect = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/source", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/source", websocket.New(h.handleSource))
	app.Get("/ws/source/:id", websocket.New(h.handleSource))
}

// handleSource handles a camera source WebSocket connection
func (h *Hub) handleSource(c *websocket.Conn) {
	sourceID := c.Params("id")
	if sourceID == "" {
		sourceID = uuid.NewString()
	}

	source := &SourceConnection{
		ID:        sourceID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.sources[sourceID] = source
	count := len(h.sources)
	onConnect := h.onConnect
	h.mu.Unlock()

	log.Info("camera source connected", "source", sourceID, "total", count)
	if onConnect != nil {
		onConnect(sourceID)
	}

	defer func() {
		h.mu.Lock()
		delete(h.sources, sourceID)
		count := len(h.sources)
		onDisconnect := h.onDisconnect
		h.mu.Unlock()

		log.Info("camera source disconnected", "source", sourceID, "total", count)
		if onDisconnect != nil {
			onDisconnect(sourceID)
		}
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("source read ended", "source", sourceID, "err", err)
			return
		}

		source.mu.Lock()
		source.LastSeen = time.Now()
		source.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(sourceID, data)
	}
}

// handleMessage processes an incoming message from a source
func (h *Hub) handleMessage(sourceID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Warn("unparseable source message", "source", sourceID, "err", err)
		return
	}

	h.mu.RLock()
	frameCb := h.onFrame
	stateCb := h.onState
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		if frameCb != nil {
			frame, err := msg.GetFrameData()
			if err != nil {
				log.Warn("invalid frame payload", "source", sourceID, "err", err)
				return
			}
			frameCb(sourceID, frame)
		}

	case protocol.TypeState:
		if stateCb != nil {
			state, err := msg.GetStateData()
			if err != nil {
				log.Warn("invalid state payload", "source", sourceID, "err", err)
				return
			}
			if state.Label != "" {
				h.mu.Lock()
				if src, ok := h.sources[sourceID]; ok {
					src.Label = state.Label
				}
				h.mu.Unlock()
			}
			stateCb(sourceID, state)
		}

	case protocol.TypePing:
		if err := h.SendPong(sourceID, msg.Timestamp); err != nil {
			log.Debug("pong failed", "source", sourceID, "err", err)
		}
	}
}

// SendPong sends a pong response to a source
func (h *Hub) SendPong(sourceID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToSource(sourceID, msg)
}

// sendToSource delivers a message to one connected source
func (h *Hub) sendToSource(sourceID string, msg *protocol.Message) error {
	h.mu.RLock()
	source, ok := h.sources[sourceID]
	h.mu.RUnlock()

	if !ok {
		return ErrSourceNotFound
	}
	if err := source.Send(msg); err != nil {
		return err
	}
	h.messagesSent.Add(1)
	return nil
}

// GetSource returns a connected source by ID, or nil
func (h *Hub) GetSource(sourceID string) *SourceConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sources[sourceID]
}

// SourceCount returns the number of connected sources
func (h *Hub) SourceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sources)
}

// Stats holds hub counters for the status API
type Stats struct {
	SourceCount      int    `json:"source_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns a snapshot of the hub counters
func (h *Hub) GetStats() Stats {
	return Stats{
		SourceCount:      h.SourceCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}
