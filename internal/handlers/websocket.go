package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/services/status"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope pushed to WebSocket clients
type WSMessage struct {
	Type             string      `json:"type"`
	Payload          interface{} `json:"payload"`
	ServerInstanceID string      `json:"server_instance_id,omitempty"`
}

// WebSocketHandler pushes pipeline events to connected clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	statusService    *status.Service
	clients          map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	serverInstanceID string // clients use this to detect a server restart
}

// NewWebSocketHandler creates the handler and subscribes it to every pipeline event
func NewWebSocketHandler(eventService interfaces.EventService, statusService *status.Service, logger arbor.ILogger) (*WebSocketHandler, error) {
	h := &WebSocketHandler{
		logger:           logger,
		statusService:    statusService,
		clients:          make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	if eventService != nil {
		for _, eventType := range interfaces.AllEventTypes {
			if err := eventService.Subscribe(eventType, h.handleEvent); err != nil {
				return nil, fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
			}
		}
	}

	logger.Debug().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h, nil
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	if h.statusService != nil {
		h.send(conn, WSMessage{Type: "status", Payload: h.statusService.GetStatus()})
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
	}()

	// Read messages from client (keep connection alive)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	h.broadcast(WSMessage{Type: string(event.Type), Payload: event.Payload})
	return nil
}

// broadcast writes msg to every client; a failed write drops nobody, the read loop does that
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	msg.ServerInstanceID = h.serverInstanceID
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn, mutex := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, mutex)
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		if err := h.write(conn, mutexes[i], data); err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, msg WSMessage) {
	msg.ServerInstanceID = h.serverInstanceID
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	mutex := h.clients[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}
	if err := h.write(conn, mutex, data); err != nil {
		h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
	}
}

func (h *WebSocketHandler) write(conn *websocket.Conn, mutex *sync.Mutex, data []byte) error {
	mutex.Lock()
	defer mutex.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close disconnects every client
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, mutex := range h.clients {
		mutex.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		mutex.Unlock()
		conn.Close()
	}
}
