package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/contexo-app/contexo/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local single-user app
	},
}

// WebSocketHandler broadcasts application events to connected browsers.
// Progress events are throttled so a fast pipeline does not flood slow
// clients; terminal events always go out.
type WebSocketHandler struct {
	logger            arbor.ILogger
	mu                sync.RWMutex
	clients           map[*websocket.Conn]*sync.Mutex
	progressThrottler *rate.Limiter
	serverInstanceID  string // clients use this to detect server restart
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:            logger,
		clients:           make(map[*websocket.Conn]*sync.Mutex),
		progressThrottler: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		serverInstanceID:  uuid.New().String(),
	}

	eventService.Subscribe("", h.handleEvent)

	return h
}

// HandleWebSocket handles GET /ws - upgrades and registers the connection
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")

	h.send(conn, map[string]interface{}{
		"type":               "connected",
		"server_instance_id": h.serverInstanceID,
	})

	// Read loop exists only to detect disconnect; clients never send
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) handleEvent(ctx context.Context, event interfaces.Event) error {
	if event.Type == interfaces.EventStepProgress && !h.progressThrottler.Allow() {
		return nil
	}

	h.broadcast(map[string]interface{}{
		"type":    string(event.Type),
		"payload": event.Payload,
	})
	return nil
}

func (h *WebSocketHandler) broadcast(message interface{}) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		h.send(conn, message)
	}
}

// send serializes writes per connection; gorilla allows one concurrent
// writer only
func (h *WebSocketHandler) send(conn *websocket.Conn, message interface{}) {
	h.mu.RLock()
	lock, ok := h.clients[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	lock.Lock()
	defer lock.Unlock()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(message); err != nil {
		h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
		go h.remove(conn)
	}
}

func (h *WebSocketHandler) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client disconnected")
}
