package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourusername/vidfetch-go/internal/app"
	"github.com/yourusername/vidfetch-go/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// EventWebSocketHandler streams task events over WebSocket connections.
type EventWebSocketHandler struct {
	engine *app.Engine
	logger *zap.Logger
}

// NewEventWebSocketHandler creates a new WebSocket handler
func NewEventWebSocketHandler(engine *app.Engine, logger *zap.Logger) *EventWebSocketHandler {
	return &EventWebSocketHandler{
		engine: engine,
		logger: logger,
	}
}

// HandleTaskEvents handles GET /api/v1/tasks/:id/events: the events of one
// task, starting with its current state.
func (h *EventWebSocketHandler) HandleTaskEvents(c *gin.Context) {
	id := c.Param("id")
	task, err := h.engine.GetTask(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	events, unsubscribe := h.engine.Subscribe(id)
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket client connected",
		zap.String("task_id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	// Send the current state first so the client never starts blind.
	if err := conn.WriteJSON(task); err != nil {
		return
	}

	h.stream(conn, events)
}

// HandleAllEvents handles GET /api/v1/events: every task's events on one
// connection.
func (h *EventWebSocketHandler) HandleAllEvents(c *gin.Context) {
	events, unsubscribe := h.engine.SubscribeAll()
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Info("WebSocket client connected",
		zap.String("remote_addr", c.Request.RemoteAddr))

	h.stream(conn, events)
}

// stream pumps events to the client until either side goes away.
func (h *EventWebSocketHandler) stream(conn *websocket.Conn, events <-chan domain.TaskEvent) {
	// Read messages from client (for ping/pong and close detection)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("Failed to marshal task event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
