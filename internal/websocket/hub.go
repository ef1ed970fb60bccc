package websocket

import (
	"encoding/json"
	"sync"

	"memory-dashboard-be/internal/pkg/logger"
	"memory-dashboard-be/pkg/conversation/degraded"
)

// Hub fans degraded-mode banner updates out to the dashboard clients of one
// gateway instance. Each surface is owned by exactly this instance, so there
// is no cross-instance fanout.
type Hub struct {
	// Registered clients map: surface key -> list of clients (multi-tab)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SurfaceKey] = append(h.clients[client.SurfaceKey], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"surface": client.SurfaceKey})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SurfaceKey]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SurfaceKey] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SurfaceKey]) == 0 {
					delete(h.clients, client.SurfaceKey)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"surface": client.SurfaceKey})
				}
			}
			h.mu.Unlock()
		}
	}
}

// PushNotice delivers the current degraded-mode notice to every tab of a
// surface. A nil notice means the banner should be dismissed.
func (h *Hub) PushNotice(surfaceKey string, notice *degraded.Notice) {
	data, err := json.Marshal(map[string]interface{}{
		"type": "degraded_notice",
		"data": notice,
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal notice", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.RLock()
	clients := h.clients[surfaceKey]
	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			// Slow client: drop it. Run owns the single close of Send, so the
			// channel is never closed here.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
	h.mu.RUnlock()
}
