package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kdimtricp/humetube/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub pushes every replaced Analysis to the websocket viewers of its video.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]bool)}
}

// Publish sends the analysis to every subscriber of its video. Subscribers
// that cannot be written to are dropped.
func (h *Hub) Publish(analysis *models.Analysis) {
	if analysis == nil {
		return
	}

	h.mu.RLock()
	subscribers := make([]*client, 0, len(h.clients[analysis.VideoID]))
	for c := range h.clients[analysis.VideoID] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	if len(subscribers) == 0 {
		return
	}

	message, err := json.Marshal(analysis)
	if err != nil {
		log.Printf("[NOTIFY] Failed to encode analysis for %s: %v", analysis.VideoID, err)
		return
	}

	for _, c := range subscribers {
		if err := c.write(websocket.TextMessage, message); err != nil {
			log.Printf("[NOTIFY] Dropping viewer of %s: %v", analysis.VideoID, err)
			h.unregister(analysis.VideoID, c)
		}
	}
}

func (h *Hub) SubscriberCount(videoID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[videoID])
}

// ServeVideo upgrades the request and streams analyses of videoID until the
// viewer disconnects. initial, if not nil, is sent right after the upgrade.
func (h *Hub) ServeVideo(w http.ResponseWriter, r *http.Request, videoID string, initial *models.Analysis) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[NOTIFY] WebSocket upgrade error: %v", err)
		return
	}

	c := &client{conn: conn}
	defer h.unregister(videoID, c)

	if initial != nil {
		message, err := json.Marshal(initial)
		if err == nil {
			err = c.write(websocket.TextMessage, message)
		}
		if err != nil {
			log.Printf("[NOTIFY] Failed to send current analysis of %s: %v", videoID, err)
			return
		}
	}

	h.register(videoID, c)
	log.Printf("[NOTIFY] Viewer connected to %s (total: %d)", videoID, h.SubscriberCount(videoID))

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Printf("[NOTIFY] Viewer of %s disconnected: %v", videoID, err)
			return
		}
	}
}

func (h *Hub) register(videoID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[videoID] == nil {
		h.clients[videoID] = make(map[*client]bool)
	}
	h.clients[videoID][c] = true
}

func (h *Hub) unregister(videoID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[videoID][c]; !ok {
		c.conn.Close()
		return
	}
	delete(h.clients[videoID], c)
	if len(h.clients[videoID]) == 0 {
		delete(h.clients, videoID)
	}
	c.conn.Close()
}
