package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	clientBufferSize = 16
)

// Hub pushes order notifications to connected websocket clients. A client receives
// events for its own orders; admin clients receive every event.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn   *websocket.Conn
	userID uuid.UUID
	admin  bool
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewHub creates a hub. Cross-origin upgrades are accepted; callers are authenticated
// before Serve is reached.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger.With().Str("sink", "websocket").Logger(),
		clients: make(map[*hubClient]struct{}),
	}
}

// Serve upgrades the request and streams notifications to it until the peer disconnects
// or the hub is closed.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uuid.UUID, admin bool) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	client := &hubClient{
		conn:   conn,
		userID: userID,
		admin:  admin,
		send:   make(chan []byte, clientBufferSize),
		done:   make(chan struct{}),
	}
	if !h.register(client) {
		client.close()
		return nil
	}
	defer h.unregister(client)

	h.logger.Debug().Str("user_id", userID.String()).Bool("admin", admin).Msg("websocket client connected")

	go h.readPump(client)
	h.writePump(client)
	return nil
}

func (h *Hub) register(c *hubClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()

	h.logger.Debug().Str("user_id", c.userID.String()).Msg("websocket client disconnected")
}

// readPump discards inbound frames and keeps the read deadline alive on pongs.
func (h *Hub) readPump(c *hubClient) {
	defer c.close()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Publish sends msg to the order owner and to admin clients. Slow clients miss the message.
func (h *Hub) Publish(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal websocket message: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.admin && c.userID != msg.UserID {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("user_id", c.userID.String()).Msg("websocket client too slow, dropping message")
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) NotifyOrderCreated(_ context.Context, order *model.Order) error {
	return h.Publish(NewMessage(EventOrderCreated, order))
}

func (h *Hub) NotifyOrderShipped(_ context.Context, order *model.Order) error {
	return h.Publish(NewMessage(EventOrderShipped, order))
}

func (h *Hub) NotifyOrderDelivered(_ context.Context, order *model.Order) error {
	return h.Publish(NewMessage(EventOrderDelivered, order))
}

func (h *Hub) NotifyOrderCancelled(_ context.Context, order *model.Order) error {
	return h.Publish(NewMessage(EventOrderCancelled, order))
}

func (h *Hub) NotifyPaymentConfirmed(_ context.Context, order *model.Order) error {
	return h.Publish(NewMessage(EventPaymentConfirmed, order))
}
