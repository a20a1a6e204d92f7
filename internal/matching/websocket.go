package matching

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/imadgeboyega/fitmatch-backend/internal/auth"
	"github.com/imadgeboyega/fitmatch-backend/internal/common/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
	broadcastSize  = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are enforced by the fronting proxy.
		return true
	},
}

// Hub pushes match notifications to connected users. One connection per
// user; a new connection replaces the old one.
type Hub struct {
	clients    map[int64]*Client
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	userID int64
}

type Message struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id"`
	Data   interface{} `json:"data"`
}

// MatchMessage is the payload of a "new_match" message.
type MatchMessage struct {
	MatchID   int64     `json:"match_id"`
	PartnerID int64     `json:"partner_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]*Client),
		broadcast:  make(chan Message, broadcastSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client map until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	logger := logging.WithComponent("match_hub")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			return

		case client := <-h.register:
			if old, ok := h.clients[client.userID]; ok {
				close(old.send)
			}
			h.clients[client.userID] = client
			logger.Debug().Int64("user_id", client.userID).Msg("Client connected")

		case client := <-h.unregister:
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				close(client.send)
				logger.Debug().Int64("user_id", client.userID).Msg("Client disconnected")
			}

		case message := <-h.broadcast:
			client, ok := h.clients[message.UserID]
			if !ok {
				continue
			}
			select {
			case client.send <- message:
			default:
				close(client.send)
				delete(h.clients, client.userID)
				logger.Warn().Int64("user_id", client.userID).Msg("Client too slow, dropping connection")
			}
		}
	}
}

// NotifyMatch tells both users about a new match. It never blocks; when the
// queue is full the notification is dropped.
func (h *Hub) NotifyMatch(ctx context.Context, match *MatchRecord) {
	for _, userID := range []int64{match.UserA, match.UserB} {
		msg := Message{
			Type:   "new_match",
			UserID: userID,
			Data: MatchMessage{
				MatchID:   match.ID,
				PartnerID: match.Other(userID),
				CreatedAt: match.CreatedAt,
			},
		}
		select {
		case h.broadcast <- msg:
		default:
			logging.Ctx(ctx).Warn().
				Int64("user_id", userID).
				Int64("match_id", match.ID).
				Msg("Match notification queue full, dropping")
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan Message, sendBufferSize),
		userID: userID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
