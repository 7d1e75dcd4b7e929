package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	pongWait = 60 * time.Second

	// Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO restrict origins once the frontend host list is settled
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades turnout subscriptions onto the hub.
type Handler struct {
	hub *Hub

	// snapshot produces the current turnout payload sent on connect.
	snapshot func() (any, error)
}

// NewHandler creates a WebSocket handler. snapshot may be nil, in which
// case new clients wait for the next broadcast.
func NewHandler(hub *Hub, snapshot func() (any, error)) *Handler {
	return &Handler{hub: hub, snapshot: snapshot}
}

// HandleTurnout upgrades the request and subscribes the client to
// turnout broadcasts.
func (h *Handler) HandleTurnout(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.hub.RegisterClient(client)

	go h.writePump(client)
	go h.readPump(client)

	if h.snapshot != nil {
		if payload, err := h.snapshot(); err == nil {
			h.hub.Broadcast(payload)
		}
	}

	log.Println("new turnout WebSocket connection established")
}

// readPump drains the connection so control frames are processed.
// Subscribers only receive; inbound data messages are discarded.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.UnregisterClient(client)
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}
	}
}

// writePump pushes broadcasts and pings to the connection.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush anything queued behind this message
			n := len(client.send)
			for i := 0; i < n; i++ {
				w.Write(<-client.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
