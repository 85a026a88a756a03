package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must be below pongWait

	// Dashboards never send payloads; anything larger is a misbehaving peer.
	maxMessageSize = 4 * 1024

	// Score updates queued per dashboard before it counts as slow.
	clientBuffer = 256
)

// Client is one dashboard connection following live scores.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	user   string
	filter string // session ID, or "" for all of user's sessions
	send   chan Message
}

// NewClient registers a dashboard following user's scores with the hub.
// A non-empty session limits it to that session. If the hub has already
// stopped the client starts closed.
func NewClient(hub *Hub, conn *websocket.Conn, user, session string) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		user:   user,
		filter: session,
		send:   make(chan Message, clientBuffer),
	}
	select {
	case hub.register <- c:
	case <-hub.done:
		close(c.send)
	}
	return c
}

// Run delivers scores until the dashboard disconnects or the hub stops.
// It blocks, so call it from the websocket handler.
func (c *Client) Run() {
	go c.deliver()
	c.listen()
}

// listen consumes control frames so disconnects and pongs are noticed.
func (c *Client) listen() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// deliver is the only writer on the connection.
func (c *Client) deliver() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}

		case <-keepalive.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
