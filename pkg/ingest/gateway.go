// Package ingest provides the WebSocket endpoint landmark providers
// stream frames into.
package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/landmark"
	"github.com/teslashibe/go-focus/pkg/protocol"
	"github.com/teslashibe/go-focus/pkg/session"
)

// maxMessageSize fits a 478-point frame with room to spare.
const maxMessageSize = 256 * 1024

// UserHeader carries the calling user's ID on the upgrade request.
const UserHeader = "X-User-ID"

// Sink receives decoded frames. session.Manager implements it.
type Sink interface {
	// Authorize checks that userID owns the active session.
	Authorize(userID, sessionID string) error
	Frame(sessionID string, at time.Time, set *landmark.Set) (session.Update, error)
}

// Connection represents a connected landmark provider
type Connection struct {
	ID        string
	Session   string
	User      string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the provider
func (c *Connection) Send(msg *protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.LastSeen = time.Now()
	c.mu.Unlock()
}

// Gateway manages WebSocket connections from landmark providers
type Gateway struct {
	sink Sink

	mu    sync.RWMutex
	conns map[string]*Connection

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	framesRejected   atomic.Uint64
}

// NewGateway creates a gateway feeding frames into sink
func NewGateway(sink Sink) *Gateway {
	return &Gateway{
		sink:  sink,
		conns: make(map[string]*Connection),
	}
}

// RegisterRoutes registers the ingest WebSocket route on a Fiber app
func (g *Gateway) RegisterRoutes(app fiber.Router) {
	// WebSocket upgrade middleware
	app.Use("/ws/ingest", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/ingest/:session", g.authorize, websocket.New(g.handleProvider, websocket.Config{
		ReadBufferSize: 64 * 1024,
	}))
}

// authorize refuses the upgrade unless the caller owns the active session.
func (g *Gateway) authorize(c *fiber.Ctx) error {
	user := c.Get(UserHeader)
	if err := g.sink.Authorize(user, c.Params("session")); err != nil {
		log.Debug("ingest upgrade refused", "user", user, "session", c.Params("session"), "error", err)
		return upgradeError(err)
	}
	c.Locals("user", user)
	return c.Next()
}

func upgradeError(err error) error {
	switch {
	case errors.Is(err, session.ErrForbidden):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrEnded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}

// handleProvider handles a landmark provider connection
func (g *Gateway) handleProvider(c *websocket.Conn) {
	user, _ := c.Locals("user").(string)
	if user == "" {
		_ = c.Close()
		return
	}
	conn := &Connection{
		ID:        uuid.New().String(),
		Session:   c.Params("session"),
		User:      user,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}
	logger := log.With("conn", conn.ID, "session", conn.Session, "user", conn.User)

	g.mu.Lock()
	g.conns[conn.ID] = conn
	count := len(g.conns)
	g.mu.Unlock()
	logger.Info("provider connected", "connections", count)

	defer func() {
		g.mu.Lock()
		delete(g.conns, conn.ID)
		count := len(g.conns)
		g.mu.Unlock()
		logger.Info("provider disconnected", "connections", count)
	}()

	c.SetReadLimit(maxMessageSize)

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			logger.Debug("read error", "error", err)
			return
		}

		conn.touch()
		g.messagesReceived.Add(1)
		if !g.handleMessage(conn, data) {
			return
		}
	}
}

// handleMessage processes one message and reports whether the
// connection should stay open.
func (g *Gateway) handleMessage(conn *Connection, data []byte) bool {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		g.sendError(conn, err)
		return true
	}

	switch {
	case msg.IsFrame():
		return g.handleFrame(conn, msg)

	case msg.Type == protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			g.sendError(conn, err)
			return true
		}
		pong, err := protocol.NewPongMessage(ping.ID, ping.Timestamp, time.Now().UnixMilli())
		if err == nil {
			g.send(conn, pong)
		}
		return true

	default:
		g.sendError(conn, errors.New("unsupported message type: "+string(msg.Type)))
		return true
	}
}

func (g *Gateway) handleFrame(conn *Connection, msg *protocol.Message) bool {
	g.framesReceived.Add(1)

	set, err := msg.LandmarkSet()
	if err != nil {
		g.framesRejected.Add(1)
		g.sendError(conn, err)
		return true
	}

	update, err := g.sink.Frame(conn.Session, msg.Time(), set)
	if err != nil {
		g.framesRejected.Add(1)
		g.sendError(conn, err)
		// Frames for unknown or ended sessions will never be accepted.
		return !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrEnded)
	}

	reply, err := protocol.NewScoreMessage(update.Session, update.State, update.Report)
	if err == nil {
		g.send(conn, reply)
	}
	return true
}

func (g *Gateway) send(conn *Connection, msg *protocol.Message) {
	g.messagesSent.Add(1)
	if err := conn.Send(msg); err != nil {
		log.Debug("send failed", "conn", conn.ID, "error", err)
	}
}

func (g *Gateway) sendError(conn *Connection, err error) {
	msg, mErr := protocol.NewErrorMessage(err)
	if mErr != nil {
		return
	}
	g.send(conn, msg)
}

// ConnectionCount returns the number of connected providers
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Stats contains gateway statistics
type Stats struct {
	Connections      int    `json:"connections"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesRejected   uint64 `json:"frames_rejected"`
}

// GetStats returns gateway statistics
func (g *Gateway) GetStats() Stats {
	return Stats{
		Connections:      g.ConnectionCount(),
		MessagesReceived: g.messagesReceived.Load(),
		MessagesSent:     g.messagesSent.Load(),
		FramesReceived:   g.framesReceived.Load(),
		FramesRejected:   g.framesRejected.Load(),
	}
}

// ConnectionInfo contains info about a connected provider
type ConnectionInfo struct {
	ID        string    `json:"id"`
	Session   string    `json:"session"`
	User      string    `json:"user"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetConnectionInfos returns info about all connected providers
func (g *Gateway) GetConnectionInfos() []ConnectionInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()

	infos := make([]ConnectionInfo, 0, len(g.conns))
	for _, c := range g.conns {
		c.mu.Lock()
		infos = append(infos, ConnectionInfo{
			ID:        c.ID,
			Session:   c.Session,
			User:      c.User,
			Connected: c.Connected,
			LastSeen:  c.LastSeen,
		})
		c.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for provider monitoring
func (g *Gateway) RegisterAPIRoutes(api fiber.Router) {
	ingest := api.Group("/ingest")

	// List connected providers
	ingest.Get("/connections", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"connections": g.GetConnectionInfos(),
			"count":       g.ConnectionCount(),
		})
	})

	// Get gateway stats
	ingest.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(g.GetStats())
	})
}
