package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/hub"
	"github.com/teslashibe/go-focus/pkg/landmark"
	"github.com/teslashibe/go-focus/pkg/protocol"
	"github.com/teslashibe/go-focus/pkg/session"
)

// FocusLogRequest is the body of a manual focus report
type FocusLogRequest struct {
	Score *int `json:"score" validate:"required,min=0,max=100"`
}

// FrameRequest is the body of an HTTP frame upload. Points may be empty
// only for a no_face frame.
type FrameRequest struct {
	Type      protocol.MessageType `json:"type" validate:"required,oneof=landmarks no_face"`
	Timestamp int64                `json:"ts" validate:"min=0"`
	Points    []landmark.Point     `json:"points" validate:"required_if=Type landmarks"`
}

// SessionResponse is a session with its live estimator state
type SessionResponse struct {
	*session.Session
	State *focus.State `json:"state,omitempty"`
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrForbidden):
		return fiber.StatusUnauthorized
	case errors.Is(err, session.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, session.ErrEnded):
		return fiber.StatusConflict
	case errors.Is(err, session.ErrInvalidScore),
		errors.Is(err, landmark.ErrMalformed),
		errors.Is(err, protocol.ErrUnexpectedType):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		body := fiber.Map{"error": reqErr.msg}
		if len(reqErr.fields) > 0 {
			body["fields"] = reqErr.fields
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func userID(c *fiber.Ctx) string {
	return c.Get(UserHeader)
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"version":  Version,
		"sessions": s.sessions.Active(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

// handleMetrics exposes counters in the Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	ingest := s.gateway.GetStats()
	sent, dropped := s.scoreHub.Stats()
	return c.SendString(fmt.Sprintf(`# HELP focusd_active_sessions Live session monitors
# TYPE focusd_active_sessions gauge
focusd_active_sessions %d

# HELP focusd_ingest_connections Connected landmark providers
# TYPE focusd_ingest_connections gauge
focusd_ingest_connections %d

# HELP focusd_frames_received Total frames received over WebSocket
# TYPE focusd_frames_received counter
focusd_frames_received %d

# HELP focusd_frames_rejected Total frames rejected
# TYPE focusd_frames_rejected counter
focusd_frames_rejected %d

# HELP focusd_focus_reports Total scores appended to focus logs
# TYPE focusd_focus_reports counter
focusd_focus_reports %d

# HELP focusd_dashboard_clients Connected dashboard clients
# TYPE focusd_dashboard_clients gauge
focusd_dashboard_clients %d

# HELP focusd_scores_broadcast Total score updates published to the dashboard hub
# TYPE focusd_scores_broadcast counter
focusd_scores_broadcast %d

# HELP focusd_scores_sent Total score messages delivered to dashboards
# TYPE focusd_scores_sent counter
focusd_scores_sent %d

# HELP focusd_scores_dropped Total score messages dropped
# TYPE focusd_scores_dropped counter
focusd_scores_dropped %d
`, s.sessions.Active(), ingest.Connections, ingest.FramesReceived, ingest.FramesRejected,
		s.reports.Load(), s.scoreHub.ClientCount(), s.scoresBroadcast.Load(), sent, dropped))
}

// handleStartSession starts a session for the calling user
func (s *Server) handleStartSession(c *fiber.Ctx) error {
	sess, err := s.sessions.Start(userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

// handleListSessions lists the calling user's sessions
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.sessions.List(userID(c))
	if err != nil {
		return fail(c, err)
	}
	if sessions == nil {
		sessions = []*session.Session{}
	}
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleAnalytics summarizes the calling user's ended sessions
func (s *Server) handleAnalytics(c *fiber.Ctx) error {
	analytics, err := s.sessions.Analytics(userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(analytics)
}

// handleGetSession returns a session and, while active, its live state
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(userID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	resp := SessionResponse{Session: sess}
	if sess.Active() {
		mon, err := s.sessions.Monitor(sess.ID)
		if err != nil {
			return fail(c, err)
		}
		state := mon.State()
		resp.State = &state
	}
	return c.JSON(resp)
}

// handleGetLogs returns a session's focus log
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	logs, err := s.sessions.Logs(userID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	if logs == nil {
		logs = []session.FocusLog{}
	}
	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}

// handleFrame feeds one frame uploaded over HTTP
func (s *Server) handleFrame(c *fiber.Ctx) error {
	var req FrameRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	id := c.Params("id")
	if _, err := s.sessions.Get(userID(c), id); err != nil {
		return fail(c, err)
	}

	var set *landmark.Set
	if req.Type == protocol.TypeLandmarks {
		set = landmark.FromPoints(req.Points)
	}
	var at time.Time
	if req.Timestamp > 0 {
		at = time.UnixMilli(req.Timestamp)
	}

	update, err := s.sessions.Frame(id, at, set)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(protocol.ScoreData{
		Session:    update.Session,
		Score:      update.State.Score,
		Engaged:    update.State.Engaged,
		Status:     update.State.Status,
		Calibrated: update.State.Calibrated,
		Frame:      update.State.Frame,
		Reported:   update.Report,
	})
}

// handleFocusLog appends a manually reported score
func (s *Server) handleFocusLog(c *fiber.Ctx) error {
	var req FocusLogRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err)
	}

	entry, err := s.sessions.LogFocus(userID(c), c.Params("id"), *req.Score)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// handleEndSession ends a session and returns its rewards
func (s *Server) handleEndSession(c *fiber.Ctx) error {
	sess, err := s.sessions.End(userID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(sess)
}

// authorizeScores requires a user before the dashboard upgrade, and
// ownership of the session named by ?session=.
func (s *Server) authorizeScores(c *fiber.Ctx) error {
	user := userID(c)
	if user == "" {
		return fail(c, session.ErrForbidden)
	}
	if id := c.Query("session"); id != "" {
		if _, err := s.sessions.Get(user, id); err != nil {
			return fail(c, err)
		}
	}
	c.Locals("user", user)
	return c.Next()
}

// handleScoresWS streams the user's score updates; ?session= limits it to
// one session
func (s *Server) handleScoresWS(c *websocket.Conn) {
	user, _ := c.Locals("user").(string)
	if user == "" {
		_ = c.Close()
		return
	}
	client := hub.NewClient(s.scoreHub, c, user, c.Query("session"))
	client.Run()
}
