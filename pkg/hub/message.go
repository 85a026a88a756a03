// Package hub provides a thread-safe websocket broadcast hub for live
// score dashboards, using the channel-based fan-out pattern.
package hub

// Message represents a message to be broadcast to clients
type Message struct {
	// User and Session scope the message. A client only receives its own
	// user's messages, and only its session's when it subscribed to one.
	// Empty fields are unscoped.
	User    string
	Session string
	Data    []byte
}

// NewJSONMessage creates a message from pre-encoded JSON
func NewJSONMessage(user, session string, data []byte) Message {
	return Message{User: user, Session: session, Data: data}
}

// matches reports whether a client of user subscribed to filter should
// receive m.
func (m Message) matches(user, filter string) bool {
	if m.User != "" && m.User != user {
		return false
	}
	return filter == "" || m.Session == "" || m.Session == filter
}
