// Package session tracks focus sessions: it owns one estimator per live
// session, throttles score reports into a focus log, and computes the
// rewards when a session ends.
package session

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown sessions and for sessions owned
	// by another user.
	ErrNotFound = errors.New("session not found")

	// ErrEnded is returned when a frame, log or end request targets a
	// session that has already ended.
	ErrEnded = errors.New("session already ended")

	// ErrForbidden is returned when a session is addressed without a user.
	ErrForbidden = errors.New("user required")

	// ErrInvalidScore is returned for a logged score outside [0,100].
	ErrInvalidScore = errors.New("score must be between 0 and 100")
)

// Session is one focus session of one user.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Preset    string     `json:"preset"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Result    *Rewards   `json:"result,omitempty"`
}

// Active reports whether the session has not ended.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// FocusLog is one reported focus score.
type FocusLog struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Score     int       `json:"score"`
	At        time.Time `json:"at"`
}

// Analytics aggregates a user's ended sessions.
type Analytics struct {
	Sessions     int     `json:"sessions"`
	Minutes      int     `json:"minutes"`
	AverageFocus float64 `json:"average_focus"`
	Coins        int     `json:"coins"`
	XP           int     `json:"xp"`
	PetHappiness int     `json:"pet_happiness"`
}

// Summarize builds analytics from a list of sessions; sessions still in
// progress are skipped. The average is weighted by session, not by log.
func Summarize(sessions []*Session) Analytics {
	var a Analytics
	var total float64
	for _, s := range sessions {
		if s.Result == nil {
			continue
		}
		a.Sessions++
		a.Minutes += s.Result.Minutes
		a.Coins += s.Result.Coins
		a.XP += s.Result.XP
		a.PetHappiness += s.Result.PetHappiness
		total += s.Result.AverageFocus
	}
	if a.Sessions > 0 {
		a.AverageFocus = total / float64(a.Sessions)
	}
	return a
}
