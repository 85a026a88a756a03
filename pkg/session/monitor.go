package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/landmark"
)

// Update is the result of feeding one frame to a monitor.
type Update struct {
	Session string
	User    string
	State   focus.State
	At      time.Time
	// Report is set when the score is due for the focus log.
	Report bool
}

// Monitor owns the estimator of one live session. Frames may arrive
// from several connections; the monitor serializes them.
type Monitor struct {
	id   string
	user string

	// life is held shared while a frame is scored and logged, and
	// exclusively by close.
	life   sync.RWMutex
	closed bool

	mu        sync.Mutex
	estimator *focus.Estimator
	sampler   *Sampler
	frames    uint64
	rejected  uint64
}

// NewMonitor creates a monitor with a fresh estimator.
func NewMonitor(id string, cfg focus.Config, interval time.Duration) *Monitor {
	return &Monitor{
		id:        id,
		estimator: focus.New(cfg),
		sampler:   NewSampler(interval),
	}
}

// ID returns the session ID.
func (m *Monitor) ID() string {
	return m.id
}

// Frame feeds one frame captured at the given time. A nil set is a
// no-face frame. Malformed sets are rejected with landmark.ErrMalformed
// and never reported. A closed monitor returns ErrEnded.
func (m *Monitor) Frame(at time.Time, set *landmark.Set) (Update, error) {
	return m.Record(at, set, nil)
}

// Record is Frame with a commit hook: when the score is due, commit runs
// before the monitor can be closed. A failed commit clears Report but
// still counts the frame.
func (m *Monitor) Record(at time.Time, set *landmark.Set, commit func(Update) error) (Update, error) {
	m.life.RLock()
	defer m.life.RUnlock()
	if m.closed {
		return Update{Session: m.id, User: m.user, At: at}, fmt.Errorf("%w: %s", ErrEnded, m.id)
	}

	update, err := m.estimate(at, set)
	if err != nil || !update.Report || commit == nil {
		return update, err
	}
	if err := commit(update); err != nil {
		update.Report = false
	}
	return update, nil
}

func (m *Monitor) estimate(at time.Time, set *landmark.Set) (Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.estimator.Estimate(set)
	if err != nil {
		m.rejected++
		return Update{Session: m.id, User: m.user, State: m.estimator.Snapshot(), At: at}, err
	}
	m.frames++

	return Update{
		Session: m.id,
		User:    m.user,
		State:   m.estimator.Snapshot(),
		At:      at,
		Report:  m.sampler.Due(at),
	}, nil
}

// guard runs fn unless the monitor is closed.
func (m *Monitor) guard(fn func() error) error {
	m.life.RLock()
	defer m.life.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: %s", ErrEnded, m.id)
	}
	return fn()
}

// close waits for in-flight frames and refuses later ones.
func (m *Monitor) close() {
	m.life.Lock()
	m.closed = true
	m.life.Unlock()
}

func (m *Monitor) reopen() {
	m.life.Lock()
	m.closed = false
	m.life.Unlock()
}

// State returns the estimator's current snapshot.
func (m *Monitor) State() focus.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.estimator.Snapshot()
}

// Stats returns accepted and rejected frame counts.
func (m *Monitor) Stats() (frames, rejected uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames, m.rejected
}
