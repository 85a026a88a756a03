package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-focus/internal/log"
	"github.com/teslashibe/go-focus/pkg/focus"
	"github.com/teslashibe/go-focus/pkg/landmark"
)

// Options configures a Manager.
type Options struct {
	Preset         string        // focus preset for new sessions
	ReportInterval time.Duration // minimum frame time between focus-log entries
	Now            func() time.Time
}

// Manager owns the live sessions and their monitors.
type Manager struct {
	store    Store
	preset   string
	cfg      focus.Config
	interval time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	monitors map[string]*Monitor
	onUpdate func(Update)

	ending sync.Mutex // serializes End
}

// NewManager creates a manager backed by store.
func NewManager(store Store, opts Options) (*Manager, error) {
	cfg, err := focus.ConfigByName(opts.Preset)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Preset == "" {
		opts.Preset = focus.PresetDefault
	}
	if opts.ReportInterval == 0 {
		opts.ReportInterval = DefaultReportInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		store:    store,
		preset:   opts.Preset,
		cfg:      cfg,
		interval: opts.ReportInterval,
		now:      opts.Now,
		monitors: make(map[string]*Monitor),
	}, nil
}

// OnUpdate sets the callback invoked after every accepted frame.
func (m *Manager) OnUpdate(callback func(Update)) {
	m.mu.Lock()
	m.onUpdate = callback
	m.mu.Unlock()
}

// Start creates a session for a user and its live monitor.
func (m *Manager) Start(userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrForbidden
	}

	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Preset:    m.preset,
		StartedAt: m.now(),
	}
	if err := m.store.Create(sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	mon := NewMonitor(sess.ID, m.cfg, m.interval)
	mon.user = userID

	m.mu.Lock()
	m.monitors[sess.ID] = mon
	active := len(m.monitors)
	m.mu.Unlock()

	log.Info("session started", "session", sess.ID, "user", userID, "preset", m.preset, "active", active)
	return sess, nil
}

// Get returns a user's session.
func (m *Manager) Get(userID, id string) (*Session, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	sess, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

// Authorize checks that a user may stream frames into a session: the
// session must be theirs and still active.
func (m *Manager) Authorize(userID, id string) error {
	sess, err := m.Get(userID, id)
	if err != nil {
		return err
	}
	if !sess.Active() {
		return fmt.Errorf("%w: %s", ErrEnded, id)
	}
	return nil
}

// Monitor returns the live monitor of an active session.
func (m *Manager) Monitor(id string) (*Monitor, error) {
	m.mu.RLock()
	mon, ok := m.monitors[id]
	m.mu.RUnlock()
	if ok {
		return mon, nil
	}

	// Active in the store but unknown here: the process restarted, so
	// the session resumes with a fresh calibration. The store is read
	// under the lock so a concurrent End is either still visible in the
	// map or already persisted.
	m.mu.Lock()
	defer m.mu.Unlock()
	if mon, ok := m.monitors[id]; ok {
		return mon, nil
	}
	sess, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("%w: %s", ErrEnded, id)
	}
	mon = NewMonitor(id, m.cfg, m.interval)
	mon.user = sess.UserID
	m.monitors[id] = mon
	log.Info("session resumed", "session", id)
	return mon, nil
}

// Frame feeds one frame to a session. Scores due for reporting are
// appended to the focus log before End can load it. A zero time means
// the frame arrived now.
func (m *Manager) Frame(id string, at time.Time, set *landmark.Set) (Update, error) {
	mon, err := m.Monitor(id)
	if err != nil {
		return Update{}, err
	}
	if at.IsZero() {
		at = m.now()
	}

	update, err := mon.Record(at, set, func(u Update) error {
		err := m.store.AddLog(FocusLog{
			ID:        uuid.New().String(),
			SessionID: id,
			Score:     u.State.Score,
			At:        u.At,
		})
		if err != nil {
			log.Warn("failed to store focus log", "session", id, "error", err)
		}
		return err
	})
	if err != nil {
		return update, err
	}

	m.mu.RLock()
	callback := m.onUpdate
	m.mu.RUnlock()
	if callback != nil {
		callback(update)
	}
	return update, nil
}

// LogFocus appends a manually reported score to a user's session.
func (m *Manager) LogFocus(userID, id string, score int) (FocusLog, error) {
	if score < 0 || score > 100 {
		return FocusLog{}, fmt.Errorf("%w: got %d", ErrInvalidScore, score)
	}
	sess, err := m.Get(userID, id)
	if err != nil {
		return FocusLog{}, err
	}
	if !sess.Active() {
		return FocusLog{}, fmt.Errorf("%w: %s", ErrEnded, id)
	}
	mon, err := m.Monitor(id)
	if err != nil {
		return FocusLog{}, err
	}

	var entry FocusLog
	err = mon.guard(func() error {
		entry = FocusLog{
			ID:        uuid.New().String(),
			SessionID: id,
			Score:     score,
			At:        m.now(),
		}
		return m.store.AddLog(entry)
	})
	if err != nil {
		return FocusLog{}, err
	}
	return entry, nil
}

// End closes a user's session, computes its rewards and drops its monitor.
// The monitor is closed first, so every score logged before End returns
// is part of the rewards and none lands after EndedAt.
func (m *Manager) End(userID, id string) (*Session, error) {
	m.ending.Lock()
	defer m.ending.Unlock()

	sess, err := m.Get(userID, id)
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("%w: %s", ErrEnded, id)
	}

	m.mu.Lock()
	mon, ok := m.monitors[id]
	if !ok {
		mon = NewMonitor(id, m.cfg, m.interval)
		mon.user = sess.UserID
		m.monitors[id] = mon
	}
	m.mu.Unlock()
	mon.close()

	ended, err := m.finish(sess)
	if err != nil {
		mon.reopen()
		return nil, err
	}

	m.mu.Lock()
	delete(m.monitors, id)
	m.mu.Unlock()

	rewards := ended.Result
	log.Info("session ended", "session", id, "user", userID,
		"minutes", rewards.Minutes, "avg", rewards.AverageFocus, "coins", rewards.Coins, "xp", rewards.XP)
	return ended, nil
}

// finish computes rewards from the stored focus log and persists the
// ended session.
func (m *Manager) finish(sess *Session) (*Session, error) {
	logs, err := m.store.Logs(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load focus logs: %w", err)
	}

	ended := m.now()
	rewards := Compute(ended.Sub(sess.StartedAt), logs)
	sess.EndedAt = &ended
	sess.Result = &rewards
	if err := m.store.Update(sess); err != nil {
		sess.EndedAt, sess.Result = nil, nil
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	return sess, nil
}

// List returns a user's sessions, newest first.
func (m *Manager) List(userID string) ([]*Session, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	return m.store.List(userID)
}

// Logs returns the focus log of a user's session.
func (m *Manager) Logs(userID, id string) ([]FocusLog, error) {
	if _, err := m.Get(userID, id); err != nil {
		return nil, err
	}
	return m.store.Logs(id)
}

// Analytics summarizes a user's ended sessions.
func (m *Manager) Analytics(userID string) (Analytics, error) {
	sessions, err := m.List(userID)
	if err != nil {
		return Analytics{}, err
	}
	return Summarize(sessions), nil
}

// Active returns the number of live monitors.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monitors)
}

// IsClientError reports whether err is caused by the request rather than
// the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEnded) ||
		errors.Is(err, ErrForbidden) || errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, landmark.ErrMalformed)
}
