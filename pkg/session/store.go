package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Store defines the interface for session storage operations.
type Store interface {
	// Create stores a new session
	Create(s *Session) error

	// Get retrieves a session by ID, or ErrNotFound
	Get(id string) (*Session, error)

	// Update replaces an existing session
	Update(s *Session) error

	// List returns a user's sessions, newest first
	List(userID string) ([]*Session, error)

	// AddLog appends a focus log to its session
	AddLog(l FocusLog) error

	// Logs returns a session's focus logs, oldest first
	Logs(sessionID string) ([]FocusLog, error)

	// Close releases the store's resources
	Close() error
}

// JSONStore implements Store using a JSON file for persistence.
type JSONStore struct {
	path     string
	sessions map[string]*Session
	logs     map[string][]FocusLog
	mu       sync.RWMutex
}

var _ Store = &JSONStore{}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int        `json:"version"`
	UpdatedAt string     `json:"updated_at"`
	Sessions  []*Session `json:"sessions"`
	Logs      []FocusLog `json:"focus_logs"`
}

const currentVersion = 1

// NewJSONStore creates a new JSON-based store at the given path.
// If the file doesn't exist, it will be created on first save.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:     path,
		sessions: make(map[string]*Session),
		logs:     make(map[string][]FocusLog),
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}

	return store, nil
}

// load reads the store from disk.
func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	if stored.Version > currentVersion {
		return fmt.Errorf("unsupported store version %d", stored.Version)
	}

	for _, sess := range stored.Sessions {
		s.sessions[sess.ID] = sess
	}
	for _, l := range stored.Logs {
		s.logs[l.SessionID] = append(s.logs[l.SessionID], l)
	}

	return nil
}

// save writes the store to disk. Callers hold the write lock.
func (s *JSONStore) save() error {
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Sessions:  make([]*Session, 0, len(s.sessions)),
	}
	for _, sess := range s.sessions {
		stored.Sessions = append(stored.Sessions, sess)
	}
	sort.Slice(stored.Sessions, func(i, j int) bool {
		return stored.Sessions[i].StartedAt.Before(stored.Sessions[j].StartedAt)
	})
	for _, sess := range stored.Sessions {
		stored.Logs = append(stored.Logs, s.logs[sess.ID]...)
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename (atomic write)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath) // Clean up temp file
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Create stores a new session.
func (s *JSONStore) Create(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return s.save()
}

// Get retrieves a session by ID.
func (s *JSONStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *sess
	return &cp, nil
}

// Update replaces an existing session.
func (s *JSONStore) Update(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return s.save()
}

// List returns a user's sessions, newest first.
func (s *JSONStore) List(userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// AddLog appends a focus log to its session.
func (s *JSONStore) AddLog(l FocusLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[l.SessionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, l.SessionID)
	}
	s.logs[l.SessionID] = append(s.logs[l.SessionID], l)
	return s.save()
}

// Logs returns a session's focus logs, oldest first.
func (s *JSONStore) Logs(sessionID string) ([]FocusLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.logs[sessionID]
	out := make([]FocusLog, len(logs))
	copy(out, logs)
	return out, nil
}

// Close is a no-op; every change is already on disk.
func (s *JSONStore) Close() error {
	return nil
}

// Path returns the file path of the store.
func (s *JSONStore) Path() string {
	return s.path
}
