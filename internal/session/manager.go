// Package session owns the per-client inspection workspaces on the shared
// filesystem and their in-memory registry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/panelsight/backend/internal/metrics"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("inspection already in progress")
)

// Session is one client's workspace plus its bookkeeping. Mutation goes
// through the Manager, which holds the lock.
type Session struct {
	ID              string
	ProductName     string
	CreatedAt       time.Time
	LastActivity    time.Time
	InspectionCount int
	InProgress      bool
	Workspace       string

	// LastResults keeps the most recent inspection payload for status queries.
	LastResults interface{}
}

func (s *Session) InputDir() string  { return filepath.Join(s.Workspace, "input") }
func (s *Session) OutputDir() string { return filepath.Join(s.Workspace, "output") }

// Status is the read-only snapshot handed to the API layer.
type Status struct {
	ID              string    `json:"session_id"`
	ProductName     string    `json:"product_name"`
	InspectionCount int       `json:"inspection_count"`
	LastActivity    time.Time `json:"last_activity"`
	InProgress      bool      `json:"inspection_in_progress"`
}

// CloseInfo reports the outcome of closing a session.
type CloseInfo struct {
	DurationSeconds  float64 `json:"duration_seconds"`
	InspectionCount  int     `json:"inspection_count"`
	DirectoryCleaned bool    `json:"directory_cleaned"`
}

// Manager is the process-wide session registry.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	sharedRoot string
	idleExpiry time.Duration
	logger     *log.Logger
}

func NewManager(sharedRoot string, idleExpiry time.Duration) *Manager {
	if idleExpiry <= 0 {
		idleExpiry = time.Hour
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		sharedRoot: sharedRoot,
		idleExpiry: idleExpiry,
		logger:     log.New(log.Writer(), "[SESSION] ", log.LstdFlags),
	}
}

// Create allocates a workspace for a new session. Any residual directory at
// the target path is removed first; a crashed predecessor must not leak stale
// artifacts into a fresh session.
func (m *Manager) Create(productName string) (*Session, error) {
	id := uuid.NewString()
	workspace := filepath.Join(m.sharedRoot, "sessions", id)

	if err := os.RemoveAll(workspace); err != nil {
		return nil, fmt.Errorf("clean residual workspace: %w", err)
	}
	for _, dir := range []string{filepath.Join(workspace, "input"), filepath.Join(workspace, "output")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}

	now := time.Now()
	s := &Session{
		ID:           id,
		ProductName:  productName,
		CreatedAt:    now,
		LastActivity: now,
		Workspace:    workspace,
	}

	m.mu.Lock()
	m.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	m.logger.Printf("created session %s for product %s", id, productName)
	return s, nil
}

// Get returns a snapshot-safe handle; callers must not mutate it directly.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Status returns the registry snapshot for one session.
func (m *Manager) Status(id string) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return statusOf(s), nil
}

// List snapshots every live session, for the operator surface.
func (m *Manager) List() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, statusOf(s))
	}
	return out
}

func statusOf(s *Session) Status {
	return Status{
		ID:              s.ID,
		ProductName:     s.ProductName,
		InspectionCount: s.InspectionCount,
		LastActivity:    s.LastActivity,
		InProgress:      s.InProgress,
	}
}

// BeginInspection atomically claims the session's single inspection slot.
func (m *Manager) BeginInspection(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if s.InProgress {
		return nil, fmt.Errorf("%w: session %s", ErrConflict, id)
	}
	s.InProgress = true
	s.LastActivity = time.Now()
	return s, nil
}

// EndInspection releases the slot. It must run on every path out of an
// inspection, success or not, or the session stays locked forever.
func (m *Manager) EndInspection(id string, result interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	s.InProgress = false
	s.LastActivity = time.Now()
	if result != nil {
		s.InspectionCount++
		s.LastResults = result
	}
}

// Close removes the session and deletes its workspace tree. Deletion is
// best-effort; a failure is reported but never corrupts the registry.
func (m *Manager) Close(id string) (CloseInfo, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return CloseInfo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	cleaned := true
	if err := os.RemoveAll(s.Workspace); err != nil {
		m.logger.Printf("⚠️  failed to delete workspace %s: %v", s.Workspace, err)
		cleaned = false
	}
	return CloseInfo{
		DurationSeconds:  time.Since(s.CreatedAt).Seconds(),
		InspectionCount:  s.InspectionCount,
		DirectoryCleaned: cleaned,
	}, nil
}

// Sweep removes sessions idle beyond the expiry. Sessions mid-inspection are
// skipped and picked up on a later pass.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if !s.InProgress && time.Since(s.LastActivity) > m.idleExpiry {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range expired {
		if err := os.RemoveAll(s.Workspace); err != nil {
			m.logger.Printf("⚠️  sweep: failed to delete workspace %s: %v", s.Workspace, err)
		}
		m.logger.Printf("expired idle session %s (product %s)", s.ID, s.ProductName)
	}
	return len(expired)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunSweeper loops Sweep until the context ends.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
