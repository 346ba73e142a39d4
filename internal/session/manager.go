package session

import (
	"context"
	"log/slog"
	"sync"
)

// Opener opens a session for userID.
type Opener func(ctx context.Context, userID string) (*Session, error)

// Manager follows the signed-in identity, keeping exactly one session open
// for it: a sign-in opens one, a sign-out closes it, and switching users
// replaces it.
type Manager struct {
	open   Opener
	logger *slog.Logger

	mu      sync.Mutex
	current *Session
}

func NewManager(open Opener, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{open: open, logger: logger}
}

// SetIdentity switches to userID. An empty userID means signed out. Setting
// the current identity again keeps the open session.
func (m *Manager) SetIdentity(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.UserID() == userID {
		return nil
	}
	if m.current != nil {
		m.logger.Info("identity changed, closing session", "from", m.current.UserID(), "to", userID)
		m.current.Close()
		m.current = nil
	}
	if userID == "" {
		return nil
	}
	s, err := m.open(ctx, userID)
	if err != nil {
		return err
	}
	m.current = s
	return nil
}

// Current returns the open session, or nil when signed out.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Watch applies identities received on ch until ch closes or ctx ends.
// Failures to open a session are logged and leave the manager signed out.
func (m *Manager) Watch(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-ch:
			if !ok {
				return
			}
			if err := m.SetIdentity(ctx, id); err != nil {
				m.logger.Error("open session failed", "user", id, "err", err)
			}
		}
	}
}

// Close closes the open session, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		m.current = nil
	}
}
