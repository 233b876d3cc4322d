package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"spicywod/internal/kvstore"
	"spicywod/internal/logger"
	"spicywod/internal/metrics"
	"spicywod/internal/models"

	"github.com/google/uuid"
)

const (
	SessionDuration   = 24 * time.Hour
	SessionCookieName = "sessionId"

	userSessionsPrefix = "user_sessions:"
)

type SessionManager struct {
	store    kvstore.Store
	duration time.Duration
	now      func() time.Time

	// mu serializes updates to the per-user session index.
	mu sync.Mutex
}

func NewSessionManager(store kvstore.Store, duration time.Duration) *SessionManager {
	if duration <= 0 {
		duration = SessionDuration
	}
	return &SessionManager{store: store, duration: duration, now: time.Now}
}

// WithClock replaces the manager's time source.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

func (m *SessionManager) Duration() time.Duration {
	return m.duration
}

// CreateSession stores a new session for the user and returns its id.
func (m *SessionManager) CreateSession(ctx context.Context, userID, email string) (string, *models.Session, error) {
	sessionID := uuid.NewString()
	now := m.now().Unix()

	session := &models.Session{
		ID:        sessionID,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now + int64(m.duration/time.Second),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := m.store.Put(ctx, sessionID, string(data), m.duration); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	if err := m.trackSession(ctx, userID, sessionID); err != nil {
		return "", nil, err
	}

	return sessionID, session, nil
}

// GetSession returns the live session for sessionID. A session found past its
// expiry is destroyed and reported as ErrSessionExpired; a missing or
// unreadable one as ErrUnauthenticated.
func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}

	data, ok, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil, ErrUnauthenticated
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil || session.ID == "" || session.UserID == "" {
		logger.Warn("Discarding unreadable session", "session_id", sessionID)
		return nil, ErrUnauthenticated
	}

	if session.Expired(m.now()) {
		metrics.RecordSessionExpired()
		if err := m.DestroySession(ctx, sessionID); err != nil {
			logger.Warn("Failed to destroy expired session", "session_id", sessionID, "error", err)
		}
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// DestroySession deletes the session. Deleting an unknown id is not an error.
func (m *SessionManager) DestroySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DestroyUserSessions deletes every session of userID except keep and returns
// how many were removed.
func (m *SessionManager) DestroyUserSessions(ctx context.Context, userID, keep string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.userSessions(ctx, userID)
	if err != nil {
		return 0, err
	}

	destroyed := 0
	var kept []string
	for _, id := range ids {
		if id == keep {
			kept = append(kept, id)
			continue
		}
		if err := m.DestroySession(ctx, id); err != nil {
			return destroyed, err
		}
		destroyed++
	}

	if err := m.saveUserSessions(ctx, userID, kept); err != nil {
		return destroyed, err
	}
	return destroyed, nil
}

// trackSession adds sessionID to the user's index, dropping ids whose
// session is already gone.
func (m *SessionManager) trackSession(ctx context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.userSessions(ctx, userID)
	if err != nil {
		return err
	}

	live := []string{sessionID}
	for _, id := range ids {
		_, ok, err := m.store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
		if ok && id != sessionID {
			live = append(live, id)
		}
	}

	return m.saveUserSessions(ctx, userID, live)
}

func (m *SessionManager) userSessions(ctx context.Context, userID string) ([]string, error) {
	data, ok, err := m.store.Get(ctx, userSessionsPrefix+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session index: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		logger.Warn("Discarding unreadable session index", "user_id", userID)
		return nil, nil
	}
	return ids, nil
}

// saveUserSessions writes the index, which lives as long as the newest
// session could.
func (m *SessionManager) saveUserSessions(ctx context.Context, userID string, ids []string) error {
	key := userSessionsPrefix + userID
	if len(ids) == 0 {
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete session index: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode session index: %w", err)
	}
	if err := m.store.Put(ctx, key, string(data), m.duration); err != nil {
		return fmt.Errorf("failed to store session index: %w", err)
	}
	return nil
}

// SessionCookie renders the Set-Cookie value for a session id.
func (m *SessionManager) SessionCookie(sessionID string) string {
	return fmt.Sprintf("%s=%s; Path=/; HttpOnly; Secure; SameSite=Lax; Max-Age=%d",
		SessionCookieName, sessionID, int(m.duration/time.Second))
}

// ClearSessionCookie renders a Set-Cookie value that removes the session cookie.
func ClearSessionCookie() string {
	return SessionCookieName + "=; Path=/; HttpOnly; Secure; SameSite=Lax; Max-Age=0"
}
