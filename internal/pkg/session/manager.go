// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	xerrors "waitlist-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

type Manager struct {
	client *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

// CreateSession stores a new session in Redis until the token expires
func (m *Manager) CreateSession(ctx context.Context, session *SessionData) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := m.client.Set(ctx, m.sessionKey(session.JTI), data, ttl).Err(); err != nil {
		return xerrors.NewStoreError("create session", err)
	}
	return nil
}

// GetSession retrieves a session by token id
func (m *Manager) GetSession(ctx context.Context, jti string) (*SessionData, error) {
	data, err := m.client.Get(ctx, m.sessionKey(jti)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, xerrors.ErrSessionExpired
	}
	if err != nil {
		return nil, xerrors.NewStoreError("get session", err)
	}

	var session SessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// InvalidateSession removes the session and blacklists its token for the time
// it would still have been valid.
func (m *Manager) InvalidateSession(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := m.client.Del(ctx, m.sessionKey(jti)).Err(); err != nil {
		return xerrors.NewStoreError("delete session", err)
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return m.BlacklistToken(ctx, jti, ttl)
}

// IsTokenBlacklisted checks if a token is blacklisted
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.blacklistKey(jti)).Result()
	if err != nil {
		return false, xerrors.NewStoreError("check blacklist", err)
	}
	return exists > 0, nil
}

// BlacklistToken adds a token to the blacklist
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := m.client.Set(ctx, m.blacklistKey(jti), "1", ttl).Err(); err != nil {
		return xerrors.NewStoreError("blacklist token", err)
	}
	return nil
}

func (m *Manager) sessionKey(jti string) string {
	return fmt.Sprintf("session:%s", jti)
}

func (m *Manager) blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}
