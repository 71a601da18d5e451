package eims

import (
	"context"
	"sync"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/go-faster/errors"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenLifetime the registry does not report expiry, tokens are
// treated as valid for 55 minutes after issue.
const DefaultTokenLifetime = 55 * time.Minute

// Credential is an issued access token. Never mutated once cached.
type Credential struct {
	AccessToken   string
	EncryptionKey string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

func (c *Credential) ValidAt(t time.Time) bool {
	return c != nil && c.AccessToken != "" && t.Before(c.ExpiresAt)
}

type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*Credential, error)
}

// TokenManager caches one access token for the process and logs in again on
// expiry. Concurrent callers that find the cache stale share one login.
type TokenManager struct {
	auth     Authenticator
	creds    CredentialStore
	lifetime time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	current *Credential
	flight  singleflight.Group
}

func NewTokenManager(auth Authenticator, creds CredentialStore, lifetime time.Duration) *TokenManager {
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}
	return &TokenManager{
		auth:     auth,
		creds:    creds,
		lifetime: lifetime,
		now:      time.Now,
	}
}

// GetToken returns a valid access token and the encryption key issued with it.
func (m *TokenManager) GetToken(ctx context.Context) (string, string, error) {

	// fast path
	if c, ok := m.currentIfValid(); ok {
		return c.AccessToken, c.EncryptionKey, nil
	}

	v, err, shared := m.flight.Do("login", func() (any, error) {
		// double check, a previous flight may have just landed
		if c, ok := m.currentIfValid(); ok {
			return c, nil
		}
		return m.login(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", "", err
	}
	if shared {
		logger.Debug("TokenManager: joined in-flight login")
	}

	c := v.(*Credential)
	return c.AccessToken, c.EncryptionKey, nil
}

func (m *TokenManager) login(ctx context.Context) (*Credential, error) {

	creds, err := m.creds.Credentials(ctx)
	if err != nil {
		if errors.Is(err, api.ErrAuth) {
			return nil, err
		}
		return nil, &api.AuthError{Cause: err}
	}

	issued := m.now()
	logger.Debug("TokenManager: performing login")

	c, err := m.auth.Login(ctx, creds)
	if err != nil {
		logger.Warnf("TokenManager: login failed: %v", err)
		if errors.Is(err, api.ErrAuth) {
			return nil, err
		}
		return nil, &api.AuthError{Cause: err}
	}

	fresh := &Credential{
		AccessToken:   c.AccessToken,
		EncryptionKey: c.EncryptionKey,
		IssuedAt:      issued,
		ExpiresAt:     issued.Add(m.lifetime),
	}

	m.mu.Lock()
	m.current = fresh
	m.mu.Unlock()

	logger.Debugf("TokenManager: token cached until %s", fresh.ExpiresAt.Format(time.RFC3339))
	return fresh, nil
}

func (m *TokenManager) currentIfValid() (*Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.ValidAt(m.now()) {
		return m.current, true
	}
	return nil, false
}

// Invalidate drops the cached credential if it still holds token, so a 401
// answered for an old token does not throw away a newer one.
func (m *TokenManager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.AccessToken == token {
		m.current = nil
	}
}

// Current returns a copy of the cached credential, nil when none.
func (m *TokenManager) Current() *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	c := *m.current
	return &c
}
