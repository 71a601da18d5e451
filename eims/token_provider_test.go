package eims

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAuth struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (a *countingAuth) Login(ctx context.Context, _ Credentials) (*Credential, error) {
	n := a.calls.Add(1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.err != nil {
		return nil, a.err
	}
	return &Credential{AccessToken: "token-" + string(rune('0'+n)), EncryptionKey: "key"}, nil
}

var testCreds = StaticCredentialStore{Value: Credentials{
	ClientID: "id", ClientSecret: "secret", APIKey: "api", TIN: "0054835018",
}}

func TestGetToken_ConcurrentCallersShareOneLogin(t *testing.T) {
	auth := &countingAuth{delay: 50 * time.Millisecond}
	m := NewTokenManager(auth, testCreds, 0)

	const n = 20
	var wg sync.WaitGroup
	tokens := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, key, err := m.GetToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "key", key)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), auth.calls.Load())
	for _, tok := range tokens {
		assert.Equal(t, "token-1", tok)
	}
}

func TestGetToken_ExpiryTriggersLogin(t *testing.T) {
	auth := &countingAuth{}
	m := NewTokenManager(auth, testCreds, time.Hour)

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	tok, _, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	now = now.Add(59 * time.Minute)
	tok, _, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok)

	now = now.Add(time.Minute)
	tok, _, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
	assert.Equal(t, now.Add(time.Hour), m.Current().ExpiresAt)
}

func TestGetToken_DefaultLifetime(t *testing.T) {
	m := NewTokenManager(&countingAuth{}, testCreds, 0)
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, _, err := m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.Add(55*time.Minute), m.Current().ExpiresAt)
}

func TestGetToken_FailureKeepsCache(t *testing.T) {
	auth := &countingAuth{}
	m := NewTokenManager(auth, testCreds, time.Hour)
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, _, err := m.GetToken(context.Background())
	require.NoError(t, err)
	before := m.Current()

	now = now.Add(2 * time.Hour)
	auth.err = errors.New("connection refused")

	_, _, err = m.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrAuth))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, before, m.Current())
}

func TestGetToken_MissingCredentials(t *testing.T) {
	auth := &countingAuth{}
	m := NewTokenManager(auth, StaticCredentialStore{Value: Credentials{ClientID: "id"}}, 0)

	_, _, err := m.GetToken(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrAuth))
	assert.Contains(t, err.Error(), "client secret")
	assert.Equal(t, int32(0), auth.calls.Load())
}

func TestInvalidate_OnlyMatchingToken(t *testing.T) {
	auth := &countingAuth{}
	m := NewTokenManager(auth, testCreds, time.Hour)

	tok, _, err := m.GetToken(context.Background())
	require.NoError(t, err)

	m.Invalidate("stale")
	assert.NotNil(t, m.Current())

	m.Invalidate(tok)
	assert.Nil(t, m.Current())

	tok, _, err = m.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", tok)
}
