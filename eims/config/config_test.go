package config

import (
	"testing"
	"time"

	"github.com/alapierre/go-eims-client/eims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EIMS_ENV", "EIMS_TIN", "EIMS_CLIENT_ID", "EIMS_CLIENT_SECRET", "EIMS_API_KEY",
		"EIMS_KEY_PATH", "EIMS_CERT_PATH", "EIMS_KEY_PASSWORD", "EIMS_DSN", "EIMS_LISTEN",
		"EIMS_CALLBACK_URL", "EIMS_TOKEN_LIFETIME", "EIMS_MAX_ATTEMPTS", "EIMS_MAPPING_TTL",
		"EIMS_SWEEP_INTERVAL", "EIMS_SYSTEM_NUMBER", "EIMS_SYSTEM_TYPE", "EIMS_DEBUG",
		"EIMS_PATH_REGISTER",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("EIMS_TIN", "0054835018")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, eims.Prod, c.Environment)
	assert.Equal(t, eims.DefaultEndpoints(), c.Endpoints)
	assert.Equal(t, "0054835018", c.Credentials.TIN)
	assert.Equal(t, "private_key.key", c.KeyPath)
	assert.Equal(t, "0054835018.pem", c.CertPath)
	assert.Nil(t, c.KeyPassword)
	assert.Equal(t, 55*time.Minute, c.TokenLifetime)
	assert.Equal(t, 72*time.Hour, c.MappingTTL)
	assert.Equal(t, time.Duration(0), c.SweepInterval)
	assert.Equal(t, 3, c.Transport.MaxAttempts)
	assert.Equal(t, "POS", c.Source.SystemType)
	assert.Equal(t, "http://localhost:8069/eims/bulk-callback", c.PublicCallbackURL())
	assert.False(t, c.Debug)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("EIMS_ENV", "http://test.eims.local/")
	t.Setenv("EIMS_KEY_PASSWORD", "secret")
	t.Setenv("EIMS_TOKEN_LIFETIME", "10m")
	t.Setenv("EIMS_MAX_ATTEMPTS", "5")
	t.Setenv("EIMS_SWEEP_INTERVAL", "1h")
	t.Setenv("EIMS_CALLBACK_URL", "https://erp.example.et/eims/bulk-callback")
	t.Setenv("EIMS_PATH_REGISTER", "/v2/register")
	t.Setenv("EIMS_DEBUG", "true")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://test.eims.local", c.Environment.BaseURL())
	assert.Equal(t, []byte("secret"), c.KeyPassword)
	assert.Equal(t, 10*time.Minute, c.TokenLifetime)
	assert.Equal(t, 5, c.Transport.MaxAttempts)
	assert.Equal(t, time.Hour, c.SweepInterval)
	assert.Equal(t, "/v2/register", c.Endpoints.Register)
	assert.Equal(t, "https://erp.example.et/eims/bulk-callback", c.PublicCallbackURL())
	assert.True(t, c.Debug)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	t.Setenv("EIMS_ENV", "ftp://nope")
	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("EIMS_MAX_ATTEMPTS", "0")
	_, err = Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("EIMS_MAPPING_TTL", "-1h")
	_, err = Load()
	assert.Error(t, err)
}
