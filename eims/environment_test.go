package eims

import (
	"context"
	"testing"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_UnmarshalText(t *testing.T) {
	var e Environment
	require.NoError(t, e.UnmarshalText([]byte("prod")))
	assert.Equal(t, Prod, e)

	require.NoError(t, e.UnmarshalText([]byte("https://sandbox.example.et/")))
	assert.Equal(t, "https://sandbox.example.et", e.BaseURL())
	assert.Equal(t, "https://sandbox.example.et/v1/verify", e.URL("/v1/verify"))

	assert.Error(t, e.UnmarshalText([]byte("staging")))
}

func TestEndpointsFromEnv(t *testing.T) {
	t.Setenv("EIMS_PATH_WITHHOLDING", "/v2/withholding")
	e := EndpointsFromEnv()
	assert.Equal(t, "/v2/withholding", e.Withholding)
	assert.Equal(t, DefaultEndpoints().Register, e.Register)
}

func TestEnvCredentialStore(t *testing.T) {
	t.Setenv("EIMS_CLIENT_ID", "id")
	t.Setenv("EIMS_CLIENT_SECRET", "secret")
	t.Setenv("EIMS_API_KEY", "")
	t.Setenv("EIMS_TIN", "0054835018")

	_, err := EnvCredentialStore{}.Credentials(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrAuth))
	assert.Contains(t, err.Error(), "api key")

	t.Setenv("EIMS_API_KEY", "key")
	c, err := EnvCredentialStore{}.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0054835018", c.TIN)
}
