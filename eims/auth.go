package eims

import (
	"context"
	"encoding/json"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/go-faster/errors"
)

// Poster sends a JSON body to the registry; *api.RetryingTransport is the
// production implementation.
type Poster interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (*api.HTTPResult, error)
}

type AuthFacade struct {
	transport Poster
	env       Environment
	path      string
}

// NewAuthFacade Login is a plain JSON call, the registry does not expect a
// signed envelope there.
func NewAuthFacade(env Environment, endpoints Endpoints, transport Poster) *AuthFacade {
	return &AuthFacade{transport: transport, env: env, path: endpoints.Login}
}

func (a *AuthFacade) Login(ctx context.Context, creds Credentials) (*Credential, error) {

	if err := creds.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(api.LoginRequest{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		APIKey:       creds.APIKey,
		TIN:          creds.TIN,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode login request")
	}

	res, err := a.transport.Post(ctx, a.env.URL(a.path), nil, body)
	if err != nil {
		return nil, errors.Wrap(err, "login")
	}

	var lr api.LoginResponse
	if err := json.Unmarshal(res.Body, &lr); err != nil {
		return nil, errors.Wrap(err, "decode login response")
	}
	if lr.Data == nil || lr.Data.AccessToken == "" {
		return nil, errors.Errorf("login response carries no access token (status %d): %s", lr.StatusCode, lr.Message)
	}

	return &Credential{
		AccessToken:   lr.Data.AccessToken,
		EncryptionKey: lr.Data.EncryptionKey,
	}, nil
}
