package eims

import (
	"context"
	"os"
	"strings"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/go-faster/errors"
)

// Credentials identify the taxpayer system at login.
type Credentials struct {
	ClientID     string
	ClientSecret string
	APIKey       string
	TIN          string
}

func (c Credentials) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client secret")
	}
	if c.APIKey == "" {
		missing = append(missing, "api key")
	}
	if c.TIN == "" {
		missing = append(missing, "tin")
	}
	if len(missing) > 0 {
		return &api.AuthError{Cause: errors.Errorf("missing credentials: %s", strings.Join(missing, ", "))}
	}
	return nil
}

type CredentialStore interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentialStore returns fixed values, usually taken from config.
type StaticCredentialStore struct {
	Value Credentials
}

func (s StaticCredentialStore) Credentials(context.Context) (Credentials, error) {
	if err := s.Value.Validate(); err != nil {
		return Credentials{}, err
	}
	return s.Value, nil
}

// EnvCredentialStore reads EIMS_CLIENT_ID, EIMS_CLIENT_SECRET, EIMS_API_KEY
// and EIMS_TIN on every call so rotated secrets are picked up at next login.
type EnvCredentialStore struct{}

func (EnvCredentialStore) Credentials(context.Context) (Credentials, error) {
	c := Credentials{
		ClientID:     os.Getenv("EIMS_CLIENT_ID"),
		ClientSecret: os.Getenv("EIMS_CLIENT_SECRET"),
		APIKey:       os.Getenv("EIMS_API_KEY"),
		TIN:          os.Getenv("EIMS_TIN"),
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}
