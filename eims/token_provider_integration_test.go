package eims

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/util"
	"github.com/sirupsen/logrus"
)

func TestGetToken_Registry(t *testing.T) {

	if _, ok := os.LookupEnv("EIMS_CLIENT_ID"); !ok {
		t.Skip("EIMS_CLIENT_ID not set, skipping integration test")
	}
	if _, ok := os.LookupEnv("EIMS_ENV"); !ok {
		t.Skip("EIMS_ENV not set, skipping integration test")
	}

	logrus.SetLevel(logrus.DebugLevel)

	var env Environment
	if err := env.UnmarshalText([]byte(util.GetEnvOrFailed("EIMS_ENV"))); err != nil {
		t.Fatal(err)
	}

	auth := NewAuthFacade(env, EndpointsFromEnv(), api.NewRetryingTransport(api.DefaultTransportConfig()))
	tokens := NewTokenManager(auth, EnvCredentialStore{}, DefaultTokenLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	token, _, err := tokens.GetToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if token == "" {
		t.Fatal("empty access token")
	}

	again, _, err := tokens.GetToken(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again != token {
		t.Errorf("expected cached token, got a new one")
	}
}
