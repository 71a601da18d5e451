package eims

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/keys"
	"github.com/alapierre/go-eims-client/eims/sign"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	*httptest.Server
	logins atomic.Int32
	calls  atomic.Int32
	// handler for every path but login
	handle func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope)
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.URL.Path == "/auth/login" {
			n := f.logins.Add(1)
			var req api.LoginRequest
			assert.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "0054835018", req.TIN)
			_, _ = w.Write([]byte(`{"statusCode":200,"message":"ok","data":{"accessToken":"tok-` + string(rune('0'+n)) + `","encryptionKey":"k"}}`))
			return
		}
		f.calls.Add(1)
		var env sign.SignedEnvelope
		assert.NoError(t, json.Unmarshal(body, &env))
		assert.NoError(t, sign.Verify(&env))
		f.handle(w, r, &env)
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestClient(t *testing.T, f *fakeRegistry) *Client {
	t.Helper()
	ss, err := keys.GenerateSelfSigned(2048, "0054835018", time.Hour)
	require.NoError(t, err)
	signer, err := sign.NewSigner(ss.Key, ss.CertPEM)
	require.NoError(t, err)

	transport := api.NewRetryingTransport(api.TransportConfig{
		MaxAttempts:  3,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	})
	env := Environment(f.URL)
	tokens := NewTokenManager(NewAuthFacade(env, DefaultEndpoints(), transport), testCreds, 0)
	return NewClient(env, DefaultEndpoints(), transport, tokens, signer)
}

func TestClient_Register(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {
		assert.Equal(t, "/v1/register", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"statusCode":200,"message":"SUCCESS","body":{"irn":"irn-1","ackDate":"2025-03-14T09:26:53Z","signedQR":"qr","documentNumber":"7"}}`))
	}
	c := newTestClient(t, f)

	reply, err := c.Register(context.Background(), &api.RegisterRequest{TransactionType: "B2B"})
	require.NoError(t, err)
	assert.Equal(t, "irn-1", reply.Body.Irn)
	assert.Equal(t, "qr", reply.Body.SignedQR)
	assert.Equal(t, http.StatusOK, reply.HTTPStatus)
	assert.Contains(t, string(reply.Raw), "irn-1")
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestClient_RegisterRejectedInBody(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {
		_, _ = w.Write([]byte(`{"statusCode":409,"message":"duplicate document number"}`))
	}
	c := newTestClient(t, f)

	_, err := c.Register(context.Background(), &api.RegisterRequest{})
	require.Error(t, err)
	var rej *api.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, 409, rej.StatusCode)
	assert.Equal(t, "duplicate document number", rej.Message)
	assert.True(t, errors.Is(err, api.ErrRegistryRejection))
}

func TestClient_RejectedWithHTTP400(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":400,"message":"invalid seller tin"}`))
	}
	c := newTestClient(t, f)

	_, err := c.Cancel(context.Background(), &api.CancelRequest{Irn: "irn-1", ReasonCode: "1"})
	var rej *api.RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, http.StatusBadRequest, rej.HTTPStatus)
	assert.Equal(t, "invalid seller tin", rej.Message)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestClient_UnauthorizedRetriesWithFreshToken(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"statusCode":200,"body":{"irn":"irn-1","status":"ACTIVE"}}`))
	}
	c := newTestClient(t, f)

	reply, err := c.Verify(context.Background(), "irn-1")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", reply.Body.Status)
	assert.Equal(t, int32(2), f.logins.Load())
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestClient_UnauthorizedTwiceIsAuthError(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	c := newTestClient(t, f)

	_, err := c.Verify(context.Background(), "irn-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrAuth))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestClient_TransientExhausted(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	c := newTestClient(t, f)

	_, err := c.Register(context.Background(), &api.RegisterRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, api.ErrTransientTransport))
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestClient_WithholdingAcceptedByMessage(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {
		assert.Equal(t, "/v1/receipt/withholding", r.URL.Path)
		_, _ = w.Write([]byte(`{"statusCode":0,"message":"Accepted","body":{"rrn":"RRN-9"}}`))
	}
	c := newTestClient(t, f)

	reply, err := c.Withholding(context.Background(), &api.WithholdingRequest{ReceiptType: api.ReceiptTypeWithholding})
	require.NoError(t, err)
	assert.Equal(t, "RRN-9", reply.Body.Reference())
}

type failingSigner struct{}

func (failingSigner) Sign(any) (*sign.SignedEnvelope, error) {
	return nil, errors.Wrap(api.ErrSigning, "no key")
}

func TestClient_SigningFailureMakesNoCall(t *testing.T) {
	f := newFakeRegistry(t)
	f.handle = func(w http.ResponseWriter, r *http.Request, env *sign.SignedEnvelope) {}
	c := newTestClient(t, f)
	c.signer = failingSigner{}

	_, err := c.Register(context.Background(), &api.RegisterRequest{})
	assert.True(t, errors.Is(err, api.ErrSigning))
	assert.Equal(t, int32(0), f.calls.Load())
	assert.Equal(t, int32(0), f.logins.Load())
}

func TestAuthFacade_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"statusCode":401,"message":"invalid client secret"}`))
	}))
	defer srv.Close()

	a := NewAuthFacade(Environment(srv.URL), DefaultEndpoints(), api.NewRetryingTransport(api.DefaultTransportConfig()))
	_, err := a.Login(context.Background(), testCreds.Value)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid client secret")
}
