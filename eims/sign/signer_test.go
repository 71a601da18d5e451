package sign

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/keys"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) (*Signer, *keys.SelfSigned) {
	t.Helper()
	ss, err := keys.GenerateSelfSigned(2048, "0054835018", time.Hour)
	require.NoError(t, err)
	s, err := NewSigner(ss.Key, ss.CertPEM)
	require.NoError(t, err)
	return s, ss
}

func TestSign_DeterministicAndVerifiable(t *testing.T) {
	s, ss := newTestSigner(t)

	payload := api.VerifyRequest{Irn: "7f1c2a"}
	first, err := s.Sign(payload)
	require.NoError(t, err)
	second, err := s.Sign(payload)
	require.NoError(t, err)

	assert.Equal(t, first.Request, second.Request)
	assert.Equal(t, `{"irn":"7f1c2a"}`, string(first.Request))
	assert.Equal(t, base64.StdEncoding.EncodeToString(ss.CertPEM), first.Certificate)
	assert.NoError(t, Verify(first))
	assert.NoError(t, Verify(second))
}

func TestSign_TamperedRequestFails(t *testing.T) {
	s, _ := newTestSigner(t)

	env, err := s.Sign(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(env.Request))

	env.Request = json.RawMessage(`{"a":1,"b":3}`)
	assert.Error(t, Verify(env))
}

func TestEnvelope_MarshalJSON(t *testing.T) {
	env := &SignedEnvelope{
		Request:     json.RawMessage(`{"irn":"x"}`),
		Signature:   "c2ln",
		Certificate: "Y2VydA==",
	}
	b := env.Bytes()
	assert.Equal(t, `{"request":{"irn":"x"},"signature":"c2ln","certificate":"Y2VydA=="}`, string(b))

	var back SignedEnvelope
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, env.Signature, back.Signature)
	assert.JSONEq(t, string(env.Request), string(back.Request))
}

func TestNewSigner_Errors(t *testing.T) {
	ss, err := keys.GenerateSelfSigned(2048, "0054835018", time.Hour)
	require.NoError(t, err)
	other, err := keys.GenerateSelfSigned(2048, "0054835018", time.Hour)
	require.NoError(t, err)

	_, err = NewSigner(nil, ss.CertPEM)
	assert.True(t, errors.Is(err, api.ErrSigning))

	_, err = NewSigner(ss.Key, nil)
	assert.True(t, errors.Is(err, api.ErrSigning))

	_, err = NewSigner(ss.Key, []byte("garbage"))
	assert.True(t, errors.Is(err, api.ErrSigning))

	_, err = NewSigner(ss.Key, other.CertPEM)
	assert.True(t, errors.Is(err, api.ErrSigning))
}

func TestNewSignerFromFiles(t *testing.T) {
	ss, err := keys.GenerateSelfSigned(2048, "0054835018", time.Hour)
	require.NoError(t, err)
	keyPEM, err := keys.EncodePrivateKeyPEM(ss.Key, []byte("pass"))
	require.NoError(t, err)

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "private_key.key")
	certPath := filepath.Join(dir, "0054835018.pem")
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0600))
	require.NoError(t, os.WriteFile(certPath, ss.CertPEM, 0600))

	s, err := NewSignerFromFiles(keyPath, certPath, []byte("pass"))
	require.NoError(t, err)
	assert.True(t, s.CertificateNotAfter().After(time.Now()))

	_, err = NewSignerFromFiles(keyPath, filepath.Join(dir, "missing.pem"), []byte("pass"))
	assert.True(t, errors.Is(err, api.ErrSigning))

	_, err = NewSignerFromFiles(filepath.Join(dir, "missing.key"), certPath, nil)
	assert.True(t, errors.Is(err, api.ErrSigning))
}
