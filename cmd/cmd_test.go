package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alapierre/go-eims-client/eims/model"
	"github.com/alapierre/go-eims-client/eims/sign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EIMS_ENV", "")
	t.Setenv("EIMS_DSN", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestDecodeDocument_Defaults(t *testing.T) {
	now := time.Date(2025, 3, 14, 6, 30, 0, 0, time.UTC)
	doc, err := decodeDocument([]byte(`{"buyer":{"kind":"individual","legalName":"Almaz"},"lines":[{"description":"Teff","quantity":"2","unitPrice":"100","discountPercent":"0","taxRate":"15"}]}`), now)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, model.KindInvoice, doc.Kind)
	assert.Equal(t, model.StatusUnregistered, doc.Status)
	assert.Equal(t, "ETB", doc.Currency)
	assert.Equal(t, now, doc.CreatedAt)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "2", doc.Lines[0].Quantity.String())

	_, err = decodeDocument([]byte(`{`), now)
	assert.Error(t, err)
}

func TestKeygenThenSign(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "private_key.key")
	certPath := filepath.Join(dir, "0054835018.pem")

	_, err := run(t, "keygen", "--tin", "0054835018", "--bits", "2048",
		"--key", keyPath, "--cert", certPath, "--password", "pass")
	require.NoError(t, err)

	s, err := sign.NewSignerFromFiles(keyPath, certPath, []byte("pass"))
	require.NoError(t, err)
	env, err := s.Sign(map[string]string{"irn": "x"})
	require.NoError(t, err)
	assert.NoError(t, sign.Verify(env))
}

func TestQrCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "qr.png")
	_, err := run(t, "qr", "signed-qr-payload", "--out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestCancelRequiresReason(t *testing.T) {
	_, err := run(t, "cancel", "doc-1")
	assert.Error(t, err)
}

func TestVerifySignatureCommand(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "private_key.key")
	certPath := filepath.Join(dir, "0054835018.pem")
	_, err := run(t, "keygen", "--tin", "0054835018", "--key", keyPath, "--cert", certPath)
	require.NoError(t, err)

	s, err := sign.NewSignerFromFiles(keyPath, certPath, nil)
	require.NoError(t, err)
	env, err := s.Sign(map[string]string{"irn": "7f1c2a"})
	require.NoError(t, err)

	envPath := filepath.Join(dir, "envelope.json")
	require.NoError(t, os.WriteFile(envPath, env.Bytes(), 0600))

	out, err := run(t, "verify-signature", envPath)
	require.NoError(t, err)
	assert.Contains(t, out, "signature ok")

	env.Signature = "AAAA"
	require.NoError(t, os.WriteFile(envPath, env.Bytes(), 0600))
	_, err = run(t, "verify-signature", envPath)
	assert.Error(t, err)
}
