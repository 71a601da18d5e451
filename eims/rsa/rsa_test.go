package rsa

import (
	"encoding/base64"
	"encoding/pem"
	"testing"
	"time"

	"github.com/alapierre/go-eims-client/eims/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRSAPubFromCert_Encodings(t *testing.T) {
	ss, err := keys.GenerateSelfSigned(2048, "0054835018", 24*time.Hour)
	require.NoError(t, err)

	block, _ := pem.Decode(ss.CertPEM)
	require.NotNil(t, block)

	for name, raw := range map[string][]byte{
		"pem":    ss.CertPEM,
		"der":    block.Bytes,
		"base64": []byte(base64.StdEncoding.EncodeToString(block.Bytes)),
	} {
		pub, notAfter, err := ParseRSAPubFromCert(raw)
		require.NoError(t, err, name)
		assert.True(t, ss.Key.PublicKey.Equal(pub), name)
		assert.True(t, notAfter.After(time.Now()), name)
	}

	_, _, err = ParseRSAPubFromCert([]byte("not a certificate"))
	assert.Error(t, err)
}

func TestSignVerifySHA512(t *testing.T) {
	ss, err := keys.GenerateSelfSigned(2048, "0054835018", time.Hour)
	require.NoError(t, err)

	sig, err := SignSHA512(ss.Key, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.NoError(t, VerifySHA512(&ss.Key.PublicKey, []byte(`{"a":1}`), sig))
	assert.Error(t, VerifySHA512(&ss.Key.PublicKey, []byte(`{"a":2}`), sig))
}
