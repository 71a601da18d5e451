package sign

import (
	rsa2 "crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"os"
	"time"

	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/canonical"
	"github.com/alapierre/go-eims-client/eims/keys"
	"github.com/alapierre/go-eims-client/eims/rsa"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims.sign")

// SignedEnvelope is the outer object of every signed registry call.
type SignedEnvelope struct {
	Request     json.RawMessage
	Signature   string
	Certificate string
}

// Bytes is the wire form with the canonical request embedded verbatim.
// Send these bytes as they are: encoding/json would HTML-escape the request.
func (e *SignedEnvelope) Bytes() []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("request")
	enc.Raw(e.Request)
	enc.FieldStart("signature")
	enc.Str(e.Signature)
	enc.FieldStart("certificate")
	enc.Str(e.Certificate)
	enc.ObjEnd()
	return enc.Bytes()
}

func (e *SignedEnvelope) MarshalJSON() ([]byte, error) {
	return e.Bytes(), nil
}

func (e *SignedEnvelope) UnmarshalJSON(b []byte) error {
	var v struct {
		Request     json.RawMessage `json:"request"`
		Signature   string          `json:"signature"`
		Certificate string          `json:"certificate"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	e.Request, e.Signature, e.Certificate = v.Request, v.Signature, v.Certificate
	return nil
}

// Signer holds the source system key and its certificate. Both are loaded
// once, so a broken key fails at start-up rather than on the first call.
type Signer struct {
	key      *rsa2.PrivateKey
	pub      *rsa2.PublicKey
	certB64  string
	notAfter time.Time
}

// NewSigner pairs key with the certificate file content certRaw (PEM as
// issued by the registry). The certificate must carry the key's public half.
func NewSigner(key *rsa2.PrivateKey, certRaw []byte) (*Signer, error) {
	if key == nil {
		return nil, errors.Wrap(api.ErrSigning, "private key is missing")
	}
	if len(certRaw) == 0 {
		return nil, errors.Wrap(api.ErrSigning, "certificate is missing")
	}
	pub, notAfter, err := rsa.ParseRSAPubFromCert(certRaw)
	if err != nil {
		return nil, errors.Wrapf(api.ErrSigning, "certificate: %v", err)
	}
	if !key.PublicKey.Equal(pub) {
		return nil, errors.Wrap(api.ErrSigning, "certificate does not match private key")
	}
	if time.Now().After(notAfter) {
		logger.Warnf("signing certificate expired at %s", notAfter.Format(time.RFC3339))
	}
	return &Signer{
		key:      key,
		pub:      pub,
		certB64:  base64.StdEncoding.EncodeToString(certRaw),
		notAfter: notAfter,
	}, nil
}

// NewSignerFromFiles loads the key (optionally password protected) and the
// certificate from disk.
func NewSignerFromFiles(keyPath, certPath string, password []byte) (*Signer, error) {
	key, err := keys.LoadRSAPrivateKeyFromFile(keyPath, password)
	if err != nil {
		return nil, errors.Wrapf(api.ErrSigning, "load key %s: %v", keyPath, err)
	}
	certRaw, err := os.ReadFile(certPath)
	if err != nil {
		return nil, errors.Wrapf(api.ErrSigning, "read certificate %s: %v", certPath, err)
	}
	return NewSigner(key, certRaw)
}

func (s *Signer) CertificateNotAfter() time.Time {
	return s.notAfter
}

// Sign canonicalizes payload and signs the canonical bytes.
func (s *Signer) Sign(payload any) (*SignedEnvelope, error) {
	body, err := canonical.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(api.ErrSigning, "canonicalize payload: %v", err)
	}
	sig, err := rsa.SignSHA512(s.key, body)
	if err != nil {
		return nil, errors.Wrapf(api.ErrSigning, "%v", err)
	}
	return &SignedEnvelope{
		Request:     body,
		Signature:   base64.StdEncoding.EncodeToString(sig),
		Certificate: s.certB64,
	}, nil
}

// Verify checks the envelope signature against the request bytes it carries,
// using the certificate attached to the envelope.
func Verify(env *SignedEnvelope) error {
	certRaw, err := base64.StdEncoding.DecodeString(env.Certificate)
	if err != nil {
		return errors.Wrap(err, "decode certificate")
	}
	pub, _, err := rsa.ParseRSAPubFromCert(certRaw)
	if err != nil {
		return err
	}
	sig, err := base64.StdEncoding.DecodeString(env.Signature)
	if err != nil {
		return errors.Wrap(err, "decode signature")
	}
	return rsa.VerifySHA512(pub, env.Request, sig)
}
