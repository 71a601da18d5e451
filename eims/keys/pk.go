package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/go-faster/errors"
	"github.com/youmark/pkcs8"
)

// LoadRSAPrivateKeyFromFile reads the signing key of the source system.
func LoadRSAPrivateKeyFromFile(path string, password []byte) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	return LoadRSAPrivateKeyFromPEM(b, password)
}

// LoadRSAPrivateKeyFromPEM takes the first private key block found. PKCS#8
// (plain or encrypted) and PKCS#1 blocks are accepted.
func LoadRSAPrivateKeyFromPEM(pemBytes []byte, password []byte) (*rsa.PrivateKey, error) {

	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}

		switch block.Type {
		case "ENCRYPTED PRIVATE KEY":
			if len(password) == 0 {
				return nil, errors.New("password is required for ENCRYPTED PRIVATE KEY")
			}
			k, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes, password)
			if err != nil {
				return nil, errors.Wrap(err, "decrypt PKCS#8 private key")
			}
			return k, nil
		case "PRIVATE KEY":
			k, err := pkcs8.ParsePKCS8PrivateKeyRSA(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse PKCS#8 private key")
			}
			return k, nil
		case "RSA PRIVATE KEY":
			k, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, "parse PKCS#1 private key")
			}
			return k, nil
		}
	}

	return nil, errors.New("no private key block found in PEM")
}

// EncodePrivateKeyPEM writes key as PKCS#8, encrypted when password is set.
func EncodePrivateKeyPEM(key *rsa.PrivateKey, password []byte) ([]byte, error) {
	der, err := pkcs8.MarshalPrivateKey(key, password, nil)
	if err != nil {
		return nil, errors.Wrap(err, "marshal PKCS#8 private key")
	}
	typ := "PRIVATE KEY"
	if len(password) > 0 {
		typ = "ENCRYPTED PRIVATE KEY"
	}
	return pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der}), nil
}
