package rsa

import (
	"crypto"
	rsa2 "crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ParseCertificate accepts a PEM file, raw DER or base64 encoded DER.
func ParseCertificate(raw []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(raw); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
		}
		raw = block.Bytes
	} else if der, err := base64.StdEncoding.DecodeString(string(raw)); err == nil {
		raw = der
	}
	xc, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, errors.Wrap(err, "parse x509")
	}
	return xc, nil
}

func ParseRSAPubFromCert(raw []byte) (*rsa2.PublicKey, time.Time, error) {
	xc, err := ParseCertificate(raw)
	if err != nil {
		return nil, time.Time{}, err
	}
	rsaPub, ok := xc.PublicKey.(*rsa2.PublicKey)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("certificate does not hold an RSA key (type: %T)", xc.PublicKey)
	}
	return rsaPub, xc.NotAfter, nil
}

// SignSHA512 signs data with RSASSA-PKCS1-v1_5 over SHA-512.
func SignSHA512(key *rsa2.PrivateKey, data []byte) ([]byte, error) {
	sum := sha512.Sum512(data)
	sig, err := rsa2.SignPKCS1v15(nil, key, crypto.SHA512, sum[:])
	if err != nil {
		return nil, errors.Wrap(err, "sign")
	}
	return sig, nil
}

func VerifySHA512(pub *rsa2.PublicKey, data, sig []byte) error {
	sum := sha512.Sum512(data)
	return rsa2.VerifyPKCS1v15(pub, crypto.SHA512, sum[:], sig)
}
