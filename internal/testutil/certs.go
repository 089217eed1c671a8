package testutil

import (
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/vocdoni/gofirma/biosign/internal/crypto/certs"
)

// NewIdentity creates a self-signed RSA certificate valid for a day.
func NewIdentity(subject pkix.Name, ekus ...x509.ExtKeyUsage) (*rsa.PrivateKey, *x509.Certificate, error) {
	return certs.NewSelfSigned(subject, 24*time.Hour, ekus...)
}

// NewPKCS12 bundles key and cert into a password-protected PFX.
func NewPKCS12(key *rsa.PrivateKey, cert *x509.Certificate, password string) ([]byte, error) {
	return pkcs12.Modern.Encode(key, cert, nil, password)
}
