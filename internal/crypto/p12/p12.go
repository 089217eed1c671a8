// Package p12 loads PKCS#12 credentials: the TSA client credential carried in
// a sign task and the operator identity used for the completion signature.
package p12

import (
	"crypto"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Credential is a decoded PKCS#12 identity.
type Credential struct {
	Signer         crypto.Signer
	Cert           *x509.Certificate
	Chain          []*x509.Certificate
	Fingerprint256 [32]byte
}

// Fingerprint returns the SHA-256 fingerprint for a certificate.
func Fingerprint(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}

// Load reads and parses a PKCS#12 file.
func Load(r io.Reader, password string) (*Credential, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	return Parse(data, password)
}

// Parse decodes a PKCS#12/PFX blob. Password-less exports are accepted even
// when a password is supplied.
func Parse(data []byte, password string) (*Credential, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty credential", ErrInvalidFile)
	}
	priv, cert, chain, err := decodeWithAttempts(pkcs12.DecodeChain, buildAttempts(data, password), password)
	if err != nil {
		return nil, err
	}
	signer, ok := priv.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: private key does not support signing", ErrUnsupported)
	}
	return &Credential{
		Signer:         signer,
		Cert:           cert,
		Chain:          chain,
		Fingerprint256: Fingerprint(cert),
	}, nil
}

// TLSCertificate presents the credential as a TLS client certificate.
func (c *Credential) TLSCertificate() tls.Certificate {
	raw := [][]byte{c.Cert.Raw}
	for _, ca := range c.Chain {
		raw = append(raw, ca.Raw)
	}
	return tls.Certificate{
		Certificate: raw,
		PrivateKey:  c.Signer,
		Leaf:        c.Cert,
	}
}

func alternatePasswords(password string) []string {
	if password == "" {
		return nil
	}
	// Empty-password fallback for password-less exports.
	return []string{""}
}

var errUnknownParse = errors.New("unknown parse error")
