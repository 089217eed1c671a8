// Package envelope protects biometric signature payloads for the recipient
// certificate carried in a sign task.
package envelope

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"log"

	"github.com/smallstep/pkcs7"

	"github.com/vocdoni/gofirma/biosign/internal/crypto/certs"
)

var ErrUnsupportedRecipient = errors.New("recipient certificate must carry an RSA key")

func init() {
	pkcs7.ContentEncryptionAlgorithm = pkcs7.EncryptionAlgorithmAES256CBC
}

// Sealer encrypts payloads for a single recipient.
type Sealer struct {
	recipient *x509.Certificate
}

// NewSealer parses the task's Base64 certificate.
func NewSealer(certBase64 string) (*Sealer, error) {
	cert, err := certs.ParseBase64(certBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipient certificate: %w", err)
	}
	return NewSealerForCert(cert)
}

func NewSealerForCert(cert *x509.Certificate) (*Sealer, error) {
	if _, ok := cert.PublicKey.(*rsa.PublicKey); !ok {
		return nil, ErrUnsupportedRecipient
	}
	return &Sealer{recipient: cert}, nil
}

// Seal wraps payload in a PKCS#7 EnvelopedData (AES-256-CBC, RSA key transport).
func (s *Sealer) Seal(payload []byte) ([]byte, error) {
	out, err := pkcs7.Encrypt(payload, []*x509.Certificate{s.recipient})
	if err != nil {
		return nil, fmt.Errorf("failed to envelope payload: %w", err)
	}
	log.Printf("DEBUG: Enveloped %d byte payload for %s", len(payload), s.recipient.Subject.CommonName)
	return out, nil
}

// Open decrypts an envelope produced by Seal. Used by the receiving side and in tests.
func Open(envelope []byte, cert *x509.Certificate, key *rsa.PrivateKey) ([]byte, error) {
	p7, err := pkcs7.Parse(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	out, err := p7.Decrypt(cert, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt envelope: %w", err)
	}
	return out, nil
}
