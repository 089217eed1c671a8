// Package certs handles the X.509 certificates that travel inside a sign task.
package certs

import (
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vocdoni/gofirma/biosign/internal/model"
)

var ErrInvalidCertificate = errors.New("invalid certificate")

var (
	oidGivenName    = asn1.ObjectIdentifier{2, 5, 4, 42}
	oidSurname      = asn1.ObjectIdentifier{2, 5, 4, 4}
	oidSerialNumber = asn1.ObjectIdentifier{2, 5, 4, 5}
)

var (
	// Spanish personal identifiers.
	reDNI = regexp.MustCompile(`\b\d{8}[A-Z]\b`)
	reNIE = regexp.MustCompile(`\b[XYZ]\d{7}[A-Z]\b`)
	reID  = regexp.MustCompile(`(?i)\b(?:DNI|NIE)\s*[:\-]?\s*([A-Z0-9]{8,9})\b`)
)

// ParseBase64 decodes the Base64 DER certificate carried in a task. PEM
// armour is tolerated.
func ParseBase64(s string) (*x509.Certificate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCertificate)
	}
	if block, _ := pem.Decode([]byte(s)); block != nil {
		return parseDER(block.Bytes)
	}
	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	return parseDER(der)
}

func parseDER(der []byte) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}
	return cert, nil
}

// EncodeBase64 is the inverse of ParseBase64.
func EncodeBase64(cert *x509.Certificate) string {
	return base64.StdEncoding.EncodeToString(cert.Raw)
}

// SignerInfo derives a signer identity from a Spanish citizen certificate,
// reading GN/SN/serialNumber and falling back to the common name.
func SignerInfo(cert *x509.Certificate) model.SignerInfo {
	var info model.SignerInfo
	var surnames []string
	for _, name := range cert.Subject.Names {
		val, ok := name.Value.(string)
		if !ok {
			continue
		}
		val = normalizeSpace(val)
		switch {
		case name.Type.Equal(oidGivenName):
			info.Name = val
		case name.Type.Equal(oidSurname):
			surnames = strings.Fields(val)
		case name.Type.Equal(oidSerialNumber):
			info.ID = extractID(val)
		}
	}

	cn := normalizeSpace(cert.Subject.CommonName)
	if info.ID == "" {
		info.ID = extractID(cn)
	}
	if info.Name == "" || len(surnames) == 0 {
		namePart := cn
		if idx := strings.Index(namePart, " - "); idx >= 0 {
			namePart = namePart[:idx]
		}
		if idx := strings.Index(strings.ToUpper(namePart), " DNI "); idx >= 0 {
			namePart = namePart[:idx]
		}
		parts := strings.Fields(namePart)
		if info.Name == "" && len(parts) > 0 {
			info.Name = parts[0]
		}
		if len(surnames) == 0 && len(parts) >= 2 {
			surnames = parts[1:]
		}
	}

	if len(surnames) > 0 {
		info.Surname1 = surnames[0]
	}
	if len(surnames) > 1 {
		info.Surname2 = strings.Join(surnames[1:], " ")
	}
	return info
}

func extractID(s string) string {
	v := strings.ToUpper(normalizeSpace(s))
	v = strings.TrimPrefix(v, "IDCES-")
	v = strings.TrimPrefix(v, "IDESP-")
	if m := reID.FindStringSubmatch(v); len(m) > 1 {
		v = m[1]
	}
	switch {
	case reDNI.MatchString(v):
		return reDNI.FindString(v)
	case reNIE.MatchString(v):
		return reNIE.FindString(v)
	default:
		return ""
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
