package p12

import (
	"errors"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

var (
	ErrPasswordRequired = errors.New("credential password required")
	ErrWrongPassword    = errors.New("credential password incorrect")
	ErrInvalidFile      = errors.New("invalid PKCS#12 credential")
	ErrUnsupported      = errors.New("unsupported credential format")
)

// Describe returns an operator-facing message for a credential failure.
func Describe(err error) string {
	switch {
	case errors.Is(err, ErrPasswordRequired):
		return "The credential requires a password."
	case errors.Is(err, ErrWrongPassword):
		return "The credential password is incorrect."
	case errors.Is(err, ErrInvalidFile):
		return "The credential is not a valid .p12/.pfx file or is corrupted."
	case errors.Is(err, ErrUnsupported):
		return "The credential uses an unsupported format or key type."
	default:
		return "Credential loading failed."
	}
}

func isIncorrectPasswordError(err error) bool {
	if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "decryption password incorrect") ||
		strings.Contains(msg, "incorrect padding")
}

func isLikelyInvalidFileError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not der") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "structure error") ||
		strings.Contains(msg, "trailing data") ||
		strings.Contains(msg, "certificate missing") ||
		strings.Contains(msg, "private key missing") ||
		strings.Contains(msg, "error reading p12 data")
}
