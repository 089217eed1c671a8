package p12

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
	"strings"
)

type decodeAttempt struct {
	data []byte
	pass string
}

type decodeChainFunc func(pfxData []byte, password string) (privateKey interface{}, certificate *x509.Certificate, caCerts []*x509.Certificate, err error)

// buildAttempts lists the raw bytes with every candidate password, then the
// DER rewrite of a BER file, then that rewrite with a recomputed MAC.
func buildAttempts(data []byte, password string) []decodeAttempt {
	passwords := append([]string{password}, alternatePasswords(password)...)

	var attempts []decodeAttempt
	seen := make(map[[32]byte]map[string]bool)
	add := func(payload []byte, pass string) {
		sum := sha256.Sum256(payload)
		if seen[sum] == nil {
			seen[sum] = make(map[string]bool)
		}
		if seen[sum][pass] {
			return
		}
		seen[sum][pass] = true
		attempts = append(attempts, decodeAttempt{data: payload, pass: pass})
	}

	for _, pass := range passwords {
		add(data, pass)
	}
	der, err := berToDER(data)
	if err != nil || bytes.Equal(der, data) {
		return attempts
	}
	for _, pass := range passwords {
		add(der, pass)
	}
	for _, pass := range passwords {
		if resealed, err := resealMAC(der, pass); err == nil {
			add(resealed, pass)
		}
	}
	return attempts
}

func decodeWithAttempts(decode decodeChainFunc, attempts []decodeAttempt, userPassword string) (signer interface{}, cert *x509.Certificate, chain []*x509.Certificate, err error) {
	var lastErr error
	var hasIncorrectPassword bool
	var firstNonPasswordErr error
	for _, attempt := range attempts {
		signer, cert, chain, err = decode(attempt.data, attempt.pass)
		if err == nil {
			return signer, cert, chain, nil
		}
		if isIncorrectPasswordError(err) {
			hasIncorrectPassword = true
		} else if firstNonPasswordErr == nil {
			firstNonPasswordErr = err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errUnknownParse
	}

	if hasIncorrectPassword && firstNonPasswordErr == nil {
		if strings.TrimSpace(userPassword) == "" {
			return nil, nil, nil, ErrPasswordRequired
		}
		return nil, nil, nil, ErrWrongPassword
	}
	if firstNonPasswordErr != nil {
		if isLikelyInvalidFileError(firstNonPasswordErr) {
			return nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidFile, firstNonPasswordErr)
		}
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrUnsupported, firstNonPasswordErr)
	}
	return nil, nil, nil, fmt.Errorf("%w: %v", ErrUnsupported, lastErr)
}
