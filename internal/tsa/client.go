// Package tsa requests RFC 3161 timestamps as described by a task's
// timestamp parameters.
package tsa

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/digitorus/timestamp"

	"github.com/vocdoni/gofirma/biosign/internal/crypto/cades"
	"github.com/vocdoni/gofirma/biosign/internal/crypto/p12"
	"github.com/vocdoni/gofirma/biosign/internal/model"
)

const (
	contentTypeQuery = "application/timestamp-query"
	maxResponseSize  = 1 << 20
)

var (
	ErrHashMismatch  = errors.New("timestamp does not cover the requested digest")
	ErrNonceMismatch = errors.New("timestamp does not echo the request nonce")
)

// Client talks to the timestamp authority named in a task.
type Client struct {
	params     model.TSAParams
	hash       crypto.Hash
	policy     asn1.ObjectIdentifier
	extensions []pkix.Extension
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. The TLS client credential
// from SigningMaterial is not applied to a replaced client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient validates params and loads the PKCS#12 client credential, if any.
func NewClient(params model.TSAParams, opts ...Option) (*Client, error) {
	if params.URI == "" {
		return nil, errors.New("tsa uri is not set")
	}
	h, err := HashFor(params.DigestAlgorithm)
	if err != nil {
		return nil, err
	}
	c := &Client{params: params, hash: h}
	if params.PolicyOID != "" {
		if c.policy, err = derOID(params.PolicyOID); err != nil {
			return nil, fmt.Errorf("invalid tsa policy: %w", err)
		}
	}
	for _, ext := range params.Extensions {
		oid, err := derOID(ext.OID)
		if err != nil {
			return nil, fmt.Errorf("invalid tsa extension: %w", err)
		}
		c.extensions = append(c.extensions, pkix.Extension{Id: oid, Critical: ext.Critical, Value: ext.Value})
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if len(params.SigningMaterial) > 0 {
		cred, err := p12.Parse(params.SigningMaterial, params.MaterialPassword)
		if err != nil {
			log.Printf("DEBUG: TSA credential rejected: %s", p12.Describe(err))
			return nil, fmt.Errorf("failed to load tsa credential: %w", err)
		}
		transport.TLSClientConfig = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cred.TLSCertificate()},
		}
		log.Printf("DEBUG: TSA client credential loaded (%s)", cred.Cert.Subject.CommonName)
	}
	c.httpClient = &http.Client{Timeout: 30 * time.Second, Transport: transport}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// derOID parses a dotted-decimal OID and checks that it can be DER encoded.
// Task OIDs are only checked for syntax, so arcs such as "4.3.2.1" are
// rejected here rather than when the query is marshalled.
func derOID(s string) (asn1.ObjectIdentifier, error) {
	oid, err := cades.ParseOID(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	if _, err := asn1.Marshal(oid); err != nil {
		return nil, fmt.Errorf("%w: oid %q cannot be DER encoded", model.ErrInvalidArgument, s)
	}
	return oid, nil
}

// HashFor maps a digest name such as "SHA-256" or "SHA512" to a crypto.Hash.
func HashFor(name string) (crypto.Hash, error) {
	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "") {
	case "SHA1":
		return crypto.SHA1, nil
	case "SHA256":
		return crypto.SHA256, nil
	case "SHA384":
		return crypto.SHA384, nil
	case "SHA512":
		return crypto.SHA512, nil
	}
	return 0, fmt.Errorf("unsupported tsa digest algorithm %q", name)
}

// Timestamp hashes content and obtains a timestamp token for the digest.
func (c *Client) Timestamp(ctx context.Context, content []byte) (*timestamp.Timestamp, error) {
	h := c.hash.New()
	h.Write(content)
	digest := h.Sum(nil)

	nonce, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	req := timestamp.Request{
		HashAlgorithm: c.hash,
		HashedMessage: digest,
		Certificates:  true,
		TSAPolicyOID:    c.policy,
		Nonce:           nonce,
		ExtraExtensions: c.extensions,
	}
	query, err := req.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to build timestamp query: %w", err)
	}

	log.Printf("DEBUG: Requesting timestamp from %s (%s, %d extensions)", c.params.URI, c.hash, len(req.ExtraExtensions))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.params.URI, bytes.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeQuery)
	if c.params.User != "" {
		httpReq.SetBasicAuth(c.params.User, c.params.Password)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("timestamp request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read timestamp response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	ts, err := timestamp.ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp response: %w", err)
	}
	if ts.HashAlgorithm != c.hash || !bytes.Equal(ts.HashedMessage, digest) {
		return nil, ErrHashMismatch
	}
	if ts.Nonce == nil || ts.Nonce.Cmp(nonce) != 0 {
		log.Printf("WARN: TSA %s answered with nonce %v, expected %v", c.params.URI, ts.Nonce, nonce)
		return nil, ErrNonceMismatch
	}
	log.Printf("DEBUG: Timestamp granted at %s (serial %v)", ts.Time.Format(time.RFC3339), ts.SerialNumber)
	return ts, nil
}
