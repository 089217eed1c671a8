package testutil

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/digitorus/timestamp"
)

// DefaultTSAPolicy is granted when a query names no policy.
var DefaultTSAPolicy = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 99999, 1}

// TSA is an in-memory RFC 3161 responder for httptest servers.
type TSA struct {
	Key    *rsa.PrivateKey
	Cert   *x509.Certificate
	Tamper bool     // answer with a digest that does not match the query
	Nonce  *big.Int // answer with this nonce instead of echoing the query's

	mu       sync.Mutex
	requests []*timestamp.Request
	user     string
	password string
}

func NewTSA() (*TSA, error) {
	key, cert, err := NewIdentity(pkix.Name{CommonName: "Test TSA"}, x509.ExtKeyUsageTimeStamping)
	if err != nil {
		return nil, err
	}
	return &TSA{Key: key, Cert: cert}, nil
}

// LastRequest returns the most recent parsed query and its basic auth.
func (f *TSA) LastRequest() (*timestamp.Request, string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil, "", ""
	}
	return f.requests[len(f.requests)-1], f.user, f.password
}

func (f *TSA) Requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *TSA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/timestamp-query" {
		http.Error(w, "bad content type", http.StatusBadRequest)
		return
	}
	body, _ := io.ReadAll(r.Body)
	req, err := timestamp.ParseRequest(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.user, f.password, _ = r.BasicAuth()
	f.mu.Unlock()

	hashed := req.HashedMessage
	if f.Tamper {
		hashed = make([]byte, len(hashed))
	}
	nonce := req.Nonce
	if f.Nonce != nil {
		nonce = f.Nonce
	}
	policy := req.TSAPolicyOID
	if len(policy) == 0 {
		policy = DefaultTSAPolicy
	}
	ts := timestamp.Timestamp{
		HashAlgorithm:     req.HashAlgorithm,
		HashedMessage:     hashed,
		Time:              time.Now().UTC(),
		Nonce:             nonce,
		Policy:            policy,
		Accuracy:          time.Second,
		AddTSACertificate: true,
	}
	resp, err := ts.CreateResponseWithOpts(f.Cert, f.Key, crypto.SHA256)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/timestamp-reply")
	w.Write(resp)
}
