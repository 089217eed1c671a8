package model

import (
	"log"
	"sort"
	"strings"
)

// Recognized completion signature parameters. Other keys are carried through
// unchanged and reported once at construction.
const (
	ParamPolicyIdentifier              = "policyIdentifier"
	ParamPolicyIdentifierHash          = "policyIdentifierHash"
	ParamPolicyIdentifierHashAlgorithm = "policyIdentifierHashAlgorithm"
	ParamPolicyQualifier               = "policyQualifier"
	ParamSignReason                    = "signReason"
	ParamSignatureProductionCity       = "signatureProductionCity"
	ParamSignerContact                 = "signerContact"
)

var recognizedParams = map[string]bool{
	ParamPolicyIdentifier:              true,
	ParamPolicyIdentifierHash:          true,
	ParamPolicyIdentifierHashAlgorithm: true,
	ParamPolicyQualifier:               true,
	ParamSignReason:                    true,
	ParamSignatureProductionCity:       true,
	ParamSignerContact:                 true,
}

// CompletionParams holds the extra parameters of the final cryptographic
// signature. The zero value is empty and ready to use; it is never mutated
// after construction.
type CompletionParams struct {
	m map[string]string
}

// NewCompletionParams copies m into a new container. A nil m yields an empty one.
func NewCompletionParams(m map[string]string) CompletionParams {
	c := CompletionParams{m: make(map[string]string, len(m))}
	for k, v := range m {
		c.m[k] = v
	}
	return c
}

func (c CompletionParams) Get(key string) (string, bool) {
	v, ok := c.m[key]
	return v, ok
}

func (c CompletionParams) Len() int { return len(c.m) }

// Keys returns the keys in lexical order.
func (c CompletionParams) Keys() []string {
	keys := make([]string, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the parameters. Never nil.
func (c CompletionParams) Map() map[string]string {
	out := make(map[string]string, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

// UnknownKeys lists keys outside the recognized set, in lexical order.
func (c CompletionParams) UnknownKeys() []string {
	var out []string
	for _, k := range c.Keys() {
		if !recognizedParams[k] {
			out = append(out, k)
		}
	}
	return out
}

func (c CompletionParams) Equal(o CompletionParams) bool {
	if len(c.m) != len(o.m) {
		return false
	}
	for k, v := range c.m {
		if ov, ok := o.m[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Policy returns the signature policy described by the policy* keys, or nil
// when no policy identifier is set.
func (c CompletionParams) Policy() *SignPolicy {
	oid, ok := c.Get(ParamPolicyIdentifier)
	if !ok || oid == "" {
		return nil
	}
	p := &SignPolicy{Mode: "required", OID: oid}
	p.Hash, _ = c.Get(ParamPolicyIdentifierHash)
	p.HashAlg, _ = c.Get(ParamPolicyIdentifierHashAlgorithm)
	p.URI, _ = c.Get(ParamPolicyQualifier)
	return p
}

// String renders the parameters as {k1=v1, k2=v2} in key order.
func (c CompletionParams) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range c.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(c.m[k])
	}
	sb.WriteByte('}')
	return sb.String()
}

func (c CompletionParams) warnUnknown() {
	for _, k := range c.UnknownKeys() {
		log.Printf("WARN: unrecognized completion signature parameter %q", k)
	}
}

// SignPolicy identifies the signature policy applied by the completion signature.
type SignPolicy struct {
	Mode    string `json:"mode"`
	OID     string `json:"oid,omitempty"`
	HashAlg string `json:"hashAlg,omitempty"`
	Hash    string `json:"hash,omitempty"`
	URI     string `json:"uri,omitempty"`
}
