package model

import "bytes"

// Rect is an axis-aligned rectangle in PDF page units.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// SignerInfo identifies the natural person behind a handwritten signature.
type SignerInfo struct {
	Name     string `json:"givenName"`
	Surname1 string `json:"surname1,omitempty"`
	Surname2 string `json:"surname2,omitempty"`
	ID       string `json:"nationalId"` // DNI/NIE
}

// TSAExtension is an extension attached to the RFC 3161 timestamp query.
type TSAExtension struct {
	OID      string
	Critical bool
	Value    []byte
}

// TSAParams configures the timestamp authority used by the consumer.
type TSAParams struct {
	Required         bool
	PolicyOID        string
	URI              string
	User             string
	Password         string
	Extensions       []TSAExtension
	DigestAlgorithm  string
	SigningMaterial  []byte // PKCS#12 client credential
	MaterialPassword string
}

// BioSign is one handwritten signature to capture and place on the document.
type BioSign struct {
	Signer         SignerInfo
	HTML           string // context shown to the signer on the pad
	AuxiliaryAsset []byte // optional, e.g. a JPEG template
	SignatureArea  Rect
	SecondaryArea  Rect
}

// SignTaskParams carries the inputs of NewSignTask. Empty strings and byte
// slices mean "absent".
type SignTaskParams struct {
	TSA                    *TSAParams
	RetrieveURL            string
	SaveURL                string
	SaveURLPostParam       string
	Cert                   string // Base64 DER recipient certificate
	BioSigns               []BioSign
	CompleteWithCryptoSign bool
	CompletionParams       map[string]string
}

// SignTask is the self-contained description of a biometric signing job.
// It is read-only once built: NewSignTask copies its inputs and every
// accessor hands out copies.
type SignTask struct {
	tsa              *TSAParams
	retrieveURL      string
	saveURL          string
	saveURLPostParam string
	cert             string
	bioSigns         []BioSign
	complete         bool
	completion       CompletionParams
}

// NewSignTask builds and validates a task.
func NewSignTask(p SignTaskParams) (*SignTask, error) {
	t := &SignTask{
		tsa:              p.TSA.clone(),
		retrieveURL:      p.RetrieveURL,
		saveURL:          p.SaveURL,
		saveURLPostParam: p.SaveURLPostParam,
		cert:             p.Cert,
		bioSigns:         cloneBioSigns(p.BioSigns),
		complete:         p.CompleteWithCryptoSign,
		completion:       NewCompletionParams(p.CompletionParams),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.completion.warnUnknown()
	return t, nil
}

// TSAParams returns a copy of the timestamp parameters, or nil when absent.
func (t *SignTask) TSAParams() *TSAParams { return t.tsa.clone() }

func (t *SignTask) RetrieveURL() string { return t.retrieveURL }

func (t *SignTask) SaveURL() string { return t.saveURL }

// SaveURLPostParam is the form field that receives the signed PDF, "" when absent.
func (t *SignTask) SaveURLPostParam() string { return t.saveURLPostParam }

// Cert is the Base64 recipient certificate, "" when absent.
func (t *SignTask) Cert() string { return t.cert }

func (t *SignTask) HasCert() bool { return t.cert != "" }

// BioSigns returns a copy of the signature instructions in order. Never nil.
func (t *SignTask) BioSigns() []BioSign { return cloneBioSigns(t.bioSigns) }

func (t *SignTask) CompleteWithCryptoSign() bool { return t.complete }

func (t *SignTask) CompletionParams() CompletionParams { return t.completion }

// Equal reports field-wise equality. Sequences compare in order; completion
// params compare as key/value sets.
func (t *SignTask) Equal(o *SignTask) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.tsa.Equal(o.tsa) ||
		t.retrieveURL != o.retrieveURL ||
		t.saveURL != o.saveURL ||
		t.saveURLPostParam != o.saveURLPostParam ||
		t.cert != o.cert ||
		t.complete != o.complete ||
		!t.completion.Equal(o.completion) ||
		len(t.bioSigns) != len(o.bioSigns) {
		return false
	}
	for i := range t.bioSigns {
		if !t.bioSigns[i].Equal(o.bioSigns[i]) {
			return false
		}
	}
	return true
}

func (p *TSAParams) clone() *TSAParams {
	if p == nil {
		return nil
	}
	c := *p
	c.SigningMaterial = cloneBytes(p.SigningMaterial)
	c.Extensions = nil
	for _, ext := range p.Extensions {
		ext.Value = cloneBytes(ext.Value)
		c.Extensions = append(c.Extensions, ext)
	}
	return &c
}

// Equal compares two optional parameter sets; nil equals only nil.
func (p *TSAParams) Equal(o *TSAParams) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Required != o.Required ||
		p.PolicyOID != o.PolicyOID ||
		p.URI != o.URI ||
		p.User != o.User ||
		p.Password != o.Password ||
		p.DigestAlgorithm != o.DigestAlgorithm ||
		p.MaterialPassword != o.MaterialPassword ||
		!bytes.Equal(p.SigningMaterial, o.SigningMaterial) ||
		len(p.Extensions) != len(o.Extensions) {
		return false
	}
	for i := range p.Extensions {
		a, b := p.Extensions[i], o.Extensions[i]
		if a.OID != b.OID || a.Critical != b.Critical || !bytes.Equal(a.Value, b.Value) {
			return false
		}
	}
	return true
}

func (b BioSign) Equal(o BioSign) bool {
	return b.Signer == o.Signer &&
		b.HTML == o.HTML &&
		bytes.Equal(b.AuxiliaryAsset, o.AuxiliaryAsset) &&
		b.SignatureArea == o.SignatureArea &&
		b.SecondaryArea == o.SecondaryArea
}

func cloneBioSigns(in []BioSign) []BioSign {
	out := make([]BioSign, 0, len(in))
	for _, b := range in {
		b.AuxiliaryAsset = cloneBytes(b.AuxiliaryAsset)
		out = append(out, b)
	}
	return out
}

// cloneBytes copies b, mapping empty to nil so absence compares equal.
func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
