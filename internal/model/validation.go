package model

import (
	"fmt"
	"net/url"
	"regexp"
	"unicode/utf8"
)

var reOID = regexp.MustCompile(`^[0-9]+(\.[0-9]+)+$`)

// IsOID reports whether s has dotted-decimal syntax. Arc ranges are not
// checked; consumers that DER encode the OID do that themselves.
func IsOID(s string) bool {
	return reOID.MatchString(s)
}

// Validate checks every invariant of the task and its nested values.
func (t *SignTask) Validate() error {
	if err := validateAbsoluteURL("retrieveUrl", t.retrieveURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("saveUrl", t.saveURL); err != nil {
		return err
	}
	if err := validateText("saveUrlPostParam", t.saveURLPostParam); err != nil {
		return err
	}
	if err := validateText("cert", t.cert); err != nil {
		return err
	}
	if t.tsa != nil {
		if err := t.tsa.Validate(); err != nil {
			return nested("tsaParams", err)
		}
	}
	for i, b := range t.bioSigns {
		if err := b.Validate(); err != nil {
			return nested(fmt.Sprintf("bioSigns[%d]", i), err)
		}
	}
	for _, k := range t.completion.Keys() {
		v, _ := t.completion.Get(k)
		if err := validateText("completeCriptoSignExtraParams", k); err != nil {
			return err
		}
		if err := validateText("completeCriptoSignExtraParams["+k+"]", v); err != nil {
			return err
		}
	}
	return nil
}

func (p *TSAParams) Validate() error {
	if p.Required {
		if p.URI == "" {
			return violation("uri", "required when a timestamp is required")
		}
		if p.DigestAlgorithm == "" {
			return violation("digestAlgorithm", "required when a timestamp is required")
		}
	}
	if p.URI != "" {
		if err := validateAbsoluteURL("uri", p.URI); err != nil {
			return err
		}
	}
	for _, f := range []struct{ name, value string }{
		{"user", p.User},
		{"password", p.Password},
		{"digestAlgorithm", p.DigestAlgorithm},
		{"materialPassword", p.MaterialPassword},
	} {
		if err := validateText(f.name, f.value); err != nil {
			return err
		}
	}
	if p.PolicyOID != "" && !IsOID(p.PolicyOID) {
		return violation("policyOid", "%q is not a dotted-decimal OID", p.PolicyOID)
	}
	for i, ext := range p.Extensions {
		if !IsOID(ext.OID) {
			return violation(fmt.Sprintf("extensions[%d].oid", i), "%q is not a dotted-decimal OID", ext.OID)
		}
	}
	return nil
}

func (b BioSign) Validate() error {
	if b.HTML == "" {
		return violation("htmlContent", "must not be empty")
	}
	if err := validateText("htmlContent", b.HTML); err != nil {
		return err
	}
	if err := b.Signer.Validate(); err != nil {
		return nested("signerInfo", err)
	}
	if err := b.SignatureArea.Validate(); err != nil {
		return nested("signatureArea", err)
	}
	if err := b.SecondaryArea.Validate(); err != nil {
		return nested("secondaryArea", err)
	}
	return nil
}

func (s SignerInfo) Validate() error {
	if s.Name == "" {
		return violation("givenName", "must not be empty")
	}
	if s.ID == "" {
		return violation("nationalId", "must not be empty")
	}
	for _, f := range []struct{ name, value string }{
		{"givenName", s.Name},
		{"surname1", s.Surname1},
		{"surname2", s.Surname2},
		{"nationalId", s.ID},
	} {
		if err := validateText(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

func (r Rect) Validate() error {
	if r.Width < 0 {
		return violation("width", "must not be negative, got %d", r.Width)
	}
	if r.Height < 0 {
		return violation("height", "must not be negative, got %d", r.Height)
	}
	return nil
}

func validateAbsoluteURL(field, raw string) error {
	if raw == "" {
		return violation(field, "missing")
	}
	if err := validateText(field, raw); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return violation(field, "invalid url: %v", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return violation(field, "%q is not an absolute url", raw)
	}
	return nil
}

// validateText rejects strings that XML 1.0 cannot carry, since the encoder
// would replace them and the task would not survive a round trip.
func validateText(field, s string) error {
	if !utf8.ValidString(s) {
		return violation(field, "not valid UTF-8")
	}
	for i, r := range s {
		if !isXMLChar(r) {
			return violation(field, "character %U at byte %d is not allowed in XML", r, i)
		}
	}
	return nil
}

// isXMLChar implements the Char production of XML 1.0.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
