package model

import (
	"fmt"
	"strings"
)

// String renders a deterministic diagnostic summary of the task. Secrets
// (certificate, passwords, credential bytes) are reported as present or
// absent, never printed.
func (t *SignTask) String() string {
	var sb strings.Builder
	sb.WriteString("Biometric signature task:\n")
	if t.tsa != nil {
		fmt.Fprintf(&sb, "  Timestamp parameters: %s\n", t.tsa)
	}
	fmt.Fprintf(&sb, "  PDF retrieve URL: %s\n", t.retrieveURL)
	fmt.Fprintf(&sb, "  PDF save URL: %s\n", t.saveURL)
	if t.saveURLPostParam != "" {
		fmt.Fprintf(&sb, "  PDF save URL POST parameter: %s\n", t.saveURLPostParam)
	}
	fmt.Fprintf(&sb, "  Encryption certificate: %s\n", yesNo(t.HasCert()))
	sb.WriteString("  Biometric signatures:\n")
	for _, b := range t.bioSigns {
		fmt.Fprintf(&sb, "    %s\n", b)
	}
	fmt.Fprintf(&sb, "  Complete with cryptographic signature: %s\n", yesNo(t.complete))
	if t.complete {
		fmt.Fprintf(&sb, "  Cryptographic signature parameters: %s\n", t.completion)
	}
	return sb.String()
}

func (p *TSAParams) String() string {
	oids := make([]string, 0, len(p.Extensions))
	for _, ext := range p.Extensions {
		oids = append(oids, ext.OID)
	}
	return fmt.Sprintf("required=%t policy=%s uri=%s user=%s digest=%s extensions=[%s] credential=%s",
		p.Required, p.PolicyOID, p.URI, p.User, p.DigestAlgorithm,
		strings.Join(oids, " "), yesNo(len(p.SigningMaterial) > 0))
}

func (b BioSign) String() string {
	return fmt.Sprintf("signer=%s area=%s secondary=%s html=%d bytes auxiliary=%s",
		b.Signer, b.SignatureArea, b.SecondaryArea, len(b.HTML), yesNo(len(b.AuxiliaryAsset) > 0))
}

func (s SignerInfo) String() string {
	name := strings.Join(strings.Fields(s.Name+" "+s.Surname1+" "+s.Surname2), " ")
	return fmt.Sprintf("%s (%s)", name, s.ID)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X, r.Y, r.Width, r.Height)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
