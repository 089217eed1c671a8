package cades

import (
	"context"
	"crypto/x509/pkix"
	"testing"

	"github.com/smallstep/pkcs7"

	"github.com/vocdoni/gofirma/biosign/internal/model"
	"github.com/vocdoni/gofirma/biosign/internal/testutil"
)

func TestSignDetachedWithPolicy(t *testing.T) {
	key, cert, err := testutil.NewIdentity(pkix.Name{CommonName: "Operator"})
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	content := []byte("%PDF-1.7 signed document")
	params := model.NewCompletionParams(map[string]string{
		model.ParamPolicyIdentifier:              "2.16.724.1.3.1.1.2.1.9",
		model.ParamPolicyIdentifierHash:          "G7roucf600+f03r/o0bAOQ6WAs0=",
		model.ParamPolicyIdentifierHashAlgorithm: "SHA1",
		model.ParamPolicyQualifier:               "https://sede.060.gob.es/politica_de_firma_anexo_1.pdf",
	})

	sig, err := SignDetached(context.Background(), key, cert, nil, content, OptsFromCompletion(params))
	if err != nil {
		t.Fatalf("SignDetached: %v", err)
	}

	p7, err := pkcs7.Parse(sig)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p7.Content) != 0 {
		t.Fatal("signature must be detached")
	}
	p7.Content = content
	if err := p7.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	var policy SignaturePolicyIdentifier
	if err := p7.UnmarshalSignedAttribute(OidSignaturePolicyIdentifier, &policy); err != nil {
		t.Fatalf("policy attribute: %v", err)
	}
	if policy.SigPolicyID.String() != "2.16.724.1.3.1.1.2.1.9" {
		t.Fatalf("unexpected policy oid %s", policy.SigPolicyID)
	}
	if !policy.SigPolicyHash.HashAlgorithm.Algorithm.Equal(OidSHA1) {
		t.Fatalf("unexpected policy hash algorithm %s", policy.SigPolicyHash.HashAlgorithm.Algorithm)
	}
}

func TestSignDetachedWithoutPolicy(t *testing.T) {
	key, cert, err := testutil.NewIdentity(pkix.Name{CommonName: "Operator"})
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	sig, err := SignDetached(context.Background(), key, cert, nil, []byte("doc"), OptsFromCompletion(model.NewCompletionParams(nil)))
	if err != nil {
		t.Fatalf("SignDetached: %v", err)
	}
	p7, err := pkcs7.Parse(sig)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var policy SignaturePolicyIdentifier
	if err := p7.UnmarshalSignedAttribute(OidSignaturePolicyIdentifier, &policy); err == nil {
		t.Fatal("unexpected policy attribute")
	}
}

func TestSignDetachedRejectsBadPolicy(t *testing.T) {
	key, cert, err := testutil.NewIdentity(pkix.Name{CommonName: "Operator"})
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	opts := SignOpts{Policy: &model.SignPolicy{OID: "1.2.3", HashAlg: "MD5"}}
	if _, err := SignDetached(context.Background(), key, cert, nil, []byte("doc"), opts); err == nil {
		t.Fatal("expected error for unsupported policy digest")
	}
}

func TestParseOID(t *testing.T) {
	oid, err := ParseOID("1.3.6.1.4.1.47443.8.1.1")
	if err != nil {
		t.Fatalf("ParseOID: %v", err)
	}
	if oid.String() != "1.3.6.1.4.1.47443.8.1.1" {
		t.Fatalf("unexpected oid %s", oid)
	}
	for _, bad := range []string{"", "1", "1.a", "1.-2"} {
		if _, err := ParseOID(bad); err == nil {
			t.Errorf("ParseOID(%q) should fail", bad)
		}
	}
}
