// Package cades produces the operator's completion signature: a detached
// CAdES-BES signature over the final document.
package cades

import (
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/smallstep/pkcs7"

	"github.com/vocdoni/gofirma/biosign/internal/model"
)

type SignOpts struct {
	Policy *model.SignPolicy // nil if none
}

// OptsFromCompletion derives signing options from the task's completion params.
func OptsFromCompletion(params model.CompletionParams) SignOpts {
	return SignOpts{Policy: params.Policy()}
}

// SignDetached creates a CAdES detached signature.
func SignDetached(ctx context.Context, signer crypto.Signer, cert *x509.Certificate, chain []*x509.Certificate, content []byte, opts SignOpts) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Printf("DEBUG: Starting CAdES detached signing (content len: %d)", len(content))
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, fmt.Errorf("failed to create signed data: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)

	certHash := sha256.Sum256(cert.Raw)
	signingCertV2Bytes, err := asn1.Marshal(SigningCertificateV2{
		Certs: []ESSCertIDv2{{
			HashAlgorithm: algorithmIdentifier(OidSHA256),
			CertHash:      certHash[:],
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signingCertificateV2: %w", err)
	}

	attrs := []pkcs7.Attribute{
		{
			Type:  OidSigningCertificateV2,
			Value: asn1.RawValue{FullBytes: signingCertV2Bytes},
		},
	}

	if opts.Policy != nil && opts.Policy.OID != "" {
		policyAttr, err := policyAttribute(opts.Policy)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, policyAttr)
	}

	if err := sd.AddSigner(cert, signer, pkcs7.SignerInfoConfig{ExtraSignedAttributes: attrs}); err != nil {
		log.Printf("DEBUG: AddSigner failed: %v", err)
		return nil, fmt.Errorf("failed to add signer: %w", err)
	}
	for _, c := range chain {
		sd.AddCertificate(c)
	}
	sd.Detach()

	out, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("failed to finish signature: %w", err)
	}
	log.Printf("DEBUG: Signing complete, signature size: %d", len(out))
	return out, nil
}

func policyAttribute(policy *model.SignPolicy) (pkcs7.Attribute, error) {
	policyOID, err := ParseOID(policy.OID)
	if err != nil {
		return pkcs7.Attribute{}, fmt.Errorf("invalid signature policy: %w", err)
	}
	hashOID, err := DigestOID(policy.HashAlg)
	if err != nil {
		return pkcs7.Attribute{}, fmt.Errorf("invalid signature policy: %w", err)
	}
	var hashValue []byte
	if policy.Hash != "" {
		if hashValue, err = base64.StdEncoding.DecodeString(policy.Hash); err != nil {
			return pkcs7.Attribute{}, fmt.Errorf("invalid signature policy hash: %w", err)
		}
	}

	sigPolicyID := SignaturePolicyIdentifier{
		SigPolicyID: policyOID,
		SigPolicyHash: SigPolicyHash{
			HashAlgorithm: algorithmIdentifier(hashOID),
			HashValue:     hashValue,
		},
	}
	if policy.URI != "" {
		sigPolicyID.SigPolicyQualifiers = []SigPolicyQualifier{{
			SigPolicyQualifierID: OidSignaturePolicyQualifierCPS,
			Qualifier:            asn1.RawValue{Tag: asn1.TagIA5String, Bytes: []byte(policy.URI)},
		}}
	}

	b, err := asn1.Marshal(sigPolicyID)
	if err != nil {
		return pkcs7.Attribute{}, fmt.Errorf("failed to marshal signature policy: %w", err)
	}
	return pkcs7.Attribute{
		Type:  OidSignaturePolicyIdentifier,
		Value: asn1.RawValue{FullBytes: b},
	}, nil
}
