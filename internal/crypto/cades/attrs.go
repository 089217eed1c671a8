package cades

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"strconv"
	"strings"
)

var (
	OidSigningCertificateV2      = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}
	OidSignaturePolicyIdentifier = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 15}

	OidSignaturePolicyQualifierCPS = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 5, 1}

	OidSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OidSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OidSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

type SigningCertificateV2 struct {
	Certs    []ESSCertIDv2
	Policies []PolicyInformation `asn1:"optional"`
}

type ESSCertIDv2 struct {
	HashAlgorithm pkix.AlgorithmIdentifier `asn1:"default:sha256"`
	CertHash      []byte
	IssuerSerial  IssuerSerial `asn1:"optional"`
}

type IssuerSerial struct {
	Issuer asn1.RawValue
	Serial asn1.RawValue
}

type PolicyInformation struct {
	PolicyIdentifier asn1.ObjectIdentifier
	PolicyQualifiers []interface{} `asn1:"optional"`
}

type SignaturePolicyIdentifier struct {
	SigPolicyID         asn1.ObjectIdentifier
	SigPolicyHash       SigPolicyHash
	SigPolicyQualifiers []SigPolicyQualifier `asn1:"optional"`
}

type SigPolicyHash struct {
	HashAlgorithm pkix.AlgorithmIdentifier
	HashValue     []byte
}

type SigPolicyQualifier struct {
	SigPolicyQualifierID asn1.ObjectIdentifier
	Qualifier            asn1.RawValue
}

// ParseOID parses a dotted-decimal object identifier.
func ParseOID(oidStr string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(oidStr, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid oid %q", oidStr)
	}
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, part := range parts {
		val, err := strconv.Atoi(part)
		if err != nil || val < 0 {
			return nil, fmt.Errorf("invalid oid %q", oidStr)
		}
		oid[i] = val
	}
	return oid, nil
}

// DigestOID maps a digest name such as SHA1 or SHA-256 to its OID.
// Empty defaults to SHA-256.
func DigestOID(name string) (asn1.ObjectIdentifier, error) {
	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "-", "") {
	case "", "SHA256":
		return OidSHA256, nil
	case "SHA1":
		return OidSHA1, nil
	case "SHA384":
		return OidSHA384, nil
	case "SHA512":
		return OidSHA512, nil
	}
	return nil, fmt.Errorf("unsupported digest algorithm %q", name)
}

func algorithmIdentifier(oid asn1.ObjectIdentifier) pkix.AlgorithmIdentifier {
	return pkix.AlgorithmIdentifier{
		Algorithm:  oid,
		Parameters: asn1.NullRawValue,
	}
}
