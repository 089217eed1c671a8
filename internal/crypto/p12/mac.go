package p12

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"unicode/utf16"
)

// Rewriting BER as DER changes the bytes the PFX MAC was computed over, so
// the MAC is recomputed with the candidate password (RFC 7292 appendix B,
// HMAC-SHA1 only, which is all legacy exports use).

var oidSHA1 = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}

type macPFX struct {
	Version  int
	AuthSafe macContentInfo
	MacData  macData `asn1:"optional"`
}

type macContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"tag:0,explicit,optional"`
}

type macData struct {
	Mac struct {
		Algorithm pkix.AlgorithmIdentifier
		Digest    []byte
	}
	MacSalt    []byte
	Iterations int `asn1:"optional,default:1"`
}

func resealMAC(der []byte, password string) ([]byte, error) {
	var pfx macPFX
	if rest, err := asn1.Unmarshal(der, &pfx); err != nil {
		return nil, err
	} else if len(rest) > 0 {
		return nil, errors.New("pfx: trailing data")
	}
	if !pfx.MacData.Mac.Algorithm.Algorithm.Equal(oidSHA1) {
		return nil, errors.New("pfx: no SHA-1 MAC to recompute")
	}
	var authSafe []byte
	if _, err := asn1.Unmarshal(pfx.AuthSafe.Content.Bytes, &authSafe); err != nil {
		return nil, err
	}
	pw, err := bmpPassword(password)
	if err != nil {
		return nil, err
	}
	key := macKey(pfx.MacData.MacSalt, pw, max(pfx.MacData.Iterations, 1))
	mac := hmac.New(sha1.New, key)
	mac.Write(authSafe)
	pfx.MacData.Mac.Digest = mac.Sum(nil)
	return asn1.Marshal(pfx)
}

// macKey derives the 20-byte integrity key (diversifier 3). The key is a
// single SHA-1 block long, so the block chaining step of the KDF never runs.
func macKey(salt, password []byte, iterations int) []byte {
	const v = 64
	input := bytes.Repeat([]byte{3}, v)
	input = append(input, stretch(salt, v)...)
	input = append(input, stretch(password, v)...)
	sum := sha1.Sum(input)
	for i := 1; i < iterations; i++ {
		sum = sha1.Sum(sum[:])
	}
	return sum[:]
}

// stretch repeats b up to the next multiple of v bytes.
func stretch(b []byte, v int) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, v*((len(b)+v-1)/v))
	for i := range out {
		out[i] = b[i%len(b)]
	}
	return out
}

// bmpPassword encodes a password as a NUL-terminated big-endian BMPString.
func bmpPassword(s string) ([]byte, error) {
	out := make([]byte, 0, 2*len(s)+2)
	for _, r := range s {
		if r > 0xffff {
			return nil, errors.New("pfx: password is outside the basic multilingual plane")
		}
		for _, u := range utf16.Encode([]rune{r}) {
			out = append(out, byte(u>>8), byte(u))
		}
	}
	return append(out, 0, 0), nil
}
