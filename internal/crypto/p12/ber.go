package p12

import (
	"errors"

	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Some legacy exports (FNMT, idCAT) are BER with indefinite lengths and
// chunked OCTET STRINGs. go-pkcs12 only reads DER, so those files are
// rewritten before decoding.

const (
	tagOctetString  = 0x04
	bitConstructed  = 0x20
	maskClass       = 0xc0
	classContext    = 0x80
	maskTagNumber   = 0x1f
	maxBERDepth     = 64
	maxLengthOctets = 4
)

var (
	errBERTruncated = errors.New("ber: truncated element")
	errBERLongTag   = errors.New("ber: high tag numbers are not supported")
	errBERDepth     = errors.New("ber: nesting too deep")
)

type berNode struct {
	tag         uint8
	constructed bool
	content     []byte // primitive only
	children    []*berNode
}

// berToDER re-encodes a single BER element as DER.
func berToDER(in []byte) ([]byte, error) {
	s := cryptobyte.String(in)
	n, err := parseBER(&s, 0)
	if err != nil {
		return nil, err
	}
	if !s.Empty() {
		return nil, errors.New("ber: trailing data")
	}
	b := cryptobyte.NewBuilder(nil)
	n.marshal(b)
	return b.Bytes()
}

func parseBER(s *cryptobyte.String, depth int) (*berNode, error) {
	if depth > maxBERDepth {
		return nil, errBERDepth
	}
	var tag uint8
	if !s.ReadUint8(&tag) {
		return nil, errBERTruncated
	}
	if tag&maskTagNumber == maskTagNumber {
		return nil, errBERLongTag
	}
	n := &berNode{tag: tag, constructed: tag&bitConstructed != 0}

	length, indefinite, err := readBERLength(s)
	if err != nil {
		return nil, err
	}

	if indefinite {
		if !n.constructed {
			return nil, errors.New("ber: indefinite length on a primitive element")
		}
		for {
			if len(*s) < 2 {
				return nil, errors.New("ber: missing end-of-contents")
			}
			if (*s)[0] == 0 && (*s)[1] == 0 {
				s.Skip(2)
				return n, nil
			}
			child, err := parseBER(s, depth+1)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, child)
		}
	}

	var body []byte
	if !s.ReadBytes(&body, length) {
		return nil, errBERTruncated
	}
	if !n.constructed {
		n.content = body
		return n, nil
	}
	inner := cryptobyte.String(body)
	for !inner.Empty() {
		child, err := parseBER(&inner, depth+1)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
	}
	return n, nil
}

// readBERLength returns the content length, or indefinite for the 0x80 form.
func readBERLength(s *cryptobyte.String) (length int, indefinite bool, err error) {
	var first uint8
	if !s.ReadUint8(&first) {
		return 0, false, errBERTruncated
	}
	switch {
	case first == 0x80:
		return 0, true, nil
	case first < 0x80:
		return int(first), false, nil
	}
	count := int(first & 0x7f)
	if count > maxLengthOctets {
		return 0, false, errors.New("ber: length too large")
	}
	var octets []byte
	if !s.ReadBytes(&octets, count) {
		return 0, false, errBERTruncated
	}
	for _, o := range octets {
		length = length<<8 | int(o)
	}
	return length, false, nil
}

// octets concatenates the payload of a chunked OCTET STRING. ok is false if
// any chunk is not an OCTET STRING.
func (n *berNode) octets() (data []byte, ok bool) {
	for _, c := range n.children {
		switch {
		case c.tag == tagOctetString:
			data = append(data, c.content...)
		case c.tag == tagOctetString|bitConstructed:
			inner, ok := c.octets()
			if !ok {
				return nil, false
			}
			data = append(data, inner...)
		default:
			return nil, false
		}
	}
	return data, true
}

func (n *berNode) marshal(b *cryptobyte.Builder) {
	if !n.constructed {
		b.AddASN1(casn1.Tag(n.tag), func(c *cryptobyte.Builder) { c.AddBytes(n.content) })
		return
	}
	if data, ok := n.octets(); ok {
		switch {
		case n.tag == tagOctetString|bitConstructed:
			// The payload of a PKCS#12 bag is itself BER more often than not.
			b.AddASN1(casn1.OCTET_STRING, func(c *cryptobyte.Builder) { c.AddBytes(nestedDER(data)) })
			return
		case n.tag&maskClass == classContext && n.tag&maskTagNumber == 0 && len(n.children) > 1:
			// [0] IMPLICIT OCTET STRING, e.g. EncryptedContentInfo.encryptedContent.
			b.AddASN1(casn1.Tag(n.tag&^bitConstructed), func(c *cryptobyte.Builder) { c.AddBytes(data) })
			return
		}
	}
	b.AddASN1(casn1.Tag(n.tag), func(c *cryptobyte.Builder) {
		for _, child := range n.children {
			child.marshal(c)
		}
	})
}

// nestedDER normalizes data when it looks like an encoded SEQUENCE and
// leaves it untouched otherwise.
func nestedDER(data []byte) []byte {
	if len(data) == 0 || data[0] != 0x30 {
		return data
	}
	der, err := berToDER(data)
	if err != nil {
		return data
	}
	return der
}
