// Package codec converts sign tasks to and from their transport form: an XML
// document, optionally wrapped in Base64.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/vocdoni/gofirma/biosign/internal/metrics"
	"github.com/vocdoni/gofirma/biosign/internal/model"
)

// rootPrefix qualifies the root element only. Child elements are unqualified,
// so the namespace must not be declared as the default one.
const rootPrefix = "ns2"

// Encode serializes a task as an indented XML document.
func Encode(t *model.SignTask) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil sign task", model.ErrInvalidArgument)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	start := xml.StartElement{
		Name: xml.Name{Local: rootPrefix + ":" + rootElement},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns:" + rootPrefix}, Value: Namespace}},
	}
	if err := enc.EncodeElement(fromTask(t), start); err != nil {
		return nil, fmt.Errorf("failed to encode sign task: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// EncodeBase64 serializes a task and wraps the XML in standard Base64.
func EncodeBase64(t *model.SignTask) (string, error) {
	raw, err := Encode(t)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeString is Decode for text input.
func DecodeString(s string) (*model.SignTask, error) {
	return Decode([]byte(s))
}

// Decode rebuilds a validated task from its transport form. The input may be
// raw XML or Base64-wrapped XML; Base64 is tried first and, when the input is
// not valid Base64, it is parsed as raw XML.
func Decode(input []byte) (*model.SignTask, error) {
	if len(bytes.TrimSpace(input)) == 0 {
		metrics.RecordTaskDecodeError("invalid_argument")
		return nil, fmt.Errorf("%w: sign task input is empty", model.ErrInvalidArgument)
	}

	raw, form := unwrap(input)

	var doc xmlSignTask
	dec := xml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		var ue xml.UnmarshalError
		if errors.As(err, &ue) {
			metrics.RecordTaskDecodeError("schema")
			return nil, fmt.Errorf("%w: %v", model.ErrSchemaViolation, err)
		}
		metrics.RecordTaskDecodeError("malformed")
		return nil, fmt.Errorf("%w: %s input is not valid XML: %v", model.ErrMalformedInput, form, err)
	}
	if err := trailing(dec); err != nil {
		metrics.RecordTaskDecodeError("malformed")
		return nil, fmt.Errorf("%w: %s input is not valid XML: %v", model.ErrMalformedInput, form, err)
	}

	p, err := doc.params()
	if err != nil {
		metrics.RecordTaskDecodeError("schema")
		return nil, err
	}
	task, err := model.NewSignTask(p)
	if err != nil {
		metrics.RecordTaskDecodeError("schema")
		return nil, err
	}

	metrics.RecordTaskDecode(form)
	log.Printf("DEBUG: Decoded %s sign task (%d biometric signatures)", form, len(p.BioSigns))
	return task, nil
}

// trailing consumes what follows the root element. Only whitespace, comments
// and processing instructions may appear there.
func trailing(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return errors.New("text after root element")
			}
		default:
			return fmt.Errorf("unexpected %T after root element", tok)
		}
	}
}

// unwrap reverses the Base64 wrapping when possible. Line breaks and other
// whitespace inside the Base64 text are ignored.
func unwrap(input []byte) ([]byte, string) {
	compact := stripSpace(string(input))
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding} {
		decoded, err := enc.DecodeString(compact)
		if err == nil {
			return decoded, metrics.FormBase64
		}
		lastErr = err
	}
	log.Printf("DEBUG: Sign task input is not Base64 (%v), parsing it as raw XML", lastErr)
	return input, metrics.FormRaw
}
