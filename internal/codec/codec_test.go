package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/vocdoni/gofirma/biosign/internal/model"
	"github.com/vocdoni/gofirma/biosign/internal/testutil"
)

func mustTask(t *testing.T, p model.SignTaskParams) *model.SignTask {
	t.Helper()
	task, err := model.NewSignTask(p)
	if err != nil {
		t.Fatalf("NewSignTask: %v", err)
	}
	return task
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		params model.SignTaskParams
	}{
		{"full", testutil.FullTaskParams()},
		{"minimal", testutil.MinimalTaskParams()},
		{"example", testutil.ExampleTaskParams()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := mustTask(t, tt.params)

			raw, err := Encode(task)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			fromRaw, err := Decode(raw)
			if err != nil {
				t.Fatalf("Decode(raw): %v\n%s", err, raw)
			}
			if !fromRaw.Equal(task) {
				t.Fatalf("raw round trip mismatch:\nwant %s\ngot  %s", task, fromRaw)
			}

			wrapped, err := EncodeBase64(task)
			if err != nil {
				t.Fatalf("EncodeBase64: %v", err)
			}
			fromWrapped, err := DecodeString(wrapped)
			if err != nil {
				t.Fatalf("Decode(base64): %v", err)
			}
			if !fromWrapped.Equal(fromRaw) {
				t.Fatal("base64 and raw decodes differ")
			}
		})
	}
}

func TestExampleEndToEnd(t *testing.T) {
	task := mustTask(t, testutil.ExampleTaskParams())
	wrapped, err := EncodeBase64(task)
	if err != nil {
		t.Fatalf("EncodeBase64: %v", err)
	}
	got, err := DecodeString(wrapped)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}

	if got.RetrieveURL() != "https://example.org/in.pdf" || got.SaveURL() != "https://example.org/out" {
		t.Fatalf("unexpected urls: %s %s", got.RetrieveURL(), got.SaveURL())
	}
	if got.TSAParams() != nil || got.HasCert() || got.SaveURLPostParam() != "" {
		t.Fatal("absent optional fields must stay absent")
	}
	bs := got.BioSigns()
	if len(bs) != 1 {
		t.Fatalf("expected 1 bioSign, got %d", len(bs))
	}
	if bs[0].SignatureArea != (model.Rect{X: 10, Y: 10, Width: 100, Height: 100}) {
		t.Fatalf("signature area: %v", bs[0].SignatureArea)
	}
	if bs[0].SecondaryArea != (model.Rect{X: 50, Y: 30, Width: 200, Height: 75}) {
		t.Fatalf("secondary area: %v", bs[0].SecondaryArea)
	}
	if !got.CompleteWithCryptoSign() {
		t.Fatal("completeWithCryptoSign lost")
	}
	if v, ok := got.CompletionParams().Get("key"); !ok || v != "value" || got.CompletionParams().Len() != 1 {
		t.Fatalf("completion params: %v", got.CompletionParams())
	}

	summary := got.String()
	if n := strings.Count(summary, "signer="); n != 1 {
		t.Fatalf("expected exactly one biometric signature line, got %d:\n%s", n, summary)
	}
	if !strings.Contains(summary, "Cryptographic signature parameters: {key=value}") {
		t.Fatalf("missing completion parameters line:\n%s", summary)
	}
}

func TestEncodeLayout(t *testing.T) {
	raw, err := Encode(mustTask(t, testutil.FullTaskParams()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	doc := string(raw)

	if !strings.Contains(doc, `<ns2:signTask xmlns:ns2="`+Namespace+`">`) {
		t.Fatalf("root element not in task namespace:\n%s", doc)
	}
	order := []string{
		"<tsaParams>", "<retrieveUrl>", "<saveUrl>", "<saveUrlPostParam>", "<cert>",
		"<bioSigns>", "<completeWithCriptoSign>", "<completeCriptoSignExtraParams>",
	}
	last := -1
	for _, tag := range order {
		idx := strings.Index(doc, tag)
		if idx < 0 {
			t.Fatalf("missing %s:\n%s", tag, doc)
		}
		if idx < last {
			t.Fatalf("%s out of order:\n%s", tag, doc)
		}
		last = idx
	}
	if strings.Index(doc, "<key>key</key>") > strings.Index(doc, "<key>signReason</key>") {
		t.Fatal("completion entries not sorted by key")
	}
}

func TestEncodeLeavesChildrenUnqualified(t *testing.T) {
	raw, err := Encode(mustTask(t, testutil.FullTaskParams()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec := xml.NewDecoder(bytes.NewReader(raw))
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			want := ""
			if depth == 1 {
				want = Namespace
			}
			if el.Name.Space != want {
				t.Fatalf("<%s> in namespace %q, want %q", el.Name.Local, el.Name.Space, want)
			}
		case xml.EndElement:
			depth--
		}
	}
}

func TestEncodeOmitsAbsentFields(t *testing.T) {
	raw, err := Encode(mustTask(t, testutil.MinimalTaskParams()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	doc := string(raw)
	for _, tag := range []string{"<tsaParams", "<saveUrlPostParam", "<cert", "<bioSign>"} {
		if strings.Contains(doc, tag) {
			t.Errorf("absent field %s emitted:\n%s", tag, doc)
		}
	}
	if !strings.Contains(doc, "<bioSigns></bioSigns>") {
		t.Errorf("empty bioSigns wrapper must still be emitted:\n%s", doc)
	}
	if !strings.Contains(doc, "<completeCriptoSignExtraParams></completeCriptoSignExtraParams>") {
		t.Errorf("empty completion params must still be emitted:\n%s", doc)
	}
}

func TestDecodePrefixedNamespace(t *testing.T) {
	const doc = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<ns2:signTask xmlns:ns2="es.gob.afirma.crypto.handwritten">
    <tsaParams>
        <required>1</required>
        <uri>http://kaka.ka</uri>
        <extensions><oid>1.2.3.4</oid><critical>false</critical><value>//o=</value></extensions>
        <digestAlgorithm>SHA-512</digestAlgorithm>
    </tsaParams>
    <retrieveUrl>http://www.google.com/</retrieveUrl>
    <saveUrl>http://www.ibm.es</saveUrl>
    <bioSigns>
        <bioSign>
            <signerInfo><givenName>Astrid</givenName><surname1>Idoate</surname1><nationalId>12345678Z</nationalId></signerInfo>
            <htmlContent>&lt;html&gt;&lt;body&gt;HOLA&lt;/body&gt;&lt;/html&gt;</htmlContent>
            <signatureArea><x>10</x><y>10</y><width>100</width><height>100</height></signatureArea>
            <secondaryArea><x> 50 </x><y>30</y><width>200</width><height>75</height></secondaryArea>
        </bioSign>
    </bioSigns>
    <completeWithCriptoSign>true</completeWithCriptoSign>
    <completeCriptoSignExtraParams>
        <entry><key>clave</key><value>valor</value></entry>
    </completeCriptoSignExtraParams>
</ns2:signTask>`

	task, err := DecodeString(doc)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	tsa := task.TSAParams()
	if tsa == nil || !tsa.Required || len(tsa.Extensions) != 1 || string(tsa.Extensions[0].Value) != "\xff\xfa" {
		t.Fatalf("unexpected tsa params: %+v", tsa)
	}
	bs := task.BioSigns()
	if len(bs) != 1 || bs[0].HTML != "<html><body>HOLA</body></html>" || bs[0].SecondaryArea.X != 50 {
		t.Fatalf("unexpected bioSigns: %+v", bs)
	}
	if v, _ := task.CompletionParams().Get("clave"); v != "valor" {
		t.Fatalf("unexpected completion params: %v", task.CompletionParams())
	}
}

func TestDecodeWrappedWithLineBreaks(t *testing.T) {
	task := mustTask(t, testutil.FullTaskParams())
	wrapped, err := EncodeBase64(task)
	if err != nil {
		t.Fatalf("EncodeBase64: %v", err)
	}
	var sb strings.Builder
	for i := 0; i < len(wrapped); i += 76 {
		end := min(i+76, len(wrapped))
		sb.WriteString(wrapped[i:end])
		sb.WriteString("\r\n")
	}
	got, err := DecodeString(sb.String())
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if !got.Equal(task) {
		t.Fatal("MIME-wrapped decode mismatch")
	}
}

func TestDecodeURLSafeBase64(t *testing.T) {
	task := mustTask(t, testutil.FullTaskParams())
	raw, err := Encode(task)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeString(base64.URLEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if !got.Equal(task) {
		t.Fatal("url-safe decode mismatch")
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Encode(mustTask(t, testutil.ExampleTaskParams()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	without := func(old, repl string) string {
		return strings.Replace(string(valid), old, repl, 1)
	}

	tests := []struct {
		name  string
		input []byte
		want  error
	}{
		{"nil", nil, model.ErrInvalidArgument},
		{"blank", []byte(" \n\t"), model.ErrInvalidArgument},
		{"garbage", []byte("not xml at all"), model.ErrMalformedInput},
		{"truncated xml", valid[:len(valid)/2], model.ErrMalformedInput},
		{"base64 of garbage", []byte(base64.StdEncoding.EncodeToString([]byte("<<<garbage"))), model.ErrMalformedInput},
		{"missing retrieveUrl", []byte(without("<retrieveUrl>https://example.org/in.pdf</retrieveUrl>", "")), model.ErrSchemaViolation},
		{"missing saveUrl", []byte(without("<saveUrl>https://example.org/out</saveUrl>", "")), model.ErrSchemaViolation},
		{"relative retrieveUrl", []byte(without("https://example.org/in.pdf", "in.pdf")), model.ErrSchemaViolation},
		{"bad boolean", []byte(without("<completeWithCriptoSign>true<", "<completeWithCriptoSign>yes<")), model.ErrSchemaViolation},
		{"bad coordinate", []byte(without("<x>10</x>", "<x>ten</x>")), model.ErrSchemaViolation},
		{"empty html", []byte(without("<htmlContent>&lt;html&gt;&lt;body&gt;&lt;h1&gt;HOLA&lt;/h1&gt;&lt;/body&gt;&lt;/html&gt;</htmlContent>", "<htmlContent></htmlContent>")), model.ErrSchemaViolation},
		{"duplicate key", []byte(without("</entry>", "</entry><entry><key>key</key><value>other</value></entry>")), model.ErrSchemaViolation},
		{"wrong root", []byte(`<other xmlns="` + Namespace + `"><retrieveUrl>https://a.b/c</retrieveUrl></other>`), model.ErrSchemaViolation},
		{"wrong namespace", []byte(without(`xmlns:ns2="`+Namespace+`"`, `xmlns:ns2="urn:other"`)), model.ErrSchemaViolation},
		{"content after root", append(append([]byte{}, valid...), "<<<this is not xml & never closes"...), model.ErrMalformedInput},
		{"second root", append(append([]byte{}, valid...), valid[len(xml.Header):]...), model.ErrMalformedInput},
		{"text after root", append(append([]byte{}, valid...), "trailing"...), model.ErrMalformedInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := Decode(tt.input)
			if err == nil {
				t.Fatalf("expected error, got task:\n%s", task)
			}
			if task != nil {
				t.Fatal("no task must be returned on failure")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeAllowsTrailingMisc(t *testing.T) {
	valid, err := Encode(mustTask(t, testutil.ExampleTaskParams()))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	doc := string(valid) + "\n<!-- generated -->\n<?producer done?>\n"
	if _, err := DecodeString(doc); err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
}

func TestDecodeDefaultNamespace(t *testing.T) {
	task, err := DecodeString(`<signTask xmlns="` + Namespace + `"><retrieveUrl>https://example.org/in.pdf</retrieveUrl><saveUrl>https://example.org/out</saveUrl><bioSigns/></signTask>`)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if task.RetrieveURL() != "https://example.org/in.pdf" || len(task.BioSigns()) != 0 {
		t.Fatalf("unexpected task:\n%s", task)
	}
}

func TestRoundTripProducerTask(t *testing.T) {
	task := mustTask(t, testutil.ProducerTaskParams())
	wrapped, err := EncodeBase64(task)
	if err != nil {
		t.Fatalf("EncodeBase64: %v", err)
	}
	got, err := DecodeString(wrapped)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if !got.Equal(task) {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", task, got)
	}
	if got.TSAParams().PolicyOID != "4.3.2.1" {
		t.Fatalf("policy = %q", got.TSAParams().PolicyOID)
	}
}

func TestDecodeMissingRetrieveURLNamesField(t *testing.T) {
	_, err := DecodeString(`<signTask xmlns="` + Namespace + `"><saveUrl>https://example.org/out</saveUrl></signTask>`)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if ve.Field != "retrieveUrl" {
		t.Fatalf("field = %q", ve.Field)
	}
}

func TestDecodeWithoutNamespace(t *testing.T) {
	task, err := DecodeString(`<signTask><retrieveUrl>https://example.org/in.pdf</retrieveUrl><saveUrl>https://example.org/out</saveUrl></signTask>`)
	if err != nil {
		t.Fatalf("DecodeString: %v", err)
	}
	if task.CompleteWithCryptoSign() || task.CompletionParams().Len() != 0 || len(task.BioSigns()) != 0 {
		t.Fatal("absent elements must decode to their defaults")
	}
}

func TestEncodeNil(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
