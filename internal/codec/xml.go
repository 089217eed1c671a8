package codec

import (
	"encoding/base64"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/vocdoni/gofirma/biosign/internal/model"
)

// Namespace is the task-definition namespace of the signTask root element.
const Namespace = "es.gob.afirma.crypto.handwritten"

const rootElement = "signTask"

// Scalars are carried as strings so that shape errors surface as schema
// violations with a field name instead of as XML decoding errors.
type xmlSignTask struct {
	XMLName          xml.Name      `xml:"signTask"`
	TSA              *xmlTSAParams `xml:"tsaParams,omitempty"`
	RetrieveURL      string        `xml:"retrieveUrl"`
	SaveURL          string        `xml:"saveUrl"`
	SaveURLPostParam string        `xml:"saveUrlPostParam,omitempty"`
	Cert             string        `xml:"cert,omitempty"`
	BioSigns         xmlBioSigns   `xml:"bioSigns"`
	Complete         string        `xml:"completeWithCriptoSign"`
	ExtraParams      xmlParams     `xml:"completeCriptoSignExtraParams"`
}

type xmlTSAParams struct {
	Required         string            `xml:"required"`
	PolicyOID        string            `xml:"policyOid,omitempty"`
	URI              string            `xml:"uri,omitempty"`
	User             string            `xml:"user,omitempty"`
	Password         string            `xml:"password,omitempty"`
	Extensions       []xmlTSAExtension `xml:"extensions"`
	DigestAlgorithm  string            `xml:"digestAlgorithm,omitempty"`
	SigningMaterial  string            `xml:"signingMaterial,omitempty"`
	MaterialPassword string            `xml:"materialPassword,omitempty"`
}

type xmlTSAExtension struct {
	OID      string `xml:"oid"`
	Critical string `xml:"critical"`
	Value    string `xml:"value"`
}

// The bioSigns wrapper is always written, empty when there are no signatures.
type xmlBioSigns struct {
	Items []xmlBioSign `xml:"bioSign"`
}

type xmlBioSign struct {
	Signer         xmlSignerInfo `xml:"signerInfo"`
	HTML           string        `xml:"htmlContent"`
	AuxiliaryAsset string        `xml:"auxiliaryAsset,omitempty"`
	SignatureArea  xmlRect       `xml:"signatureArea"`
	SecondaryArea  xmlRect       `xml:"secondaryArea"`
}

type xmlSignerInfo struct {
	Name     string `xml:"givenName"`
	Surname1 string `xml:"surname1,omitempty"`
	Surname2 string `xml:"surname2,omitempty"`
	ID       string `xml:"nationalId"`
}

type xmlRect struct {
	X      string `xml:"x"`
	Y      string `xml:"y"`
	Width  string `xml:"width"`
	Height string `xml:"height"`
}

type xmlParams struct {
	Entries []xmlEntry `xml:"entry"`
}

type xmlEntry struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
}

func fromTask(t *model.SignTask) xmlSignTask {
	doc := xmlSignTask{
		RetrieveURL:      t.RetrieveURL(),
		SaveURL:          t.SaveURL(),
		SaveURLPostParam: t.SaveURLPostParam(),
		Cert:             t.Cert(),
		Complete:         strconv.FormatBool(t.CompleteWithCryptoSign()),
	}
	if p := t.TSAParams(); p != nil {
		x := &xmlTSAParams{
			Required:         strconv.FormatBool(p.Required),
			PolicyOID:        p.PolicyOID,
			URI:              p.URI,
			User:             p.User,
			Password:         p.Password,
			DigestAlgorithm:  p.DigestAlgorithm,
			SigningMaterial:  encodeBytes(p.SigningMaterial),
			MaterialPassword: p.MaterialPassword,
		}
		for _, ext := range p.Extensions {
			x.Extensions = append(x.Extensions, xmlTSAExtension{
				OID:      ext.OID,
				Critical: strconv.FormatBool(ext.Critical),
				Value:    encodeBytes(ext.Value),
			})
		}
		doc.TSA = x
	}
	for _, b := range t.BioSigns() {
		doc.BioSigns.Items = append(doc.BioSigns.Items, xmlBioSign{
			Signer: xmlSignerInfo{
				Name:     b.Signer.Name,
				Surname1: b.Signer.Surname1,
				Surname2: b.Signer.Surname2,
				ID:       b.Signer.ID,
			},
			HTML:           b.HTML,
			AuxiliaryAsset: encodeBytes(b.AuxiliaryAsset),
			SignatureArea:  fromRect(b.SignatureArea),
			SecondaryArea:  fromRect(b.SecondaryArea),
		})
	}
	params := t.CompletionParams()
	for _, k := range params.Keys() {
		v, _ := params.Get(k)
		doc.ExtraParams.Entries = append(doc.ExtraParams.Entries, xmlEntry{Key: k, Value: v})
	}
	return doc
}

func fromRect(r model.Rect) xmlRect {
	return xmlRect{
		X:      strconv.Itoa(r.X),
		Y:      strconv.Itoa(r.Y),
		Width:  strconv.Itoa(r.Width),
		Height: strconv.Itoa(r.Height),
	}
}

// params converts the decoded document into constructor input. Shape errors
// are reported as *model.ValidationError.
func (doc *xmlSignTask) params() (model.SignTaskParams, error) {
	if doc.XMLName.Space != "" && doc.XMLName.Space != Namespace {
		return model.SignTaskParams{}, &model.ValidationError{Field: rootElement, Reason: "unexpected namespace " + strconv.Quote(doc.XMLName.Space)}
	}
	p := model.SignTaskParams{
		RetrieveURL:      doc.RetrieveURL,
		SaveURL:          doc.SaveURL,
		SaveURLPostParam: doc.SaveURLPostParam,
		Cert:             doc.Cert,
	}
	var err error
	if p.CompleteWithCryptoSign, err = parseBool("completeWithCriptoSign", doc.Complete); err != nil {
		return p, err
	}
	if doc.TSA != nil {
		if p.TSA, err = doc.TSA.params(); err != nil {
			return p, err
		}
	}
	for i, x := range doc.BioSigns.Items {
		b, err := x.params(i)
		if err != nil {
			return p, err
		}
		p.BioSigns = append(p.BioSigns, b)
	}
	p.CompletionParams = make(map[string]string, len(doc.ExtraParams.Entries))
	for _, e := range doc.ExtraParams.Entries {
		if _, dup := p.CompletionParams[e.Key]; dup {
			return p, &model.ValidationError{Field: "completeCriptoSignExtraParams", Reason: "duplicate key " + strconv.Quote(e.Key)}
		}
		p.CompletionParams[e.Key] = e.Value
	}
	return p, nil
}

func (x *xmlTSAParams) params() (*model.TSAParams, error) {
	p := &model.TSAParams{
		PolicyOID:        x.PolicyOID,
		URI:              x.URI,
		User:             x.User,
		Password:         x.Password,
		DigestAlgorithm:  x.DigestAlgorithm,
		MaterialPassword: x.MaterialPassword,
	}
	var err error
	if p.Required, err = parseBool("tsaParams.required", x.Required); err != nil {
		return nil, err
	}
	if p.SigningMaterial, err = decodeBytes("tsaParams.signingMaterial", x.SigningMaterial); err != nil {
		return nil, err
	}
	for i, xe := range x.Extensions {
		field := "tsaParams.extensions[" + strconv.Itoa(i) + "]"
		ext := model.TSAExtension{OID: strings.TrimSpace(xe.OID)}
		if ext.Critical, err = parseBool(field+".critical", xe.Critical); err != nil {
			return nil, err
		}
		if ext.Value, err = decodeBytes(field+".value", xe.Value); err != nil {
			return nil, err
		}
		p.Extensions = append(p.Extensions, ext)
	}
	return p, nil
}

func (x *xmlBioSign) params(i int) (model.BioSign, error) {
	field := "bioSigns[" + strconv.Itoa(i) + "]"
	b := model.BioSign{
		Signer: model.SignerInfo{
			Name:     x.Signer.Name,
			Surname1: x.Signer.Surname1,
			Surname2: x.Signer.Surname2,
			ID:       x.Signer.ID,
		},
		HTML: x.HTML,
	}
	var err error
	if b.AuxiliaryAsset, err = decodeBytes(field+".auxiliaryAsset", x.AuxiliaryAsset); err != nil {
		return b, err
	}
	if b.SignatureArea, err = x.SignatureArea.rect(field + ".signatureArea"); err != nil {
		return b, err
	}
	if b.SecondaryArea, err = x.SecondaryArea.rect(field + ".secondaryArea"); err != nil {
		return b, err
	}
	return b, nil
}

func (x xmlRect) rect(field string) (model.Rect, error) {
	var r model.Rect
	var err error
	if r.X, err = parseInt(field+".x", x.X); err != nil {
		return r, err
	}
	if r.Y, err = parseInt(field+".y", x.Y); err != nil {
		return r, err
	}
	if r.Width, err = parseInt(field+".width", x.Width); err != nil {
		return r, err
	}
	if r.Height, err = parseInt(field+".height", x.Height); err != nil {
		return r, err
	}
	return r, nil
}

// parseBool accepts the xsd:boolean lexical space. Absent means false.
func parseBool(field, s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "", "false", "0":
		return false, nil
	case "true", "1":
		return true, nil
	}
	return false, &model.ValidationError{Field: field, Reason: "not a boolean: " + strconv.Quote(s)}
}

func parseInt(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &model.ValidationError{Field: field, Reason: "not an integer: " + strconv.Quote(s)}
	}
	return n, nil
}

func encodeBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

func decodeBytes(field, s string) ([]byte, error) {
	s = stripSpace(s)
	if s == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &model.ValidationError{Field: field, Reason: "invalid base64: " + err.Error()}
	}
	return b, nil
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}
