// Package testutil builds fixtures shared by package tests.
package testutil

import "github.com/vocdoni/gofirma/biosign/internal/model"

// DemoCertBase64 is an opaque stand-in for a Base64 recipient certificate.
const DemoCertBase64 = "MIIBszCCAVmgAwIBAgIUY2VydGlmaWNhdGUtcGxhY2Vob2xkZXI="

// FullTaskParams returns parameters with every optional field populated.
func FullTaskParams() model.SignTaskParams {
	return model.SignTaskParams{
		TSA: &model.TSAParams{
			Required:  true,
			PolicyOID: "4.3.2.1",
			URI:       "http://tsa.example.org/tsp",
			User:      "user",
			Password:  "password",
			Extensions: []model.TSAExtension{
				{OID: "1.2.3.4", Critical: false, Value: []byte{0xff, 0xfa}},
			},
			DigestAlgorithm:  "SHA-512",
			SigningMaterial:  []byte{0x00, 0x01, 0x02, 0x03},
			MaterialPassword: "p12password",
		},
		RetrieveURL:      "https://example.org/in.pdf",
		SaveURL:          "https://example.org/out",
		SaveURLPostParam: "data",
		Cert:             DemoCertBase64,
		BioSigns: []model.BioSign{
			{
				Signer:         model.SignerInfo{Name: "Astrid", Surname1: "Idoate", Surname2: "Gil", ID: "12345678Z"},
				HTML:           "<html><body><h1>HOLA</h1></body></html>",
				AuxiliaryAsset: []byte{0xca, 0xfe},
				SignatureArea:  model.Rect{X: 10, Y: 10, Width: 100, Height: 100},
				SecondaryArea:  model.Rect{X: 50, Y: 30, Width: 200, Height: 75},
			},
			{
				Signer:        model.SignerInfo{Name: "Pau", Surname1: "Escrich", ID: "47824166J"},
				HTML:          "<p>Second signer</p>",
				SignatureArea: model.Rect{X: 300, Y: 10, Width: 100, Height: 100},
				SecondaryArea: model.Rect{X: 300, Y: 30, Width: 200, Height: 75},
			},
		},
		CompleteWithCryptoSign: true,
		CompletionParams:       map[string]string{"key": "value", model.ParamSignReason: "approval"},
	}
}

// MinimalTaskParams returns parameters with every optional field absent.
func MinimalTaskParams() model.SignTaskParams {
	return model.SignTaskParams{
		RetrieveURL: "https://example.org/in.pdf",
		SaveURL:     "https://example.org/out",
	}
}

// ExampleTaskParams is the end-to-end example: one signer, completion with {"key":"value"}.
func ExampleTaskParams() model.SignTaskParams {
	return model.SignTaskParams{
		RetrieveURL: "https://example.org/in.pdf",
		SaveURL:     "https://example.org/out",
		BioSigns: []model.BioSign{{
			Signer:        model.SignerInfo{Name: "Astrid", Surname1: "Idoate", Surname2: "Gil", ID: "12345678Z"},
			HTML:          "<html><body><h1>HOLA</h1></body></html>",
			SignatureArea: model.Rect{X: 10, Y: 10, Width: 100, Height: 100},
			SecondaryArea: model.Rect{X: 50, Y: 30, Width: 200, Height: 75},
		}},
		CompleteWithCryptoSign: true,
		CompletionParams:       map[string]string{"key": "value"},
	}
}

// ProducerTaskParams mirrors the descriptor a task producer emits for its own
// smoke test, including a policy OID that is syntactically valid but cannot
// be DER encoded.
func ProducerTaskParams() model.SignTaskParams {
	return model.SignTaskParams{
		TSA: &model.TSAParams{
			Required:  true,
			PolicyOID: "4.3.2.1",
			URI:       "http://kaka.ka",
			User:      "user",
			Password:  "password",
			Extensions: []model.TSAExtension{
				{OID: "1.2.3.4", Value: []byte{0xff, 0xfa}},
			},
			DigestAlgorithm:  "SHA-512",
			SigningMaterial:  []byte{0x00, 0x01, 0x02, 0x03},
			MaterialPassword: "p12password",
		},
		RetrieveURL:      "http://www.google.com/",
		SaveURL:          "http://www.ibm.es",
		SaveURLPostParam: "data",
		Cert:             DemoCertBase64,
		BioSigns: []model.BioSign{{
			Signer:        model.SignerInfo{Name: "Astrid", Surname1: "Idoate", Surname2: "Gil", ID: "12345678Z"},
			HTML:          "<html><body><h1>HOLA</h1></body></html>",
			SignatureArea: model.Rect{X: 10, Y: 10, Width: 100, Height: 100},
			SecondaryArea: model.Rect{X: 50, Y: 30, Width: 200, Height: 75},
		}},
		CompleteWithCryptoSign: true,
		CompletionParams:       map[string]string{"clave": "valor"},
	}
}
