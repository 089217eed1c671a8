package model

import (
	"reflect"
	"testing"
)

func TestCompletionParamsUnknownKeys(t *testing.T) {
	c := NewCompletionParams(map[string]string{
		ParamSignReason:       "approval",
		"polcyIdentifier":     "1.2.3",
		ParamPolicyIdentifier: "1.2.3",
		"clave":               "valor",
	})
	want := []string{"clave", "polcyIdentifier"}
	if got := c.UnknownKeys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("UnknownKeys() = %v, want %v", got, want)
	}
}

func TestCompletionParamsPolicy(t *testing.T) {
	if p := NewCompletionParams(nil).Policy(); p != nil {
		t.Fatalf("expected no policy, got %+v", p)
	}

	c := NewCompletionParams(map[string]string{
		ParamPolicyIdentifier:              "2.16.724.1.3.1.1.2.1.9",
		ParamPolicyIdentifierHash:          "G7roucf600+f03r/o0bAOQ6WAs0=",
		ParamPolicyIdentifierHashAlgorithm: "SHA1",
		ParamPolicyQualifier:               "https://sede.060.gob.es/politica_de_firma_anexo_1.pdf",
	})
	p := c.Policy()
	if p == nil {
		t.Fatal("expected a policy")
	}
	if p.OID != "2.16.724.1.3.1.1.2.1.9" || p.HashAlg != "SHA1" || p.URI == "" || p.Hash == "" {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestCompletionParamsZeroValue(t *testing.T) {
	var c CompletionParams
	if c.Len() != 0 || c.Map() == nil || c.String() != "{}" {
		t.Fatal("zero value must behave as empty params")
	}
	if !c.Equal(NewCompletionParams(map[string]string{})) {
		t.Fatal("zero value must equal empty params")
	}
}

func TestIsOID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1.2.3.4", true},
		{"2.16.724.1.3.1.1.2.1.9", true},
		{"0.0", true},
		{"4.3.2.1", true},
		{"1.02", true},
		{"1", false},
		{"1.-2", false},
		{"1.2a", false},
		{"1..2", false},
		{"1.2.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsOID(tt.in); got != tt.want {
			t.Errorf("IsOID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
