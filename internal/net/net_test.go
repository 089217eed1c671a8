package net

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vocdoni/gofirma/biosign/internal/codec"
	"github.com/vocdoni/gofirma/biosign/internal/model"
	"github.com/vocdoni/gofirma/biosign/internal/testutil"
)

func TestFetchTask(t *testing.T) {
	task, err := model.NewSignTask(testutil.ExampleTaskParams())
	if err != nil {
		t.Fatalf("NewSignTask: %v", err)
	}
	encoded, err := codec.EncodeBase64(task)
	if err != nil {
		t.Fatalf("EncodeBase64: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, encoded)
	}))
	defer srv.Close()

	got, raw, err := FetchTask(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchTask: %v", err)
	}
	if string(raw) != encoded {
		t.Fatal("raw body not returned")
	}
	if !got.Equal(task) {
		t.Fatal("fetched task differs from served task")
	}
}

func TestFetchTaskInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<signTask><retrieveUrl>")
	}))
	defer srv.Close()

	if _, _, err := FetchTask(context.Background(), srv.URL); !errors.Is(err, model.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestFetchDocumentStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := FetchDocument(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestSubmitMultipart(t *testing.T) {
	var fields map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields = map[string]string{}
		for name, files := range r.MultipartForm.File {
			f, _ := files[0].Open()
			b, _ := io.ReadAll(f)
			f.Close()
			fields[name] = string(b)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(model.SubmitReceipt{Status: "ok", ReceiptID: "r-1"})
	}))
	defer srv.Close()

	receipt, err := Submit(context.Background(), srv.URL, &Upload{
		Field:     "pdf",
		Document:  []byte("%PDF"),
		Signature: []byte("sig"),
		Manifest:  []byte(`{"version":"1"}`),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.ReceiptID != "r-1" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if fields["pdf"] != "%PDF" || fields[FieldSignature] != "sig" || fields[FieldManifest] == "" {
		t.Fatalf("unexpected parts %v", fields)
	}
	if _, ok := fields[FieldTimestamp]; ok {
		t.Fatal("empty timestamp part must be omitted")
	}
}

func TestSubmitPlainTextReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile(DefaultDocumentField); err != nil {
			http.Error(w, "missing document", http.StatusBadRequest)
			return
		}
		io.WriteString(w, "OK\n")
	}))
	defer srv.Close()

	receipt, err := Submit(context.Background(), srv.URL, &Upload{Document: []byte("%PDF")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.Status != "OK" {
		t.Fatalf("unexpected status %q", receipt.Status)
	}
}

func TestSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Submit(context.Background(), srv.URL, &Upload{Document: []byte("%PDF")})
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected rejection with body, got %v", err)
	}
}
