package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/vocdoni/gofirma/biosign/internal/model"
)

// DefaultDocumentField is the form field used when a task names none.
const DefaultDocumentField = "data"

// Multipart part names other than the document field.
const (
	FieldSignature = "signature"
	FieldTimestamp = "timestamp"
	FieldManifest  = "manifest"
)

// Upload is the result of a pipeline run as posted to the save URL.
type Upload struct {
	Field     string // document field; DefaultDocumentField if empty
	Document  []byte
	Signature []byte // detached CAdES, optional
	Timestamp []byte // RFC 3161 token, optional
	Manifest  []byte // canonical JSON, optional
}

// DocumentField returns the effective form field of the document part.
func (u *Upload) DocumentField() string {
	if u.Field == "" {
		return DefaultDocumentField
	}
	return u.Field
}

// Submit posts an upload as multipart/form-data. A JSON reply is decoded as
// a receipt; any other successful reply is reported with its text as status.
func Submit(ctx context.Context, saveURL string, u *Upload) (*model.SubmitReceipt, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	parts := []struct {
		name string
		file string
		data []byte
	}{
		{u.DocumentField(), "document.pdf", u.Document},
		{FieldSignature, "signature.p7s", u.Signature},
		{FieldTimestamp, "timestamp.tsr", u.Timestamp},
		{FieldManifest, "manifest.json", u.Manifest},
	}
	for _, p := range parts {
		if len(p.data) == 0 {
			continue
		}
		w, err := mw.CreateFormFile(p.name, p.file)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", p.name, err)
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", p.name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, saveURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Printf("DEBUG: Uploading %d bytes to %s (field %s)", buf.Len(), saveURL, u.DocumentField())
	client := &http.Client{Timeout: 60 * time.Second}
	httpResp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer httpResp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		if len(body) > 0 {
			return nil, fmt.Errorf("unexpected status code: %d: %s", httpResp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("unexpected status code: %d", httpResp.StatusCode)
	}

	if mt, _, _ := mime.ParseMediaType(httpResp.Header.Get("Content-Type")); mt == "application/json" {
		var receipt model.SubmitReceipt
		if err := json.Unmarshal(body, &receipt); err != nil {
			return nil, fmt.Errorf("failed to decode receipt: %w", err)
		}
		return &receipt, nil
	}
	return &model.SubmitReceipt{
		Status:     strings.TrimSpace(string(body)),
		ReceivedAt: time.Now().Format(time.RFC3339),
	}, nil
}
