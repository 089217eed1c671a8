package net

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/vocdoni/gofirma/biosign/internal/codec"
	"github.com/vocdoni/gofirma/biosign/internal/model"
)

const (
	maxTaskSize     = 4 << 20
	maxDocumentSize = 64 << 20
)

var fetchClient = &http.Client{Timeout: 10 * time.Second}

// FetchTask retrieves an encoded sign task from a URL and decodes it. The raw
// body is returned alongside the task.
func FetchTask(ctx context.Context, url string) (*model.SignTask, []byte, error) {
	log.Printf("DEBUG: Fetching sign task from %s", url)
	raw, err := get(ctx, url, maxTaskSize)
	if err != nil {
		return nil, nil, err
	}
	task, err := codec.Decode(raw)
	if err != nil {
		log.Printf("DEBUG: Sign task decode failed: %v", err)
		return nil, raw, err
	}
	return task, raw, nil
}

// FetchDocument downloads the PDF named by a task's retrieve URL.
func FetchDocument(ctx context.Context, url string) ([]byte, error) {
	log.Printf("DEBUG: Fetching document from %s", url)
	return get(ctx, url, maxDocumentSize)
}

func get(ctx context.Context, url string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		log.Printf("DEBUG: Fetch failed: %v", err)
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("DEBUG: HTTP Response Status: %s", resp.Status)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	log.Printf("DEBUG: Received %d bytes", len(body))
	return body, nil
}
