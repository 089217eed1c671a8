// Package storage keeps the local record of pipeline runs.
package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// AuditEntry is one line of the audit log. It never carries biometric data,
// credentials or document content.
type AuditEntry struct {
	Timestamp      string `json:"timestamp"`
	RunID          string `json:"runId"`
	RetrieveHost   string `json:"retrieveHost"`
	SaveHost       string `json:"saveHost"`
	BioSigns       int    `json:"bioSigns"`
	Encrypted      bool   `json:"encrypted"`
	Timestamped    bool   `json:"timestamped"`
	CryptoSigned   bool   `json:"cryptoSigned"`
	ManifestSHA256 string `json:"manifestSha256,omitempty"`
	Stage          string `json:"stage,omitempty"` // failing stage
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	ReceiptID      string `json:"receiptId,omitempty"`
}

type AuditLogger struct {
	mu       sync.Mutex
	filePath string
}

func NewAuditLogger(dir string) (*AuditLogger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &AuditLogger{
		filePath: filepath.Join(dir, "audit.jsonl"),
	}, nil
}

// Path returns the audit file location.
func (l *AuditLogger) Path() string {
	return l.filePath
}

func (l *AuditLogger) Log(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Timestamp = time.Now().Format(time.RFC3339)
	log.Printf("DEBUG: Audit log entry: RunID=%s Status=%s", entry.RunID, entry.Status)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(l.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// ReadAll returns every decodable entry in file order. A truncated or
// corrupt line ends the read; entries before it are kept.
func (l *AuditLogger) ReadAll() ([]AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []AuditEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	defer f.Close()

	entries := []AuditEntry{}
	dec := json.NewDecoder(f)
	for dec.More() {
		var entry AuditEntry
		if err := dec.Decode(&entry); err != nil {
			log.Printf("WARN: Audit log %s is corrupt after %d entries: %v", l.filePath, len(entries), err)
			break
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
