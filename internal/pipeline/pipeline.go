// Package pipeline is the reference consumer of sign tasks: it fetches the
// document, captures and places every handwritten signature, optionally
// timestamps and countersigns the result, and uploads it.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/url"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/vocdoni/gofirma/biosign/internal/canon"
	"github.com/vocdoni/gofirma/biosign/internal/crypto/cades"
	"github.com/vocdoni/gofirma/biosign/internal/crypto/certs"
	"github.com/vocdoni/gofirma/biosign/internal/crypto/envelope"
	"github.com/vocdoni/gofirma/biosign/internal/crypto/p12"
	"github.com/vocdoni/gofirma/biosign/internal/metrics"
	"github.com/vocdoni/gofirma/biosign/internal/model"
	"github.com/vocdoni/gofirma/biosign/internal/net"
	"github.com/vocdoni/gofirma/biosign/internal/storage"
	"github.com/vocdoni/gofirma/biosign/internal/tsa"
)

// Stage names, used in errors, audit entries and metrics.
const (
	StageFetch     = "fetch"
	StageCapture   = "capture"
	StageSeal      = "seal"
	StageComposite = "composite"
	StageTimestamp = "timestamp"
	StageSign      = "sign"
	StageManifest  = "manifest"
	StageUpload    = "upload"
)

const manifestVersion = "1.0"

var ErrNoOperator = errors.New("completion signature requested but no operator identity is configured")

// Capture is what a signature pad returns for one BioSign.
type Capture struct {
	BiometricData []byte // raw stroke data
	Image         []byte // rendered signature
}

// Capturer drives the signature device.
type Capturer interface {
	Capture(ctx context.Context, index int, sign model.BioSign) (*Capture, error)
}

// Compositor stamps a captured signature onto the document. sealed is the
// enveloped biometric data, or nil when the task has no certificate.
type Compositor interface {
	Composite(ctx context.Context, document []byte, sign model.BioSign, c *Capture, sealed []byte) ([]byte, error)
}

type Config struct {
	App      string
	Version  string
	AuditDir string // empty disables the audit log
}

func DefaultConfig() Config {
	return Config{App: "biosign", Version: "dev"}
}

// Runner executes tasks. It is safe for concurrent use if its Capturer and
// Compositor are.
type Runner struct {
	cfg        Config
	capturer   Capturer
	compositor Compositor
	operator   *p12.Credential
	audit      *storage.AuditLogger
	tsaOpts    []tsa.Option
}

type Option func(*Runner)

// WithOperator sets the identity used for the completion signature.
func WithOperator(cred *p12.Credential) Option {
	return func(r *Runner) { r.operator = cred }
}

// WithAuditLogger records runs in l instead of a logger opened from
// Config.AuditDir.
func WithAuditLogger(l *storage.AuditLogger) Option {
	return func(r *Runner) { r.audit = l }
}

// WithTSAOptions is passed to every TSA client the runner builds.
func WithTSAOptions(opts ...tsa.Option) Option {
	return func(r *Runner) { r.tsaOpts = append(r.tsaOpts, opts...) }
}

func NewRunner(cfg Config, capturer Capturer, compositor Compositor, opts ...Option) (*Runner, error) {
	if capturer == nil || compositor == nil {
		return nil, fmt.Errorf("%w: capturer and compositor are required", model.ErrInvalidArgument)
	}
	r := &Runner{cfg: cfg, capturer: capturer, compositor: compositor}
	if cfg.AuditDir != "" {
		audit, err := storage.NewAuditLogger(cfg.AuditDir)
		if err != nil {
			return nil, err
		}
		r.audit = audit
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Result is the outcome of a successful run.
type Result struct {
	RunID          string
	Document       []byte
	Sealed         [][]byte // one per BioSign when the task carries a certificate
	Timestamp      []byte   // DER timestamp token
	Signature      []byte   // detached CAdES
	Manifest       model.UploadManifest
	ManifestSHA256 string
	Receipt        *model.SubmitReceipt
}

// Run executes every stage of task in order. The first failing stage aborts
// the run; its error is wrapped with the stage name.
func (r *Runner) Run(ctx context.Context, task *model.SignTask) (res *Result, err error) {
	if task == nil {
		return nil, fmt.Errorf("%w: nil sign task", model.ErrInvalidArgument)
	}
	res = &Result{RunID: uuid.NewString()}
	entry := storage.AuditEntry{
		RunID:        res.RunID,
		RetrieveHost: host(task.RetrieveURL()),
		SaveHost:     host(task.SaveURL()),
		BioSigns:     len(task.BioSigns()),
	}
	log.Printf("DEBUG: Run %s started: %d biometric signatures", res.RunID, entry.BioSigns)
	defer func() {
		entry.Encrypted = len(res.Sealed) > 0
		entry.Timestamped = len(res.Timestamp) > 0
		entry.CryptoSigned = len(res.Signature) > 0
		entry.ManifestSHA256 = res.ManifestSHA256
		entry.Status = storage.StatusCompleted
		if err != nil {
			entry.Status = storage.StatusFailed
			entry.Error = err.Error()
			log.Printf("ERROR: Run %s failed: %v", res.RunID, err)
			res = nil
		} else if res.Receipt != nil {
			entry.ReceiptID = res.Receipt.ReceiptID
		}
		if r.audit != nil {
			if aerr := r.audit.Log(entry); aerr != nil {
				log.Printf("WARN: Failed to write audit entry: %v", aerr)
			}
		}
	}()

	if err = r.stage(StageFetch, &entry, func() (e error) {
		res.Document, e = net.FetchDocument(ctx, task.RetrieveURL())
		return e
	}); err != nil {
		return res, err
	}

	var sealer *envelope.Sealer
	if task.HasCert() {
		if err = r.stage(StageSeal, &entry, func() (e error) {
			sealer, e = envelope.NewSealer(task.Cert())
			return e
		}); err != nil {
			return res, err
		}
	}

	for i, sign := range task.BioSigns() {
		if err = ctx.Err(); err != nil {
			return res, err
		}
		if err = r.placeSignature(ctx, &entry, res, i, sign, sealer); err != nil {
			return res, err
		}
	}

	if p := task.TSAParams(); p != nil && p.Required {
		if err = r.stage(StageTimestamp, &entry, func() error {
			client, e := tsa.NewClient(*p, r.tsaOpts...)
			if e != nil {
				return e
			}
			ts, e := client.Timestamp(ctx, res.Document)
			if e != nil {
				return e
			}
			res.Timestamp = ts.RawToken
			return nil
		}); err != nil {
			return res, err
		}
	}

	if task.CompleteWithCryptoSign() {
		if err = r.stage(StageSign, &entry, func() (e error) {
			if r.operator == nil {
				return ErrNoOperator
			}
			opts := cades.OptsFromCompletion(task.CompletionParams())
			res.Signature, e = cades.SignDetached(ctx, r.operator.Signer, r.operator.Cert, r.operator.Chain, res.Document, opts)
			return e
		}); err != nil {
			return res, err
		}
	}

	var manifest []byte
	if err = r.stage(StageManifest, &entry, func() (e error) {
		res.Manifest = r.manifest(task, res)
		if manifest, e = canon.Encode(res.Manifest); e != nil {
			return e
		}
		res.ManifestSHA256, e = canon.SHA256(res.Manifest)
		return e
	}); err != nil {
		return res, err
	}

	err = r.stage(StageUpload, &entry, func() (e error) {
		res.Receipt, e = net.Submit(ctx, task.SaveURL(), &net.Upload{
			Field:     task.SaveURLPostParam(),
			Document:  res.Document,
			Signature: res.Signature,
			Timestamp: res.Timestamp,
			Manifest:  manifest,
		})
		return e
	})
	if err != nil {
		return res, err
	}
	log.Printf("DEBUG: Run %s completed (receipt %q)", res.RunID, res.Receipt.ReceiptID)
	return res, nil
}

func (r *Runner) placeSignature(ctx context.Context, entry *storage.AuditEntry, res *Result, i int, sign model.BioSign, sealer *envelope.Sealer) error {
	var capture *Capture
	if err := r.stage(StageCapture, entry, func() (e error) {
		capture, e = r.capturer.Capture(ctx, i, sign)
		if e == nil && capture == nil {
			e = fmt.Errorf("no capture returned for signer %s", sign.Signer.ID)
		}
		return e
	}); err != nil {
		return err
	}

	var sealed []byte
	if sealer != nil {
		if err := r.stage(StageSeal, entry, func() (e error) {
			sealed, e = sealer.Seal(capture.BiometricData)
			return e
		}); err != nil {
			return err
		}
		res.Sealed = append(res.Sealed, sealed)
	}

	return r.stage(StageComposite, entry, func() (e error) {
		res.Document, e = r.compositor.Composite(ctx, res.Document, sign, capture, sealed)
		return e
	})
}

func (r *Runner) stage(name string, entry *storage.AuditEntry, fn func() error) error {
	err := fn()
	metrics.RecordStage(name, err)
	if err != nil {
		entry.Stage = name
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *Runner) manifest(task *model.SignTask, res *Result) model.UploadManifest {
	sum := sha256.Sum256(res.Document)
	m := model.UploadManifest{
		Version:           manifestVersion,
		RunID:             res.RunID,
		CompletedAt:       time.Now().UTC().Format(time.RFC3339),
		DocumentSHA256:    base64.StdEncoding.EncodeToString(sum[:]),
		BioSigns:          []model.SignerInfo{},
		EncryptedPayloads: len(res.Sealed) > 0,
		Timestamped:       len(res.Timestamp) > 0,
		CryptoSigned:      len(res.Signature) > 0,
		Client: model.ClientInfo{
			App:     r.cfg.App,
			Version: r.cfg.Version,
			OS:      runtime.GOOS,
		},
	}
	for _, b := range task.BioSigns() {
		m.BioSigns = append(m.BioSigns, b.Signer)
	}
	if m.CryptoSigned {
		op := certs.SignerInfo(r.operator.Cert)
		m.Operator = &op
	}
	return m
}

func host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
