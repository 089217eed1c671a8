// Package app wires the command-line front end: where tasks come from, how
// they are printed and where run history is kept.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vocdoni/gofirma/biosign/internal/codec"
	"github.com/vocdoni/gofirma/biosign/internal/model"
	"github.com/vocdoni/gofirma/biosign/internal/net"
	"github.com/vocdoni/gofirma/biosign/internal/pipeline"
	"github.com/vocdoni/gofirma/biosign/internal/storage"
)

// Output formats accepted by Emit.
const (
	EmitSummary = "summary"
	EmitXML     = "xml"
	EmitBase64  = "base64"
)

type App struct {
	DataDir     string
	AuditLogger *storage.AuditLogger
	Stdin       io.Reader
}

// DefaultDataDir is ~/.biosign.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".biosign"), nil
}

func NewApp(dataDir string) (*App, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create app data dir: %w", err)
	}
	logger, err := storage.NewAuditLogger(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit logger: %w", err)
	}
	return &App{DataDir: dataDir, AuditLogger: logger, Stdin: os.Stdin}, nil
}

// NewRunner builds a pipeline runner that records its runs in the app's
// audit log, so they show up in History. Capture and composition are
// supplied by the embedding program.
func (a *App) NewRunner(capturer pipeline.Capturer, compositor pipeline.Compositor, opts ...pipeline.Option) (*pipeline.Runner, error) {
	opts = append([]pipeline.Option{pipeline.WithAuditLogger(a.AuditLogger)}, opts...)
	return pipeline.NewRunner(pipeline.DefaultConfig(), capturer, compositor, opts...)
}

// LoadTask reads a task from "-" (stdin), an http(s) URL or a file path.
func (a *App) LoadTask(ctx context.Context, source string) (*model.SignTask, error) {
	switch {
	case source == "":
		return nil, fmt.Errorf("%w: no task source given", model.ErrInvalidArgument)
	case source == "-":
		raw, err := io.ReadAll(a.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return codec.Decode(raw)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		task, _, err := net.FetchTask(ctx, source)
		return task, err
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return codec.Decode(raw)
}

// Emit writes task to w in the given format.
func Emit(w io.Writer, task *model.SignTask, format string) error {
	switch format {
	case EmitSummary, "":
		_, err := io.WriteString(w, task.String())
		return err
	case EmitXML:
		raw, err := codec.Encode(task)
		if err != nil {
			return err
		}
		_, err = w.Write(raw)
		return err
	case EmitBase64:
		s, err := codec.EncodeBase64(task)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, s)
		return err
	}
	return fmt.Errorf("%w: unknown output format %q", model.ErrInvalidArgument, format)
}

// History returns the recorded pipeline runs, oldest first.
func (a *App) History() ([]storage.AuditEntry, error) {
	return a.AuditLogger.ReadAll()
}
