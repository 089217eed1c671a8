package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/vocdoni/gofirma/biosign/internal/app"
	"github.com/vocdoni/gofirma/biosign/internal/model"
)

func main() {
	var (
		source  string
		emit    string
		dataDir string
		history bool
		verbose bool
	)
	flag.StringVar(&source, "task", "", "Sign task to load: file path, http(s) URL or - for stdin")
	flag.StringVar(&emit, "emit", app.EmitSummary, "Output format: summary, xml or base64")
	flag.StringVar(&dataDir, "data", "", "Data directory (default ~/.biosign)")
	flag.BoolVar(&history, "history", false, "Print the pipeline runs recorded in the data directory by programs embedding app.NewRunner, then exit")
	flag.BoolVar(&verbose, "v", false, "Print debug logs")
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	if !verbose {
		log.SetOutput(io.Discard)
	}

	if dataDir == "" {
		var err error
		if dataDir, err = app.DefaultDataDir(); err != nil {
			fatal(err)
		}
	}
	a, err := app.NewApp(dataDir)
	if err != nil {
		fatal(fmt.Errorf("failed to initialize app: %w", err))
	}

	if history {
		entries, err := a.History()
		if err != nil {
			fatal(err)
		}
		for _, e := range entries {
			fmt.Printf("%s %s %s -> %s bioSigns=%d status=%s %s\n", e.Timestamp, e.RunID, e.RetrieveHost, e.SaveHost, e.BioSigns, e.Status, e.Error)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	task, err := a.LoadTask(ctx, source)
	if err != nil {
		fatal(err)
	}
	if err := app.Emit(os.Stdout, task, emit); err != nil {
		fatal(err)
	}
}

// fatal prints err with its category and exits with a distinct status.
func fatal(err error) {
	code := 1
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		code = 2
	case errors.Is(err, model.ErrMalformedInput):
		code = 3
	case errors.Is(err, model.ErrSchemaViolation):
		code = 4
	}
	fmt.Fprintf(os.Stderr, "biosign: %v\n", err)
	os.Exit(code)
}
