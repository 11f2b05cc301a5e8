// Package output implements the pipeline's sink kinds (spec §6.4), adapted
// from the original's FileOutputBase family in doc_scraper/pipeline/sinks.py:
// each kind converts one document's rendered JSON to a string and appends it
// somewhere, tracking an output_index across calls. Every kind
// self-registers with internal/config via RegisterOutputKind in its own
// init(), the way internal/sources and internal/htmlsource register their
// source kinds.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
)

func init() {
	config.RegisterOutputKind("stdout", func(cfg map[string]any) (pipeline.Output, error) {
		return NewStdoutOutput(separatorOr(cfg, defaultSeparator)), nil
	})
}

const defaultSeparator = "\n---\n"

func separatorOr(cfg map[string]any, fallback string) string {
	if v, ok := cfg["separator"].(string); ok && v != "" {
		return v
	}
	return fallback
}

// StdoutOutput writes every document's rendered JSON to a writer (stdout by
// default), joined by a separator — the Go equivalent of SingleFileOutput
// constructed with no output_file, which defaults to sys.stdout.
type StdoutOutput struct {
	mu        sync.Mutex
	w         io.Writer
	separator string
	index     int
}

// NewStdoutOutput constructs a StdoutOutput writing to os.Stdout.
func NewStdoutOutput(separator string) *StdoutOutput {
	return &StdoutOutput{w: os.Stdout, separator: separator}
}

func (o *StdoutOutput) Name() string { return "stdout" }

func (o *StdoutOutput) Write(_ context.Context, _ *doctree.Document, rendered any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rendered document: %w", err)
	}
	if o.index > 0 {
		if _, err := io.WriteString(o.w, o.separator); err != nil {
			return err
		}
	}
	if _, err := o.w.Write(b); err != nil {
		return err
	}
	o.index++
	return nil
}

func (o *StdoutOutput) Close() error { return nil }
