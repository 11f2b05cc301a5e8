// Package pipeline implements the driver (spec §4.7): run sources in
// declared order, apply every transformation to each resulting document in
// order, then every output in order, isolating one document's failure from
// the rest of the stream.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/docweave/docweave/internal/doctree"
)

// Source yields the documents one configured source contributes to the
// stream. Sources may block on I/O (spec §5: "only source acquisition and
// output emission may block").
type Source interface {
	Name() string
	Documents(ctx context.Context) ([]*doctree.Document, error)
}

// Output receives one document's rendered JSON. Outputs are applied to
// every document in declared order (spec §5).
type Output interface {
	Name() string
	Write(ctx context.Context, doc *doctree.Document, rendered any) error
	Close() error
}

// Step is one configured transformation, either a tree-mutating pass or the
// extraction stage. Apply mutates doc in place; when the step is an
// extraction step it additionally returns the rendered JSON value and
// produced=true.
type Step interface {
	Name() string
	Apply(ctx context.Context, doc *doctree.Document) (rendered any, produced bool, err error)
}

// Pipeline is a bound configuration document (spec §6.1): an ordered list
// of sources, transformations and outputs ready to run.
type Pipeline struct {
	Sources []Source
	Steps   []Step
	Outputs []Output

	// FatalOnDocumentError makes a per-document failure abort the whole
	// run instead of being reported and skipped (spec §7 category 6:
	// "reported per-document; pipeline continues unless configured
	// fatal").
	FatalOnDocumentError bool

	// Metrics is optional; when set, runDocument records step timing and
	// outcome counters against it.
	Metrics *Metrics
}

// DocumentResult is the outcome of running every step and output against
// one document.
type DocumentResult struct {
	Document *doctree.Document
	Rendered any
	Err      error
}

// Result aggregates the outcome of a full pipeline run.
type Result struct {
	Documents []DocumentResult
}

// Succeeded reports how many documents completed without error.
func (r Result) Succeeded() int {
	n := 0
	for _, d := range r.Documents {
		if d.Err == nil {
			n++
		}
	}
	return n
}

// Failed reports how many documents errored.
func (r Result) Failed() int {
	return len(r.Documents) - r.Succeeded()
}

// SourceError reports an I/O failure acquiring documents from a source
// (spec §7, category 6). Retryable when the underlying cause is transient.
type SourceError struct {
	Source    string
	Msg       string
	Retryable bool
}

func (e *SourceError) Error() string { return fmt.Sprintf("source %s: %s", e.Source, e.Msg) }

// OutputError reports an I/O failure emitting a document (spec §7, category
// 6).
type OutputError struct {
	Output string
	Msg    string
}

func (e *OutputError) Error() string { return fmt.Sprintf("output %s: %s", e.Output, e.Msg) }

// gatherDocuments runs every source in declared order, concatenating their
// documents into one stream (spec §4.7).
func gatherDocuments(ctx context.Context, sources []Source) ([]*doctree.Document, error) {
	var all []*doctree.Document
	for _, src := range sources {
		docs, err := src.Documents(ctx)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src.Name(), err)
		}
		all = append(all, docs...)
	}
	return all, nil
}

// runDocument applies every step, then every output, to one document.
// A step or output error is wrapped and returned without touching the rest
// of the stream — that isolation is the caller's job.
func runDocument(ctx context.Context, pl *Pipeline, doc *doctree.Document) DocumentResult {
	var rendered any
	for _, step := range pl.Steps {
		start := time.Now()
		out, produced, err := step.Apply(ctx, doc)
		if pl.Metrics != nil {
			pl.Metrics.StepDuration.WithLabelValues(step.Name()).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			if pl.Metrics != nil {
				pl.Metrics.DocumentErrors.WithLabelValues(step.Name()).Inc()
				pl.Metrics.DocumentsProcessed.WithLabelValues("error").Inc()
			}
			return DocumentResult{Document: doc, Err: fmt.Errorf("step %q: %w", step.Name(), err)}
		}
		if produced {
			rendered = out
		}
	}
	if rendered == nil {
		rendered = doctree.ToJSON(doc)
	}
	if pl.Metrics != nil {
		if items, ok := rendered.([]any); ok {
			pl.Metrics.ExtractedItems.Add(float64(len(items)))
		} else if rendered != nil {
			pl.Metrics.ExtractedItems.Inc()
		}
	}
	for _, out := range pl.Outputs {
		if err := out.Write(ctx, doc, rendered); err != nil {
			if pl.Metrics != nil {
				pl.Metrics.DocumentErrors.WithLabelValues(out.Name()).Inc()
				pl.Metrics.DocumentsProcessed.WithLabelValues("error").Inc()
			}
			return DocumentResult{Document: doc, Rendered: rendered, Err: fmt.Errorf("output %q: %w", out.Name(), err)}
		}
	}
	if pl.Metrics != nil {
		pl.Metrics.DocumentsProcessed.WithLabelValues("success").Inc()
	}
	return DocumentResult{Document: doc, Rendered: rendered}
}
