package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/docweave/docweave/internal/doctree"
)

type fakeSource struct {
	name string
	docs []*doctree.Document
	err  error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Documents(context.Context) ([]*doctree.Document, error) {
	return f.docs, f.err
}

type recordingOutput struct {
	name string

	mu     sync.Mutex
	writes []any
	closed bool
	err    error
}

func (o *recordingOutput) Name() string { return o.name }
func (o *recordingOutput) Write(_ context.Context, _ *doctree.Document, rendered any) error {
	if o.err != nil {
		return o.err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = append(o.writes, rendered)
	return nil
}
func (o *recordingOutput) Close() error {
	o.closed = true
	return nil
}

type funcStep struct {
	name string
	fn   func(*doctree.Document) (any, bool, error)
}

func (s *funcStep) Name() string { return s.name }
func (s *funcStep) Apply(_ context.Context, doc *doctree.Document) (any, bool, error) {
	return s.fn(doc)
}

func docWithText(text string) *doctree.Document {
	doc := doctree.NewDocument()
	doc.Append(doctree.NewTextRun(text))
	return doc
}

func TestOrchestratorRunSucceedsAcrossDocuments(t *testing.T) {
	src := &fakeSource{name: "mem", docs: []*doctree.Document{docWithText("a"), docWithText("b")}}
	out := &recordingOutput{name: "sink"}
	pl := &Pipeline{Sources: []Source{src}, Outputs: []Output{out}}

	o := NewOrchestrator(2, slog.New(slog.DiscardHandler))
	res, err := o.Run(context.Background(), pl)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Succeeded() != 2 || res.Failed() != 0 {
		t.Fatalf("got succeeded=%d failed=%d, want 2/0", res.Succeeded(), res.Failed())
	}
	if !out.closed {
		t.Error("expected output to be closed after the run")
	}
	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.writes) != 2 {
		t.Errorf("got %d writes, want 2", len(out.writes))
	}
}

func TestOrchestratorIsolatesPerDocumentStepFailure(t *testing.T) {
	src := &fakeSource{name: "mem", docs: []*doctree.Document{docWithText("ok"), docWithText("bad")}}
	failing := &funcStep{name: "explode", fn: func(doc *doctree.Document) (any, bool, error) {
		if doctree.AggregatedText(doc) == "bad" {
			return nil, false, fmt.Errorf("boom")
		}
		return nil, false, nil
	}}
	pl := &Pipeline{Sources: []Source{src}, Steps: []Step{failing}}

	o := NewOrchestrator(2, slog.New(slog.DiscardHandler))
	res, err := o.Run(context.Background(), pl)
	if err != nil {
		t.Fatalf("Run() error = %v (fatal not configured)", err)
	}
	if res.Succeeded() != 1 || res.Failed() != 1 {
		t.Fatalf("got succeeded=%d failed=%d, want 1/1", res.Succeeded(), res.Failed())
	}
}

func TestOrchestratorFatalOnDocumentErrorAbortsRun(t *testing.T) {
	src := &fakeSource{name: "mem", docs: []*doctree.Document{docWithText("bad")}}
	failing := &funcStep{name: "explode", fn: func(*doctree.Document) (any, bool, error) {
		return nil, false, fmt.Errorf("boom")
	}}
	pl := &Pipeline{Sources: []Source{src}, Steps: []Step{failing}, FatalOnDocumentError: true}

	o := NewOrchestrator(1, slog.New(slog.DiscardHandler))
	_, err := o.Run(context.Background(), pl)
	if err == nil {
		t.Error("expected FatalOnDocumentError to propagate the document's error")
	}
}

func TestRunDocumentFallsBackToTreeProjectionWhenNoExtractStep(t *testing.T) {
	doc := docWithText("hello")
	pl := &Pipeline{}
	res := runDocument(context.Background(), pl, doc)
	if res.Err != nil {
		t.Fatalf("runDocument() error = %v", res.Err)
	}
	m, ok := res.Rendered.(map[string]any)
	if !ok {
		t.Fatalf("got %#v, want a JSON projection map", res.Rendered)
	}
	if m["type"] != "Document" {
		t.Errorf("got type %v, want Document", m["type"])
	}
	content, ok := m["content"].([]any)
	if !ok || len(content) != 1 {
		t.Fatalf("got content %#v, want one TextRun child", m["content"])
	}
	child := content[0].(map[string]any)
	if child["type"] != "TextRun" || child["text"] != "hello" {
		t.Errorf("got child %#v, want a TextRun with text hello", child)
	}
}

func TestRunStoreTracksOrchestratorRuns(t *testing.T) {
	src := &fakeSource{name: "mem", docs: []*doctree.Document{docWithText("a")}}
	pl := &Pipeline{Sources: []Source{src}}
	store := NewRunStore(0)
	o := NewOrchestrator(1, slog.New(slog.DiscardHandler))
	o.Runs = store

	res, err := o.Run(context.Background(), pl)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	_ = res
	// The run's ID isn't returned directly; find it via the store's single entry.
	store.mu.Lock()
	var id string
	for k := range store.runs {
		id = k
	}
	store.mu.Unlock()
	rec, ok := store.Get(id)
	if !ok {
		t.Fatalf("expected run %q to be tracked", id)
	}
	if rec.Status != RunCompleted {
		t.Errorf("got status %q, want completed", rec.Status)
	}
}

func TestSourceErrorRetryClassification(t *testing.T) {
	retryable := &SourceError{Source: "x", Msg: "timeout", Retryable: true}
	fatal := &SourceError{Source: "x", Msg: "not found", Retryable: false}
	if !IsRetryable(retryable) {
		t.Error("expected retryable SourceError to be retryable")
	}
	if IsRetryable(fatal) {
		t.Error("expected non-retryable SourceError to not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain error")) {
		t.Error("expected a plain error to not be retryable")
	}
}
