package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/google/uuid"
)

// Orchestrator runs a Pipeline's documents with bounded concurrency: sources
// are gathered one after another first, then per-document processing
// happens across a worker pool,
// since spec §5 calls documents from different sources "embarrassingly
// parallel" as long as transformations don't share mutable state across
// them — which they don't, each document owns its own tree.
type Orchestrator struct {
	Workers int
	Log     *slog.Logger

	// Runs tracks run outcomes for later polling (e.g. by the HTTP API).
	// Optional: nil means don't track.
	Runs *RunStore
}

// NewOrchestrator returns an Orchestrator with a sane worker count.
func NewOrchestrator(workers int, log *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = 1
	}
	return &Orchestrator{Workers: workers, Log: log}
}

// Run gathers every source's documents, then fans them out across a bounded
// pool of goroutines, each running the pipeline's steps and outputs against
// one document. A run gets its own ID for log correlation, mirroring the
// teacher's job_id-scoped logger.
func (o *Orchestrator) Run(ctx context.Context, pl *Pipeline) (*Result, error) {
	_, res, err := o.RunTracked(ctx, pl)
	return res, err
}

// RunAsync starts a run in a background goroutine and returns its run ID
// immediately, so an HTTP handler can hand it back to the caller as a
// poll token (spec §6.4 wants output delivery to stay non-blocking for the
// submitter). Requires o.Runs, since an async run with nowhere to record
// its outcome can't be polled.
func (o *Orchestrator) RunAsync(ctx context.Context, pl *Pipeline) (string, error) {
	if o.Runs == nil {
		return "", fmt.Errorf("orchestrator: RunAsync requires a RunStore")
	}
	runID := uuid.NewString()
	o.Runs.put(newRunRecord(runID))
	go func() {
		if _, _, err := o.runTrackedWithID(ctx, pl, runID); err != nil {
			o.Log.With("run_id", runID).Error("async run failed", "error", err)
		}
	}()
	return runID, nil
}

// RunTracked is Run, plus the run ID assigned for this invocation.
func (o *Orchestrator) RunTracked(ctx context.Context, pl *Pipeline) (string, *Result, error) {
	return o.runTrackedWithID(ctx, pl, uuid.NewString())
}

func (o *Orchestrator) runTrackedWithID(ctx context.Context, pl *Pipeline, runID string) (string, *Result, error) {
	log := o.Log.With("run_id", runID)

	var record *RunRecord
	if o.Runs != nil {
		record = o.Runs.getOrCreate(runID)
		record.mu.Lock()
		record.Status = RunRunning
		record.mu.Unlock()
	}

	docs, err := o.gatherWithRetry(ctx, pl.Sources, log)
	if err != nil {
		if record != nil {
			record.finish(nil, err)
		}
		return runID, nil, err
	}
	log.Info("gathered documents", "count", len(docs))

	results := make([]DocumentResult, len(docs))
	sem := make(chan struct{}, o.Workers)
	var wg sync.WaitGroup

	for i, doc := range docs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, doc *doctree.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			docLog := log.With("doc_index", i)
			res := runDocument(ctx, pl, doc)
			if res.Err != nil {
				docLog.Error("document failed", "error", res.Err)
			} else {
				docLog.Info("document completed")
			}
			results[i] = res
		}(i, doc)
	}
	wg.Wait()

	for _, out := range pl.Outputs {
		if err := out.Close(); err != nil {
			log.Warn("output close failed", "output", out.Name(), "error", err)
		}
	}

	result := &Result{Documents: results}
	if record != nil {
		record.finish(result, nil)
	}
	if pl.FatalOnDocumentError {
		for _, d := range result.Documents {
			if d.Err != nil {
				return runID, result, d.Err
			}
		}
	}
	return runID, result, nil
}

// gatherWithRetry runs sources with a jittered backoff on retryable
// SourceErrors, matching the teacher's extraction-retry loop in worker.go
// but guarding I/O instead of the Claude API.
func (o *Orchestrator) gatherWithRetry(ctx context.Context, sources []Source, log *slog.Logger) ([]*doctree.Document, error) {
	var all []*doctree.Document
	for _, src := range sources {
		var docs []*doctree.Document
		var lastErr error
		for attempt := range MaxRetries {
			docs, lastErr = src.Documents(ctx)
			if lastErr == nil || !IsRetryable(lastErr) {
				break
			}
			log.Warn("retryable source error", "source", src.Name(), "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(Backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if lastErr != nil {
			return nil, lastErr
		}
		all = append(all, docs...)
	}
	return all, nil
}
