package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
)

func init() {
	config.RegisterOutputKind("single_file", func(cfg map[string]any) (pipeline.Output, error) {
		path, _ := cfg["output_file"].(string)
		if path == "" {
			return nil, fmt.Errorf("single_file: config.output_file is required")
		}
		return NewSingleFileOutput(path, separatorOr(cfg, defaultSeparator))
	})
}

// SingleFileOutput appends every document's rendered JSON to one file,
// joined by a separator, mirroring SingleFileOutput.from_config with an
// explicit output_file path.
type SingleFileOutput struct {
	mu        sync.Mutex
	f         *os.File
	separator string
	index     int
}

// NewSingleFileOutput opens path for writing (truncating any existing
// content, matching the original's "w" mode on the first write).
func NewSingleFileOutput(path, separator string) (*SingleFileOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("single_file: %w", err)
	}
	return &SingleFileOutput{f: f, separator: separator}, nil
}

func (o *SingleFileOutput) Name() string { return "single_file:" + o.f.Name() }

func (o *SingleFileOutput) Write(_ context.Context, _ *doctree.Document, rendered any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rendered document: %w", err)
	}
	if o.index > 0 {
		if _, err := o.f.WriteString(o.separator); err != nil {
			return err
		}
	}
	if _, err := o.f.Write(b); err != nil {
		return err
	}
	o.index++
	return nil
}

func (o *SingleFileOutput) Close() error { return o.f.Close() }
