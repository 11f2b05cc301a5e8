package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
)

func init() {
	config.RegisterOutputKind("template_path", func(cfg map[string]any) (pipeline.Output, error) {
		tmpl, _ := cfg["output_path_template"].(string)
		if tmpl == "" {
			return nil, fmt.Errorf("template_path: config.output_path_template is required")
		}
		return &TemplatePathOutput{Template: tmpl}, nil
	})
}

// templateVarRe matches one "{name}" placeholder in a path template.
var templateVarRe = regexp.MustCompile(`\{([-\w]+)\}`)

// TemplatePathOutput writes each document to its own file, the filename
// built from a template with "{attr}" placeholders resolved against the
// document's Attrs plus "{i}" (the 0-indexed document counter) — the Go
// counterpart of TemplatedPathOutput.from_config, which used Python's
// str.format against the same variables.
type TemplatePathOutput struct {
	Template string

	mu    sync.Mutex
	index int
}

func (o *TemplatePathOutput) Name() string { return "template_path:" + o.Template }

func (o *TemplatePathOutput) Write(_ context.Context, doc *doctree.Document, rendered any) error {
	o.mu.Lock()
	i := o.index
	o.index++
	o.mu.Unlock()

	vars := map[string]string{"i": strconv.Itoa(i)}
	for k, v := range doc.Attrs {
		vars[k] = v
	}
	var missing error
	filename := templateVarRe.ReplaceAllStringFunc(o.Template, func(m string) string {
		name := templateVarRe.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing = fmt.Errorf("template_path: no value for {%s} in document attrs", name)
			return m
		}
		return v
	})
	if missing != nil {
		return missing
	}

	b, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal rendered document: %w", err)
	}
	if err := os.WriteFile(filename, b, 0o644); err != nil {
		return fmt.Errorf("template_path: write %s: %w", filename, err)
	}
	return nil
}

func (o *TemplatePathOutput) Close() error { return nil }
