package pipeline

import (
	"context"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/extract"
	"github.com/docweave/docweave/internal/transform"
)

// TransformStep adapts a transform.Pass to Step: it mutates the document in
// place and never produces a rendered value.
type TransformStep struct {
	Kind string
	Pass transform.Pass
	Env  *transform.Env
}

func (s *TransformStep) Name() string { return s.Kind }

func (s *TransformStep) Apply(_ context.Context, doc *doctree.Document) (any, bool, error) {
	if err := s.Pass.Apply(s.Env, doc); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

// ExtractStep adapts the extraction stage to Step: it reads the document
// (without mutating it) and produces the rendered JSON value that ends the
// transformation sequence for this document (spec §4.6, kind "extract_json"
// in the pipeline's registered kinds, §6.1).
type ExtractStep struct {
	Kind    string
	Program *extract.Compiled
}

func (s *ExtractStep) Name() string { return s.Kind }

func (s *ExtractStep) Apply(_ context.Context, doc *doctree.Document) (any, bool, error) {
	out, err := extract.TransformItems(nil, doc, s.Program)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
