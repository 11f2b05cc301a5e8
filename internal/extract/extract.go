// Package extract implements the extraction stage (spec §4.6): a nested
// JQ-like specification that turns a final, transformed document tree into
// structured output by extracting candidate items, filtering and
// validating them, computing nested sub-extractions, and rendering each
// surviving item.
package extract

import (
	"fmt"
	"log/slog"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/queryengine"
)

// Spec mirrors the original's JsonExtractionTransformConfig almost
// one-to-one: extract_all selects candidates, filters silently drop
// non-matches, validators drop non-matches with a warning, nested specs
// compute per-item sub-extractions bound as $name in render, and render
// produces the final output for each surviving item.
type Spec struct {
	Preamble      string
	ExtractAll    string
	Filters       []string
	Validators    []string
	FirstItemOnly bool
	Render        string
	Nested        map[string]*Spec
}

// Compiled holds one Spec's parsed programs, built once and reused across
// every document a pipeline run processes.
type Compiled struct {
	extractAll *queryengine.Program
	filters    []*queryengine.Program
	validators []*queryengine.Program
	render     *queryengine.Program
	nested     map[string]*Compiled
	spec       *Spec
}

// Compile parses every query in spec (and its nested specs) once.
func Compile(spec *Spec) (*Compiled, error) {
	extractAll, err := compileWithPreamble(spec.Preamble, spec.ExtractAll)
	if err != nil {
		return nil, fmt.Errorf("extract_all: %w", err)
	}
	filters, err := compileAll(spec.Preamble, spec.Filters)
	if err != nil {
		return nil, fmt.Errorf("filters: %w", err)
	}
	validators, err := compileAll(spec.Preamble, spec.Validators)
	if err != nil {
		return nil, fmt.Errorf("validators: %w", err)
	}
	render, err := compileWithPreamble(spec.Preamble, orDefault(spec.Render, "."))
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	nested := make(map[string]*Compiled, len(spec.Nested))
	for name, sub := range spec.Nested {
		c, err := Compile(sub)
		if err != nil {
			return nil, fmt.Errorf("nested %q: %w", name, err)
		}
		nested[name] = c
	}
	return &Compiled{
		extractAll: extractAll,
		filters:    filters,
		validators: validators,
		render:     render,
		nested:     nested,
		spec:       spec,
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func compileWithPreamble(preamble, query string) (*queryengine.Program, error) {
	full := query
	if preamble != "" {
		full = preamble + "\n" + query
	}
	return queryengine.Compile(full)
}

func compileAll(preamble string, queries []string) ([]*queryengine.Program, error) {
	out := make([]*queryengine.Program, len(queries))
	for i, q := range queries {
		p, err := compileWithPreamble(preamble, q)
		if err != nil {
			return nil, fmt.Errorf("%d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// TransformItems runs the extraction pipeline against the JSON projection
// of a document (or document subtree), producing either a single item
// (FirstItemOnly) or a JSON array of items, matching the original's
// transform_items contract.
func TransformItems(logger *slog.Logger, root doctree.Element, c *Compiled) (any, error) {
	data := doctree.ToJSON(root)
	return transformItemsJSON(logger, data, c)
}

func transformItemsJSON(logger *slog.Logger, data any, c *Compiled) (any, error) {
	items, err := c.extractAll.Run(data, nil)
	if err != nil {
		return nil, fmt.Errorf("extract_all: %w", err)
	}

	items, err = applyFilters(items, c.filters)
	if err != nil {
		return nil, fmt.Errorf("filters: %w", err)
	}

	items = applyValidators(logger, items, c.validators)

	rendered := make([]any, 0, len(items))
	for _, item := range items {
		out, err := renderItem(logger, item, c)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		rendered = append(rendered, out)
	}

	if c.spec.FirstItemOnly {
		if len(rendered) > 0 {
			return rendered[0], nil
		}
		return nil, nil
	}
	return rendered, nil
}

func applyFilters(items []any, filters []*queryengine.Program) ([]any, error) {
	if len(filters) == 0 {
		return items, nil
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		keep := true
		for _, f := range filters {
			results, err := f.Run(item, nil)
			if err != nil {
				return nil, err
			}
			if !anyTruthy(results) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, item)
		}
	}
	return out, nil
}

func applyValidators(logger *slog.Logger, items []any, validators []*queryengine.Program) []any {
	if len(validators) == 0 {
		return items
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		valid := true
		for i, v := range validators {
			results, err := v.Run(item, nil)
			if err != nil || !anyTruthy(results) {
				if logger != nil {
					logger.Warn("extraction item failed validator",
						"validator_index", i, "item", fmt.Sprintf("%v", item))
				}
				valid = false
			}
		}
		if valid {
			out = append(out, item)
		}
	}
	return out
}

func renderItem(logger *slog.Logger, item any, c *Compiled) (any, error) {
	nestedVars := make(map[string]any, len(c.nested))
	for name, sub := range c.nested {
		v, err := transformItemsJSON(logger, item, sub)
		if err != nil {
			return nil, fmt.Errorf("nested %q: %w", name, err)
		}
		nestedVars[name] = v
	}
	out, ok, err := c.render.RunFirst(item, nestedVars)
	if err != nil {
		return nil, err
	}
	if !ok {
		if logger != nil {
			logger.Warn("render produced no value", "item", fmt.Sprintf("%v", item))
		}
		return nil, nil
	}
	return out, nil
}

func anyTruthy(results []any) bool {
	for _, r := range results {
		if r == nil {
			continue
		}
		if b, ok := r.(bool); ok {
			if b {
				return true
			}
			continue
		}
		return true
	}
	return false
}
