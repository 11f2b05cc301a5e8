// Package variables implements the variable engine (spec §4.4): named
// values computed per matched element and made available to later passes'
// tag "add" templates via the placeholder grammar. A variable's Value wraps
// either another tree element (element_at), a derived string
// (substitutions, ancestor_path) or a JSON value (json_query), all exposed
// through the same Field accessor so the placeholder renderer never needs
// to know which kind produced it.
package variables

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/placeholder"
	"github.com/docweave/docweave/internal/queryengine"
	"github.com/docweave/docweave/internal/traverse"
)

// VariableError reports a variable that failed to compute — a bad regex, a
// position outside the table, a query compile error — distinct from a
// "resolved to nothing" outcome, which variables such as element_at can
// report as ignore_errors-gated instead of failing the pass outright.
type VariableError struct {
	Msg string
}

func (e *VariableError) Error() string { return e.Msg }

// ElementAtSpec resolves to a sibling cell within the enclosing Table.
// Col and Row each take one of "", "first", "last", "prev", "next" — an
// empty string holds that axis at the matched element's own position.
type ElementAtSpec struct {
	Col string
	Row string
}

// Substitution applies a regex (with \1-\9 backreferences in Substitute)
// and then an optional case operation, in sequence with its siblings.
type Substitution struct {
	Regex             string
	Substitute        string
	Operation         string // "lower", "upper", "unchanged" (default)
	SectionHeadingOnly bool
}

// AncestorPathSpec renders a "/"-joined (or Separator-joined) path segment
// per ancestor level from LevelStart to LevelEnd (inclusive, 0 = the
// element's immediate parent, counting outward), each segment rendered from
// LevelValue — a placeholder template resolved against that ancestor level
// via the "{level.field}" grammar, field one of "text"/"type"/"tags[...]".
type AncestorPathSpec struct {
	LevelValue string
	Separator  string
	LevelStart int
	LevelEnd   int
}

// Spec is exactly one of ElementAt, Substitutions, JSONQuery or
// AncestorPath — the variable's source.
type Spec struct {
	ElementAt     *ElementAtSpec
	Substitutions []Substitution
	JSONQuery     string
	AncestorPath  *AncestorPathSpec
}

// Value is a computed variable's value, dereferenced by tag-add templates
// via "{name}" (String), "{name.field}" and "{name.field[key]}" (Field).
type Value interface {
	String() string
	Field(field, key string) (string, bool)
}

// elementValue wraps an element resolved by element_at.
type elementValue struct {
	el doctree.Element
}

func (v elementValue) String() string { return doctree.AggregatedText(v.el) }

func (v elementValue) Field(field, key string) (string, bool) {
	switch field {
	case "", "text":
		return doctree.AggregatedText(v.el), true
	case "type":
		return string(v.el.Type()), true
	case "tags":
		val, ok := v.el.Tags()[key]
		return val, ok
	case "style":
		val, ok := v.el.Style()[key]
		return val, ok
	case "attribs":
		val, ok := v.el.Attribs()[key]
		return val, ok
	default:
		return "", false
	}
}

// stringValue wraps a plain derived string (substitutions, ancestor_path).
type stringValue string

func (v stringValue) String() string { return string(v) }

func (v stringValue) Field(field, key string) (string, bool) {
	if field == "" || field == "text" {
		return string(v), true
	}
	return "", false
}

// jsonValue wraps a json_query result.
type jsonValue struct {
	raw any
}

func (v jsonValue) String() string {
	if s, ok := v.raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v.raw)
}

func (v jsonValue) Field(field, key string) (string, bool) {
	switch field {
	case "", "text":
		return v.String(), true
	default:
		m, ok := v.raw.(map[string]any)
		if !ok {
			return "", false
		}
		sub, ok := m[field]
		if !ok {
			return "", false
		}
		if key == "" {
			return fmt.Sprintf("%v", sub), true
		}
		subMap, ok := sub.(map[string]any)
		if !ok {
			return "", false
		}
		val, ok := subMap[key]
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%v", val), true
	}
}

// Env supplies shared, reusable resources to variable evaluation: a regex
// cache keyed by pattern text and compiled json_query programs keyed by
// query text.
type Env struct {
	regexes  map[string]*regexp.Regexp
	programs map[string]*queryengine.Program
}

// NewEnv constructs an empty Env.
func NewEnv() *Env {
	return &Env{regexes: map[string]*regexp.Regexp{}, programs: map[string]*queryengine.Program{}}
}

func (e *Env) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.regexes[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexes[pattern] = re
	return re, nil
}

func (e *Env) program(query string) (*queryengine.Program, error) {
	if p, ok := e.programs[query]; ok {
		return p, nil
	}
	p, err := queryengine.Compile(query)
	if err != nil {
		return nil, err
	}
	e.programs[query] = p
	return p, nil
}

// Evaluate computes a single variable's Value for the element visited at
// ctx. jsonFor, required only for JSONQuery specs, projects ctx.Element (or
// whatever subtree the caller chooses) to the JSON value the query runs
// against.
func Evaluate(env *Env, spec *Spec, ctx traverse.Context, jsonFor func() any) (Value, error) {
	switch {
	case spec.ElementAt != nil:
		return evaluateElementAt(ctx, spec.ElementAt)
	case len(spec.Substitutions) > 0:
		return evaluateSubstitutions(env, ctx, spec.Substitutions)
	case spec.JSONQuery != "":
		return evaluateJSONQuery(env, spec.JSONQuery, jsonFor)
	case spec.AncestorPath != nil:
		return evaluateAncestorPath(ctx, spec.AncestorPath)
	default:
		return nil, &VariableError{Msg: "variable spec has no source set"}
	}
}

func evaluateElementAt(ctx traverse.Context, spec *ElementAtSpec) (Value, error) {
	if !ctx.HasPosition || ctx.Table == nil {
		return nil, &VariableError{Msg: "element_at: element is not positioned within a table"}
	}
	row, err := resolveAxis(spec.Row, ctx.Row, ctx.TableRows)
	if err != nil {
		return nil, fmt.Errorf("element_at: row: %w", err)
	}
	col, err := resolveAxis(spec.Col, ctx.Col, ctx.TableCols)
	if err != nil {
		return nil, fmt.Errorf("element_at: col: %w", err)
	}
	cell, ok := ctx.Table.CellAt(row, col)
	if !ok {
		return nil, &VariableError{Msg: fmt.Sprintf("element_at: (%d,%d) is out of bounds", row, col)}
	}
	return elementValue{el: cell}, nil
}

func resolveAxis(mode string, current, total int) (int, error) {
	switch mode {
	case "", "current":
		return current, nil
	case "first":
		return 0, nil
	case "last":
		return total - 1, nil
	case "prev":
		if current-1 < 0 {
			return 0, &VariableError{Msg: "prev: already at the first position"}
		}
		return current - 1, nil
	case "next":
		if current+1 >= total {
			return 0, &VariableError{Msg: "next: already at the last position"}
		}
		return current + 1, nil
	default:
		return 0, &VariableError{Msg: fmt.Sprintf("unknown axis mode %q", mode)}
	}
}

var backrefRe = regexp.MustCompile(`\\([1-9])`)

func toGoReplacement(tmpl string) string {
	return backrefRe.ReplaceAllString(tmpl, "$$$1")
}

func evaluateSubstitutions(env *Env, ctx traverse.Context, subs []Substitution) (Value, error) {
	s := baseSubstitutionString(ctx, len(subs) > 0 && subs[0].SectionHeadingOnly)
	for _, sub := range subs {
		re, err := env.compile(sub.Regex)
		if err != nil {
			return nil, fmt.Errorf("substitution regex %q: %w", sub.Regex, err)
		}
		s = re.ReplaceAllString(s, toGoReplacement(sub.Substitute))
		switch sub.Operation {
		case "lower":
			s = strings.ToLower(s)
		case "upper":
			s = strings.ToUpper(s)
		case "", "unchanged":
		default:
			return nil, &VariableError{Msg: fmt.Sprintf("unknown substitution operation %q", sub.Operation)}
		}
	}
	return stringValue(s), nil
}

func baseSubstitutionString(ctx traverse.Context, headingOnly bool) string {
	if headingOnly {
		for i := len(ctx.Ancestors) - 1; i >= 0; i-- {
			if sec, ok := ctx.Ancestors[i].(*doctree.Section); ok {
				return sec.HeadingText()
			}
		}
		return ""
	}
	return doctree.AggregatedText(ctx.Element)
}

func evaluateJSONQuery(env *Env, query string, jsonFor func() any) (Value, error) {
	if jsonFor == nil {
		return nil, &VariableError{Msg: "json_query: no JSON projection supplied"}
	}
	prog, err := env.program(query)
	if err != nil {
		return nil, fmt.Errorf("json_query %q: %w", query, err)
	}
	result, ok, err := prog.RunFirst(jsonFor(), nil)
	if err != nil {
		return nil, fmt.Errorf("json_query %q: %w", query, err)
	}
	if !ok {
		return nil, &VariableError{Msg: fmt.Sprintf("json_query %q produced no result", query)}
	}
	return jsonValue{raw: result}, nil
}

func evaluateAncestorPath(ctx traverse.Context, spec *AncestorPathSpec) (Value, error) {
	sep := spec.Separator
	if sep == "" {
		sep = "/"
	}
	n := len(ctx.Ancestors)
	var segments []string
	for level := spec.LevelStart; level <= spec.LevelEnd; level++ {
		idx := n - 1 - level
		if idx < 0 || idx >= n {
			continue
		}
		anc := ctx.Ancestors[idx]
		rendered, ok := placeholder.Render(spec.LevelValue, func(ref, field, key string) (string, bool) {
			if ref != "level" {
				return "", false
			}
			ev := elementValue{el: anc}
			return ev.Field(field, key)
		})
		if !ok {
			return nil, &VariableError{Msg: fmt.Sprintf("ancestor_path: level %d template did not resolve", level)}
		}
		segments = append(segments, rendered)
	}
	return stringValue(strings.Join(segments, sep)), nil
}

// Set is a named collection of computed variables, the result of evaluating
// a tag_matching pass's variable list for one matched element.
type Set map[string]Value

// RenderAdd renders a tag_matching pass's tags.add template map against a
// computed variable Set. Per spec §4.4, an unresolved placeholder fails the
// whole pass unless ignoreErrors is set, in which case it suppresses the
// entire add for this element — not just the offending tag — so RenderAdd
// returns (nil, nil) on the first unresolved placeholder rather than a
// partial map.
func RenderAdd(add map[string]string, vars Set, ignoreErrors bool) (map[string]string, error) {
	out := make(map[string]string, len(add))
	resolve := func(ref, field, key string) (string, bool) {
		v, ok := vars[ref]
		if !ok {
			return "", false
		}
		return v.Field(field, key)
	}
	for name, tmpl := range add {
		rendered, ok := placeholder.Render(tmpl, resolve)
		if !ok {
			if ignoreErrors {
				return nil, nil
			}
			return nil, &VariableError{Msg: fmt.Sprintf("tag %q template %q did not resolve", name, tmpl)}
		}
		out[name] = rendered
	}
	return out, nil
}

// ParseLevelRange is a small helper for config binding: "0..2" -> (0, 2),
// a bare "1" -> (1, 1).
func ParseLevelRange(s string) (start, end int, err error) {
	parts := strings.SplitN(s, "..", 2)
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid level range %q: %w", s, err)
	}
	if len(parts) == 1 {
		return start, start, nil
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid level range %q: %w", s, err)
	}
	return start, end, nil
}
