// Package matcher evaluates predicates over document tree elements: type,
// tags, styles, aggregated text, position within an enclosing table, and
// ancestor/descendant path relationships (spec §4.3).
package matcher

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/placeholder"
	"github.com/docweave/docweave/internal/traverse"
)

// Cache memoizes compiled regular expressions, so the same pattern applied
// across many elements is compiled once. One Cache, held by transform.Env,
// is shared by every pass of a pipeline.
type Cache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

// NewCache constructs an empty regex cache.
func NewCache() *Cache {
	return &Cache{compiled: map[string]*regexp.Regexp{}}
}

// Compile returns the compiled pattern, caching it keyed by pattern text.
func (c *Cache) Compile(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.compiled[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &MatcherError{Msg: fmt.Sprintf("compile regex %q: %s", pattern, err)}
	}
	c.compiled[pattern] = re
	return re, nil
}

// MatcherError reports a predicate evaluation failure (spec §7, category 3):
// by default fatal for the element, unless a spec's ignore flag suppresses it.
type MatcherError struct {
	Msg string
}

func (e *MatcherError) Error() string { return e.Msg }

// TagSet is one conjunction within a required_tag_sets disjunction: every
// key must be present on the element, and if the pattern is non-empty it
// must fully match the tag's value. An empty pattern means "key present".
type TagSet map[string]string

// ElementExpression is one entry of element_expressions: a template string
// rendered against the contextual element list, then regex-matched in full.
type ElementExpression struct {
	Expr            string
	RegexMatch      string
	IgnoreKeyErrors bool
}

// ElementSpec is match_element: the predicate evaluated against a single
// element (spec §4.3). All fields are optional; zero-value fields are
// wildcards.
type ElementSpec struct {
	ElementTypes        []string
	RequiredTagSets     []TagSet
	RejectedTags        map[string]string
	RequiredStyleSets   []TagSet
	RejectedStyles      map[string]string
	SkipStyleQuotes     *bool // default true
	AggregatedTextRegex string
	ElementExpressions  []ElementExpression
	StartCol, EndCol    *int
	StartRow, EndRow    *int
}

// AncestorStep is one entry of match_ancestor_list: either a predicate that
// must consume exactly one ancestor, or a skip directive.
type AncestorStep struct {
	Match *ElementSpec

	// SkipAncestors, when Match is nil, is "exactly", "at_least", or "any".
	SkipAncestors string
	SkipCount     int
}

// Criteria bundles the three predicate axes a MatchCriteria can combine.
type Criteria struct {
	MatchElement      *ElementSpec
	MatchAncestorList []AncestorStep
	MatchDescendent   *ElementSpec
}

// abstractTypes maps an abstract element_types name to the concrete
// variants it matches polymorphically (spec §4.3, §9 capability sets).
var abstractTypes = map[string][]doctree.ElementType{
	string(doctree.TypeParagraphElement): {doctree.TypeTextRun, doctree.TypeChips},
}

// Env carries the shared, read-only inputs a match evaluation needs beyond
// the element itself: the regex cache and the document's style rules for
// attribs.class inheritance (spec §4.3).
type Env struct {
	Cache      *Cache
	StyleRules map[string]map[string]string
}

// Match evaluates a full Criteria against a traversal context. contextual
// is the positional element list element_expressions index into — index 0
// is always ctx.Element; callers such as merge_by_tag append a second
// candidate at index 1.
func Match(env *Env, c *Criteria, ctx traverse.Context, contextual []doctree.Element) (bool, error) {
	if c == nil {
		return true, nil
	}
	if c.MatchElement != nil {
		ok, err := MatchElementSpec(env, c.MatchElement, ctx, contextual)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(c.MatchAncestorList) > 0 {
		ok, err := matchAncestorList(env, c.MatchAncestorList, ctx.Ancestors)
		if err != nil || !ok {
			return false, err
		}
	}
	if c.MatchDescendent != nil {
		if !matchDescendent(env, c.MatchDescendent, ctx.Element) {
			return false, nil
		}
	}
	return true, nil
}

// MatchElementSpec evaluates match_element alone against the element at
// ctx.Element.
func MatchElementSpec(env *Env, spec *ElementSpec, ctx traverse.Context, contextual []doctree.Element) (bool, error) {
	if spec == nil {
		return true, nil
	}
	el := ctx.Element

	if len(spec.ElementTypes) > 0 && !typeMatches(el, spec.ElementTypes) {
		return false, nil
	}

	if len(spec.RequiredTagSets) > 0 {
		ok, err := anyConjunctionMatches(env.Cache, spec.RequiredTagSets, el.Tags())
		if err != nil || !ok {
			return false, err
		}
	}
	if rejected, err := anyRejects(env.Cache, spec.RejectedTags, el.Tags()); err != nil || rejected {
		return false, err
	}

	if len(spec.RequiredStyleSets) > 0 || len(spec.RejectedStyles) > 0 {
		styleView := effectiveStyle(el, env.StyleRules)
		skipQuotes := true
		if spec.SkipStyleQuotes != nil {
			skipQuotes = *spec.SkipStyleQuotes
		}
		if skipQuotes {
			styleView = stripQuotesFromValues(styleView)
		}
		if len(spec.RequiredStyleSets) > 0 {
			ok, err := anyConjunctionMatches(env.Cache, spec.RequiredStyleSets, styleView)
			if err != nil || !ok {
				return false, err
			}
		}
		if rejected, err := anyRejects(env.Cache, spec.RejectedStyles, styleView); err != nil || rejected {
			return false, err
		}
	}

	if spec.AggregatedTextRegex != "" {
		re, err := env.Cache.Compile(spec.AggregatedTextRegex)
		if err != nil {
			return false, err
		}
		if !fullMatch(re, doctree.AggregatedText(el)) {
			return false, nil
		}
	}

	for _, expr := range spec.ElementExpressions {
		ok, err := matchExpression(env, expr, contextual)
		if err != nil {
			if expr.IgnoreKeyErrors {
				return false, nil
			}
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if spec.StartCol != nil || spec.EndCol != nil || spec.StartRow != nil || spec.EndRow != nil {
		if !ctx.HasPosition {
			return false, nil
		}
		if !positionInBounds(ctx.Col, ctx.TableCols, spec.StartCol, spec.EndCol) {
			return false, nil
		}
		if !positionInBounds(ctx.Row, ctx.TableRows, spec.StartRow, spec.EndRow) {
			return false, nil
		}
	}

	return true, nil
}

func typeMatches(el doctree.Element, wanted []string) bool {
	actual := el.Type()
	for _, w := range wanted {
		if string(actual) == w {
			return true
		}
		if variants, ok := abstractTypes[w]; ok {
			for _, v := range variants {
				if v == actual {
					return true
				}
			}
		}
	}
	return false
}

// anyConjunctionMatches implements the disjunction-of-conjunctions shape
// shared by required_tag_sets and required_style_sets.
func anyConjunctionMatches(cache *Cache, sets []TagSet, values map[string]string) (bool, error) {
	for _, set := range sets {
		all := true
		for key, pattern := range set {
			v, present := values[key]
			if !present {
				all = false
				break
			}
			if pattern == "" {
				continue
			}
			re, err := cache.Compile(pattern)
			if err != nil {
				return false, err
			}
			if !fullMatch(re, v) {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func anyRejects(cache *Cache, rejects map[string]string, values map[string]string) (bool, error) {
	for key, pattern := range rejects {
		v, present := values[key]
		if !present {
			continue
		}
		if pattern == "" {
			return true, nil
		}
		re, err := cache.Compile(pattern)
		if err != nil {
			return false, err
		}
		if fullMatch(re, v) {
			return true, nil
		}
	}
	return false, nil
}

// effectiveStyle merges style rules inherited via attribs.class with the
// element's own inline style, which takes precedence (spec §4.3, §6.2).
func effectiveStyle(el doctree.Element, styleRules map[string]map[string]string) map[string]string {
	out := map[string]string{}
	if classes, ok := el.Attribs()["class"]; ok {
		for _, class := range strings.Fields(classes) {
			if rule, ok := styleRules[class]; ok {
				for k, v := range rule {
					out[k] = v
				}
			}
		}
	}
	for k, v := range el.Style() {
		out[k] = v
	}
	return out
}

func stripQuotesFromValues(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = stripQuotes(v)
	}
	return out
}

func stripQuotes(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

func fullMatch(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

func matchExpression(env *Env, expr ElementExpression, contextual []doctree.Element) (bool, error) {
	rendered, ok := placeholder.Render(expr.Expr, exprResolver(contextual))
	if !ok {
		return false, &MatcherError{Msg: fmt.Sprintf("element expression %q: unresolved reference", expr.Expr)}
	}
	re, err := env.Cache.Compile(expr.RegexMatch)
	if err != nil {
		return false, err
	}
	return fullMatch(re, rendered), nil
}

func exprResolver(contextual []doctree.Element) placeholder.Resolve {
	return func(ref, field, key string) (string, bool) {
		idx, err := indexOf(ref)
		if err != nil || idx < 0 || idx >= len(contextual) {
			return "", false
		}
		el := contextual[idx]
		switch field {
		case "", "*", "text":
			return doctree.AggregatedText(el), true
		case "type":
			return string(el.Type()), true
		case "tags":
			v, ok := el.Tags()[key]
			return v, ok
		case "style":
			v, ok := el.Style()[key]
			return v, ok
		case "attribs":
			v, ok := el.Attribs()[key]
			return v, ok
		default:
			return "", false
		}
	}
}

func indexOf(ref string) (int, error) {
	n := 0
	for _, r := range ref {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a positional reference: %q", ref)
		}
		n = n*10 + int(r-'0')
	}
	if ref == "" {
		return 0, fmt.Errorf("empty reference")
	}
	return n, nil
}

// positionInBounds normalizes start/end bounds (negative counts from the
// end, -1 being the last index) and checks whether pos satisfies them.
// start is inclusive, end is exclusive (spec §4.3).
func positionInBounds(pos, total int, start, end *int) bool {
	if start != nil {
		s := normalizeBound(*start, total)
		if pos < s {
			return false
		}
	}
	if end != nil {
		e := normalizeBound(*end, total)
		if *end < 0 {
			// -1 as an end bound (exclusive) includes the final index.
			e++
		}
		if pos >= e {
			return false
		}
	}
	return true
}

func normalizeBound(v, total int) int {
	if v >= 0 {
		return v
	}
	// -1 denotes the final row/col, i.e. index total-1; positionInBounds
	// adds one for a negative end bound, so -1 as an end bound denotes total.
	return total + v
}

// matchAncestorList aligns the step sequence against some embedding of the
// ancestor path (root-to-parent order), enumerating alignments until one
// succeeds (spec §4.3).
func matchAncestorList(env *Env, steps []AncestorStep, ancestors []doctree.Element) (bool, error) {
	ok, err := alignAncestors(env, steps, 0, ancestors, 0)
	return ok, err
}

func alignAncestors(env *Env, steps []AncestorStep, si int, ancestors []doctree.Element, ai int) (bool, error) {
	if si == len(steps) {
		return ai == len(ancestors), nil
	}
	step := steps[si]
	if step.Match != nil {
		if ai >= len(ancestors) {
			return false, nil
		}
		ctx := traverse.Context{Element: ancestors[ai]}
		ok, err := MatchElementSpec(env, step.Match, ctx, []doctree.Element{ancestors[ai]})
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		return alignAncestors(env, steps, si+1, ancestors, ai+1)
	}

	switch step.SkipAncestors {
	case "exactly":
		if ai+step.SkipCount > len(ancestors) {
			return false, nil
		}
		return alignAncestors(env, steps, si+1, ancestors, ai+step.SkipCount)
	case "at_least":
		for k := step.SkipCount; ai+k <= len(ancestors); k++ {
			ok, err := alignAncestors(env, steps, si+1, ancestors, ai+k)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	default: // "any"
		for k := 0; ai+k <= len(ancestors); k++ {
			ok, err := alignAncestors(env, steps, si+1, ancestors, ai+k)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
}

// matchDescendent reports whether any proper descendant of root (preorder,
// excluding root itself) satisfies spec.
func matchDescendent(env *Env, spec *ElementSpec, root doctree.Element) bool {
	isRoot := true
	return traverse.Any(root, func(ctx traverse.Context) bool {
		if isRoot {
			isRoot = false
			return false
		}
		ok, _ := MatchElementSpec(env, spec, ctx, []doctree.Element{ctx.Element})
		return ok
	})
}
