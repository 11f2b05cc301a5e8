package config

import (
	"fmt"

	"github.com/docweave/docweave/internal/extract"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/transform"
	"github.com/docweave/docweave/internal/variables"
)

// The decoders below turn the generic map[string]any a YAML kind's config
// unmarshals to into the typed specs matcher/variables/transform/extract
// expect. Every decode error is wrapped as a *ConfigError (spec §7 category
// 1): a malformed schema field is a configuration error, not a pass error.

func configErrf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

func str(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func boolOr(m map[string]any, key string, fallback bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

func boolPtr(m map[string]any, key string) *bool {
	v, ok := m[key]
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}

func intPtr(m map[string]any, key string) (*int, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	n, err := toInt(v)
	if err != nil {
		return nil, configErrf("%s: %s", key, err)
	}
	return &n, nil
}

func intOr(m map[string]any, key string, fallback int) (int, error) {
	v, ok := m[key]
	if !ok {
		return fallback, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, configErrf("%s: %s", key, err)
	}
	return n, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case uint64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func stringSlice(m map[string]any, key string) ([]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, configErrf("%s: expected a list", key)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, configErrf("%s: expected a list of strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

func mapSlice(m map[string]any, key string) ([]map[string]any, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, configErrf("%s: expected a list", key)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, configErrf("%s: expected a list of maps", key)
		}
		out = append(out, sub)
	}
	return out, nil
}

func stringMap(m map[string]any, key string) (map[string]string, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	// rejected_tags and similar are documented as map<string, regex>; a
	// list form was seen in one source variant but isn't accepted here —
	// implementers are expected to reject it rather than silently shim it.
	if _, isList := v.([]any); isList {
		return nil, configErrf("%s: expected a map of tag name to regex, got a list", key)
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, configErrf("%s: expected a map", key)
	}
	out := make(map[string]string, len(raw))
	for k, vv := range raw {
		s, ok := vv.(string)
		if !ok {
			return nil, configErrf("%s.%s: expected a string pattern", key, k)
		}
		out[k] = s
	}
	return out, nil
}

func tagSetSlice(m map[string]any, key string) ([]matcher.TagSet, error) {
	maps, err := mapSlice(m, key)
	if err != nil {
		return nil, err
	}
	out := make([]matcher.TagSet, 0, len(maps))
	for _, mm := range maps {
		set := matcher.TagSet{}
		for k, v := range mm {
			s, ok := v.(string)
			if !ok {
				return nil, configErrf("%s: pattern for %q must be a string", key, k)
			}
			set[k] = s
		}
		out = append(out, set)
	}
	return out, nil
}

func subMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	sub, ok := v.(map[string]any)
	return sub, ok
}

// decodeElementSpec decodes match_element (spec §4.3).
func decodeElementSpec(m map[string]any) (*matcher.ElementSpec, error) {
	if m == nil {
		return nil, nil
	}
	spec := &matcher.ElementSpec{}
	var err error

	if spec.ElementTypes, err = stringSlice(m, "element_types"); err != nil {
		return nil, err
	}
	if spec.RequiredTagSets, err = tagSetSlice(m, "required_tag_sets"); err != nil {
		return nil, err
	}
	if spec.RejectedTags, err = stringMap(m, "rejected_tags"); err != nil {
		return nil, err
	}
	if spec.RequiredStyleSets, err = tagSetSlice(m, "required_style_sets"); err != nil {
		return nil, err
	}
	if spec.RejectedStyles, err = stringMap(m, "rejected_styles"); err != nil {
		return nil, err
	}
	spec.SkipStyleQuotes = boolPtr(m, "skip_style_quotes")
	spec.AggregatedTextRegex = str(m, "aggregated_text_regex")

	exprs, err := mapSlice(m, "element_expressions")
	if err != nil {
		return nil, err
	}
	for _, e := range exprs {
		spec.ElementExpressions = append(spec.ElementExpressions, matcher.ElementExpression{
			Expr:            str(e, "expr"),
			RegexMatch:      str(e, "regex_match"),
			IgnoreKeyErrors: boolOr(e, "ignore_key_errors", false),
		})
	}

	if spec.StartCol, err = intPtr(m, "start_col"); err != nil {
		return nil, err
	}
	if spec.EndCol, err = intPtr(m, "end_col"); err != nil {
		return nil, err
	}
	if spec.StartRow, err = intPtr(m, "start_row"); err != nil {
		return nil, err
	}
	if spec.EndRow, err = intPtr(m, "end_row"); err != nil {
		return nil, err
	}
	return spec, nil
}

// decodeAncestorStep decodes one entry of match_ancestor_list (spec §4.3):
// either a nested match_element predicate, or a skip directive.
func decodeAncestorStep(m map[string]any) (matcher.AncestorStep, error) {
	if matchEl, ok := subMap(m, "match_element"); ok {
		spec, err := decodeElementSpec(matchEl)
		if err != nil {
			return matcher.AncestorStep{}, err
		}
		return matcher.AncestorStep{Match: spec}, nil
	}
	skip := str(m, "skip_ancestors")
	if skip == "" {
		return matcher.AncestorStep{}, configErrf("match_ancestor_list entry must set match_element or skip_ancestors")
	}
	count, err := intOr(m, "skip_count", 0)
	if err != nil {
		return matcher.AncestorStep{}, err
	}
	return matcher.AncestorStep{SkipAncestors: skip, SkipCount: count}, nil
}

// decodeCriteria decodes a MatchCriteria bundle (spec §4.3): match_element,
// match_ancestor_list, match_descendent.
func decodeCriteria(m map[string]any) (*matcher.Criteria, error) {
	if m == nil {
		return nil, nil
	}
	c := &matcher.Criteria{}

	if matchEl, ok := subMap(m, "match_element"); ok {
		spec, err := decodeElementSpec(matchEl)
		if err != nil {
			return nil, err
		}
		c.MatchElement = spec
	}

	if steps, err := mapSlice(m, "match_ancestor_list"); err != nil {
		return nil, err
	} else if len(steps) > 0 {
		c.MatchAncestorList = make([]matcher.AncestorStep, 0, len(steps))
		for _, s := range steps {
			step, err := decodeAncestorStep(s)
			if err != nil {
				return nil, err
			}
			c.MatchAncestorList = append(c.MatchAncestorList, step)
		}
	}

	if matchDesc, ok := subMap(m, "match_descendent"); ok {
		spec, err := decodeElementSpec(matchDesc)
		if err != nil {
			return nil, err
		}
		c.MatchDescendent = spec
	}

	return c, nil
}

// decodeVariableSpec decodes one entry of a tag_matching pass's variables
// map (spec §4.4): exactly one of element_at, substitutions, json_query or
// ancestor_path.
func decodeVariableSpec(m map[string]any) (*variables.Spec, error) {
	if sub, ok := subMap(m, "element_at"); ok {
		return &variables.Spec{ElementAt: &variables.ElementAtSpec{
			Col: str(sub, "col"),
			Row: str(sub, "row"),
		}}, nil
	}
	if subs, err := mapSlice(m, "substitutions"); err != nil {
		return nil, err
	} else if len(subs) > 0 {
		out := make([]variables.Substitution, 0, len(subs))
		for _, s := range subs {
			out = append(out, variables.Substitution{
				Regex:              str(s, "regex"),
				Substitute:         str(s, "substitute"),
				Operation:          str(s, "operation"),
				SectionHeadingOnly: boolOr(s, "section_heading_only", false),
			})
		}
		return &variables.Spec{Substitutions: out}, nil
	}
	if q := str(m, "json_query"); q != "" {
		return &variables.Spec{JSONQuery: q}, nil
	}
	if sub, ok := subMap(m, "ancestor_path"); ok {
		start, err := intOr(sub, "level_start", 0)
		if err != nil {
			return nil, err
		}
		end, err := intOr(sub, "level_end", start+1)
		if err != nil {
			return nil, err
		}
		sep := str(sub, "separator")
		if sep == "" {
			sep = "/"
		}
		return &variables.Spec{AncestorPath: &variables.AncestorPathSpec{
			LevelValue: str(sub, "level_value"),
			Separator:  sep,
			LevelStart: start,
			// level_end is documented half-open; AncestorPathSpec's
			// LevelEnd is inclusive, so translate it here.
			LevelEnd: end - 1,
		}}, nil
	}
	return nil, configErrf("variable spec has no recognized source (element_at/substitutions/json_query/ancestor_path)")
}

func decodeVariables(m map[string]any, key string) (map[string]*variables.Spec, error) {
	sub, ok := subMap(m, key)
	if !ok {
		return nil, nil
	}
	out := make(map[string]*variables.Spec, len(sub))
	for name, v := range sub {
		vm, ok := v.(map[string]any)
		if !ok {
			return nil, configErrf("%s.%s: expected a map", key, name)
		}
		spec, err := decodeVariableSpec(vm)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", key, name, err)
		}
		out[name] = spec
	}
	return out, nil
}

// decodeTagsAdd decodes a tags.add template map: string -> placeholder
// template, used as-is.
func decodeTagsAdd(m map[string]any, key string) (map[string]string, error) {
	return stringMap(m, key)
}

func decodeSubstitutions(m map[string]any, key string) ([]transform.TextSubstitution, error) {
	subs, err := mapSlice(m, key)
	if err != nil {
		return nil, err
	}
	out := make([]transform.TextSubstitution, 0, len(subs))
	for _, s := range subs {
		out = append(out, transform.TextSubstitution{
			Regex:      str(s, "regex"),
			Substitute: str(s, "substitute"),
			Operation:  str(s, "operation"),
		})
	}
	return out, nil
}

// decodeExtractSpec decodes an ExtractSpec (spec §4.6), recursing through
// nested.
func decodeExtractSpec(m map[string]any) (*extract.Spec, error) {
	if m == nil {
		return nil, configErrf("extract_json: missing config")
	}
	spec := &extract.Spec{
		Preamble:      str(m, "preamble"),
		ExtractAll:    str(m, "extract_all"),
		FirstItemOnly: boolOr(m, "first_item_only", false),
		Render:        str(m, "render"),
	}
	if spec.ExtractAll == "" {
		return nil, configErrf("extract_json: extract_all is required")
	}
	var err error
	if spec.Filters, err = stringSlice(m, "filters"); err != nil {
		return nil, err
	}
	if spec.Validators, err = stringSlice(m, "validators"); err != nil {
		return nil, err
	}
	if nested, ok := subMap(m, "nested"); ok {
		spec.Nested = make(map[string]*extract.Spec, len(nested))
		for name, v := range nested {
			vm, ok := v.(map[string]any)
			if !ok {
				return nil, configErrf("nested.%s: expected a map", name)
			}
			sub, err := decodeExtractSpec(vm)
			if err != nil {
				return nil, fmt.Errorf("nested.%s: %w", name, err)
			}
			spec.Nested[name] = sub
		}
	}
	return spec, nil
}
