package config

import (
	"github.com/docweave/docweave/internal/extract"
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/docweave/docweave/internal/transform"
)

// buildStep dispatches a transformations-list entry to the pass it names
// (spec §6.1: "Recognized transformation kinds: drop_elements,
// merge_by_tag, nest_bullets, nest_sections, regex_replace, split_text,
// strip_elements, tag_matching, extract_json. Unknown kind is a
// configuration error").
func buildStep(kind string, cfg map[string]any, env *transform.Env) (pipeline.Step, error) {
	switch kind {
	case "drop_elements":
		return buildDropElements(kind, cfg, env)
	case "merge_by_tag":
		return buildMergeByTag(kind, cfg, env)
	case "nest_bullets":
		return &pipeline.TransformStep{Kind: kind, Pass: transform.NestBulletsPass{}, Env: env}, nil
	case "nest_sections":
		return &pipeline.TransformStep{Kind: kind, Pass: transform.NestSectionsPass{}, Env: env}, nil
	case "regex_replace":
		return buildRegexReplace(kind, cfg, env)
	case "split_text":
		return buildSplitText(kind, cfg, env)
	case "strip_elements":
		return buildStripElements(kind, cfg, env)
	case "tag_matching":
		return buildTagMatching(kind, cfg, env)
	case "extract_json":
		return buildExtractJSON(kind, cfg)
	default:
		return nil, configErrf("unknown transformation kind %q", kind)
	}
}

func buildDropElements(kind string, cfg map[string]any, env *transform.Env) (pipeline.Step, error) {
	matchCfg, _ := subMap(cfg, "match")
	criteria, err := decodeCriteria(matchCfg)
	if err != nil {
		return nil, err
	}
	return &pipeline.TransformStep{Kind: kind, Pass: &transform.DropElementsPass{Criteria: criteria}, Env: env}, nil
}

func buildMergeByTag(kind string, cfg map[string]any, env *transform.Env) (pipeline.Step, error) {
	matchCfg, _ := subMap(cfg, "match")
	criteria, err := decodeCriteria(matchCfg)
	if err != nil {
		return nil, err
	}
	pass := &transform.MergeByTagPass{
		Criteria:       criteria,
		MergeAsTextRun: boolOr(cfg, "merge_as_text_run", false),
	}
	return &pipeline.TransformStep{Kind: kind, Pass: pass, Env: env}, nil
}

func buildRegexReplace(kind string, cfg map[string]any, env *transform.Env) (pipeline.Step, error) {
	matchCfg, _ := subMap(cfg, "match")
	criteria, err := decodeCriteria(matchCfg)
	if err != nil {
		return nil, err
	}
	subs, err := decodeSubstitutions(cfg, "substitutions")
	if err != nil {
		return nil, err
	}
	pass := &transform.RegexReplacePass{Criteria: criteria, Substitutions: subs}
	return &pipeline.TransformStep{Kind: kind, Pass: pass, Env: env}, nil
}

func buildSplitText(kind string, cfg map[string]any, env *transform.Env) (pipeline.Step, error) {
	matchCfg, _ := subMap(cfg, "match")
	criteria, err := decodeCriteria(matchCfg)
	if err != nil {
		return nil, err
	}
	textRegex := str(cfg, "text_regex")
	if textRegex == "" {
		return nil, configErrf("split_text: text_regex is required")
	}
	elementTagMaps, err := mapSlice(cfg, "element_tags")
	if err != nil {
		return nil, err
	}
	var elementTags []map[string]string
	for _, m := range elementTagMaps {
		tagMap, err := stringMapLiteral(m)
		if err != nil {
			return nil, configErrf("element_tags: %s", err)
		}
		elementTags = append(elementTags, tagMap)
	}
	allTags, err := stringMap(cfg, "all_tags")
	if err != nil {
		return nil, err
	}
	pass := &transform.SplitTextPass{
		Criteria:       criteria,
		TextRegex:      textRegex,
		ElementTags:    elementTags,
		AllTags:        allTags,
		AllowNoMatches: boolOr(cfg, "allow_no_matches", false),
	}
	return &pipeline.TransformStep{Kind: kind, Pass: pass, Env: env}, nil
}

// stringMapLiteral converts a map[string]any already known to hold only
// string values (element_tags entries aren't wrapped under a named key, so
// stringMap's lookup-by-key shape doesn't fit).
func stringMapLiteral(m map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return nil, configErrf("%q: expected a string value", k)
		}
		out[k] = s
	}
	return out, nil
}

func buildStripElements(kind string, cfg map[string]any, env *transform.Env) (pipeline.Step, error) {
	attrsRe, err := stringSlice(cfg, "remove_attrs_re")
	if err != nil {
		return nil, err
	}
	stylesRe, err := stringSlice(cfg, "remove_styles_re")
	if err != nil {
		return nil, err
	}
	styleRulesRe, err := stringSlice(cfg, "remove_style_rules_re")
	if err != nil {
		return nil, err
	}
	pass := &transform.StripElementsPass{
		RemoveAttrsRe:      attrsRe,
		RemoveStylesRe:     stylesRe,
		RemoveStyleRulesRe: styleRulesRe,
	}
	return &pipeline.TransformStep{Kind: kind, Pass: pass, Env: env}, nil
}

func buildTagMatching(kind string, cfg map[string]any, env *transform.Env) (pipeline.Step, error) {
	matchCfg, _ := subMap(cfg, "match")
	criteria, err := decodeCriteria(matchCfg)
	if err != nil {
		return nil, err
	}
	vars, err := decodeVariables(cfg, "variables")
	if err != nil {
		return nil, err
	}
	tagsCfg, _ := subMap(cfg, "tags")
	add, err := decodeTagsAdd(tagsCfg, "add")
	if err != nil {
		return nil, err
	}
	remove, err := stringSlice(tagsCfg, "remove")
	if err != nil {
		return nil, err
	}
	pass := &transform.TagMatchingPass{
		Criteria:     criteria,
		Variables:    vars,
		TagsAdd:      add,
		TagsRemove:   remove,
		IgnoreErrors: boolOr(cfg, "ignore_errors", false),
	}
	return &pipeline.TransformStep{Kind: kind, Pass: pass, Env: env}, nil
}

func buildExtractJSON(kind string, cfg map[string]any) (pipeline.Step, error) {
	spec, err := decodeExtractSpec(cfg)
	if err != nil {
		return nil, err
	}
	compiled, err := extract.Compile(spec)
	if err != nil {
		return nil, configErrf("extract_json: %s", err)
	}
	return &pipeline.ExtractStep{Kind: kind, Program: compiled}, nil
}
