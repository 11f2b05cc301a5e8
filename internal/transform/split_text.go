package transform

import (
	"regexp"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/traverse"
)

// SplitTextPass replaces each matched text-bearing element by one new
// TextRun per capture group of TextRegex (or one per full match if
// TextRegex has no groups). ElementTags assigns tags positionally to the
// first len(ElementTags) produced pieces; AllTags is applied to every
// piece. If AllowNoMatches is false, a matched element with no regex
// match fails the pass; if true, it's left untouched (spec §4.5).
type SplitTextPass struct {
	Criteria       *matcher.Criteria
	TextRegex      string
	ElementTags    []map[string]string
	AllTags        map[string]string
	AllowNoMatches bool
}

func (p *SplitTextPass) Apply(env *Env, doc *doctree.Document) error {
	menv := matcherEnvFor(doc, env)
	re, err := env.Cache.Compile(p.TextRegex)
	if err != nil {
		return &PassError{Pass: "split_text", Msg: err.Error()}
	}

	split := map[doctree.Element][]doctree.Element{}
	var matchErr error

	traverse.Walk(doc, func(ctx traverse.Context) bool {
		text, set := textSetter(ctx.Element)
		if set == nil {
			return true
		}
		ok, err := matcher.Match(menv, p.Criteria, ctx, []doctree.Element{ctx.Element})
		if err != nil {
			matchErr = &PassError{Pass: "split_text", Msg: err.Error()}
			return false
		}
		if !ok {
			return true
		}
		pieces, matched := splitOne(re, text, p.ElementTags, p.AllTags)
		if !matched {
			if !p.AllowNoMatches {
				matchErr = &PassError{Pass: "split_text", Msg: "no match for an element with allow_no_matches=false"}
				return false
			}
			return true
		}
		split[ctx.Element] = pieces
		return true
	})
	if matchErr != nil {
		return matchErr
	}
	if len(split) == 0 {
		return nil
	}

	return EditLists(doc, func(list []doctree.Element, _ []doctree.Element) ([]doctree.Element, error) {
		var out []doctree.Element
		for _, e := range list {
			if pieces, ok := split[e]; ok {
				out = append(out, pieces...)
				continue
			}
			out = append(out, e)
		}
		return out, nil
	})
}

func splitOne(re *regexp.Regexp, text string, elementTags []map[string]string, allTags map[string]string) ([]doctree.Element, bool) {
	hasGroups := re.NumSubexp() > 0

	var pieces []string
	if hasGroups {
		matches := re.FindAllStringSubmatch(text, -1)
		if matches == nil {
			return nil, false
		}
		for _, m := range matches {
			pieces = append(pieces, m[1:]...)
		}
	} else {
		matches := re.FindAllString(text, -1)
		if matches == nil {
			return nil, false
		}
		pieces = matches
	}

	out := make([]doctree.Element, len(pieces))
	for i, piece := range pieces {
		run := doctree.NewTextRun(piece)
		for k, v := range allTags {
			run.Tags()[k] = v
		}
		if i < len(elementTags) {
			for k, v := range elementTags[i] {
				run.Tags()[k] = v
			}
		}
		out[i] = run
	}
	return out, true
}
