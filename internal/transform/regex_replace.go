package transform

import (
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/traverse"
)

// RegexReplacePass applies Substitutions to the text field of every
// TextRun/Chips matched by Criteria, in order, backreferences supported
// (spec §4.5).
type RegexReplacePass struct {
	Criteria      *matcher.Criteria
	Substitutions []TextSubstitution
}

// TextSubstitution is one regex/replace/operation step, reusing the same
// shape as the variable engine's substitutions so both pass and variable
// configuration parse identically.
type TextSubstitution struct {
	Regex      string
	Substitute string
	Operation  string
}

func (p *RegexReplacePass) Apply(env *Env, doc *doctree.Document) error {
	menv := matcherEnvFor(doc, env)
	var applyErr error

	traverse.Walk(doc, func(ctx traverse.Context) bool {
		ok, err := matcher.Match(menv, p.Criteria, ctx, []doctree.Element{ctx.Element})
		if err != nil {
			applyErr = &PassError{Pass: "regex_replace", Msg: err.Error()}
			return false
		}
		if !ok {
			return true
		}
		text, set := textSetter(ctx.Element)
		if set == nil {
			return true
		}
		s := text
		for _, sub := range p.Substitutions {
			re, err := env.Cache.Compile(sub.Regex)
			if err != nil {
				applyErr = &PassError{Pass: "regex_replace", Msg: err.Error()}
				return false
			}
			s = re.ReplaceAllString(s, toGoReplacement(sub.Substitute))
			s = applyCaseOp(s, sub.Operation)
		}
		set(s)
		return true
	})
	return applyErr
}

// textSetter returns an element's current text and a setter for it, or a
// nil setter if the element doesn't carry a text field at all.
func textSetter(e doctree.Element) (string, func(string)) {
	switch v := e.(type) {
	case *doctree.TextRun:
		return v.Text, func(s string) { v.Text = s }
	case *doctree.Chips:
		return v.Text, func(s string) { v.Text = s }
	default:
		return "", nil
	}
}
