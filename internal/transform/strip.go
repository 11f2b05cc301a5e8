package transform

import (
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/traverse"
)

// defaultStripAttrs and defaultStripStyles match the original's default
// cleanup lists: attributes/styles a source parser or browser leaves
// behind that have no bearing on any later pass or on the extracted
// output. remove_style_rules_re has no default — the original leaves
// Document-level style_rules untouched unless a pipeline author asks.
var (
	defaultStripAttrs  = []string{`style`}
	defaultStripStyles = []string{
		`padding.*`, `font-family`, `line-height`, `orphans`,
		`page-break-after`, `widows`, `vertical-align`, `margin.*`, `text-align`,
	}
)

// StripElementsPass removes keys from every element's attribs and style,
// and from Document.shared_data.style_rules, whose names match any of the
// given regexes. A zero-value RemoveAttrsRe/RemoveStylesRe falls back to
// the defaults above, mirroring the original's behavior of always
// stripping browser-export noise even when a pipeline author didn't ask
// for it explicitly; RemoveStyleRulesRe has no such fallback.
type StripElementsPass struct {
	RemoveAttrsRe      []string
	RemoveStylesRe     []string
	RemoveStyleRulesRe []string
}

func (p *StripElementsPass) Apply(env *Env, doc *doctree.Document) error {
	attrsRe := p.RemoveAttrsRe
	if attrsRe == nil {
		attrsRe = defaultStripAttrs
	}
	stylesRe := p.RemoveStylesRe
	if stylesRe == nil {
		stylesRe = defaultStripStyles
	}

	var stripErr error
	strip := func(m map[string]string, patterns []string) {
		for _, pat := range patterns {
			re, err := env.Cache.Compile(pat)
			if err != nil {
				stripErr = &PassError{Pass: "strip_elements", Msg: err.Error()}
				return
			}
			for k := range m {
				if re.MatchString(k) {
					delete(m, k)
				}
			}
		}
	}

	traverse.Walk(doc, func(ctx traverse.Context) bool {
		strip(ctx.Element.Attribs(), attrsRe)
		if stripErr != nil {
			return false
		}
		strip(ctx.Element.Style(), stylesRe)
		return stripErr == nil
	})
	if stripErr != nil {
		return stripErr
	}

	for _, rules := range doc.SharedData.StyleRules {
		strip(rules, p.RemoveStyleRulesRe)
		if stripErr != nil {
			return stripErr
		}
	}
	return nil
}
