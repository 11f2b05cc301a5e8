package transform

import (
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/traverse"
	"github.com/docweave/docweave/internal/variables"
)

// TagMatchingPass computes the declared variables for every element
// matched by Criteria, then applies TagsAdd (template-rendered) and
// TagsRemove ("*" clears all tags first) to it (spec §4.5).
type TagMatchingPass struct {
	Criteria     *matcher.Criteria
	Variables    map[string]*variables.Spec
	TagsAdd      map[string]string
	TagsRemove   []string
	IgnoreErrors bool
}

func (p *TagMatchingPass) Apply(env *Env, doc *doctree.Document) error {
	menv := matcherEnvFor(doc, env)
	var applyErr error

	traverse.Walk(doc, func(ctx traverse.Context) bool {
		ok, err := matcher.Match(menv, p.Criteria, ctx, []doctree.Element{ctx.Element})
		if err != nil {
			applyErr = &PassError{Pass: "tag_matching", Msg: err.Error()}
			return false
		}
		if !ok {
			return true
		}

		vars := variables.Set{}
		for name, spec := range p.Variables {
			v, err := variables.Evaluate(env.Variables, spec, ctx, func() any {
				return doctree.ToJSON(ctx.Element)
			})
			if err != nil {
				if p.IgnoreErrors {
					return true
				}
				applyErr = &PassError{Pass: "tag_matching", Msg: err.Error()}
				return false
			}
			vars[name] = v
		}

		rendered, err := variables.RenderAdd(p.TagsAdd, vars, p.IgnoreErrors)
		if err != nil {
			applyErr = &PassError{Pass: "tag_matching", Msg: err.Error()}
			return false
		}

		applyTagEdits(ctx.Element, p.TagsRemove, rendered)
		return true
	})
	return applyErr
}

func applyTagEdits(e doctree.Element, remove []string, add map[string]string) {
	tags := e.Tags()
	for _, r := range remove {
		if r == "*" {
			for k := range tags {
				delete(tags, k)
			}
			continue
		}
		delete(tags, r)
	}
	for k, v := range add {
		tags[k] = v
	}
}
