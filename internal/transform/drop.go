package transform

import (
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/traverse"
)

// DropElementsPass removes elements matched by Criteria, preserving sibling
// order among survivors. A dropped parent takes its descendants with it
// (spec §4.5).
type DropElementsPass struct {
	Criteria *matcher.Criteria
}

func (p *DropElementsPass) Apply(env *Env, doc *doctree.Document) error {
	menv := matcherEnvFor(doc, env)

	drop := map[doctree.Element]bool{}
	var matchErr error
	traverse.Walk(doc, func(ctx traverse.Context) bool {
		ok, err := matcher.Match(menv, p.Criteria, ctx, []doctree.Element{ctx.Element})
		if err != nil {
			matchErr = err
			return false
		}
		if ok {
			drop[ctx.Element] = true
		}
		return true
	})
	if matchErr != nil {
		return &PassError{Pass: "drop_elements", Msg: matchErr.Error()}
	}

	return EditLists(doc, func(list []doctree.Element, _ []doctree.Element) ([]doctree.Element, error) {
		out := make([]doctree.Element, 0, len(list))
		for _, e := range list {
			if !drop[e] {
				out = append(out, e)
			}
		}
		return out, nil
	})
}
