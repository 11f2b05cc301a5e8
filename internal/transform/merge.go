package transform

import (
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/traverse"
)

// MergeByTagPass coalesces adjacent siblings matched by Criteria within
// each parent. Criteria's element_expressions may reference {0.*} (the
// left candidate) and {1.*} (the right candidate) to compare them. If
// MergeAsTextRun is true the pair becomes a single TextRun whose text is
// the concatenation of both candidates' aggregated text; otherwise the
// left candidate absorbs the right's content and the right is dropped
// (spec §4.5).
type MergeByTagPass struct {
	Criteria       *matcher.Criteria
	MergeAsTextRun bool
}

func (p *MergeByTagPass) Apply(env *Env, doc *doctree.Document) error {
	menv := matcherEnvFor(doc, env)

	return EditLists(doc, func(list []doctree.Element, ancestors []doctree.Element) ([]doctree.Element, error) {
		if len(list) == 0 {
			return list, nil
		}
		out := []doctree.Element{list[0]}
		for i := 1; i < len(list); i++ {
			left := out[len(out)-1]
			right := list[i]

			ctx := traverse.Context{Element: left, Ancestors: ancestors}
			ok, err := matcher.Match(menv, p.Criteria, ctx, []doctree.Element{left, right})
			if err != nil {
				return nil, &PassError{Pass: "merge_by_tag", Msg: err.Error()}
			}
			if ok {
				out[len(out)-1] = mergePair(left, right, p.MergeAsTextRun)
				continue
			}
			out = append(out, right)
		}
		return out, nil
	})
}

func mergePair(left, right doctree.Element, asTextRun bool) doctree.Element {
	if asTextRun {
		merged := doctree.NewTextRun(doctree.AggregatedText(left) + doctree.AggregatedText(right))
		copyTags(left, merged)
		return merged
	}
	absorbContent(left, right)
	return left
}

func copyTags(from, to doctree.Element) {
	for k, v := range from.Tags() {
		to.Tags()[k] = v
	}
}

// absorbContent appends right's own content onto left's, for the container
// kinds that plausibly get merged: DocContent, Paragraph, Section.
func absorbContent(left, right doctree.Element) {
	switch l := left.(type) {
	case *doctree.DocContent:
		if r, ok := right.(*doctree.DocContent); ok {
			l.Elements = append(l.Elements, r.Elements...)
		}
	case *doctree.Paragraph:
		if r, ok := right.(*doctree.Paragraph); ok {
			l.Elements = append(l.Elements, r.Elements...)
		}
	case *doctree.Section:
		if r, ok := right.(*doctree.Section); ok {
			l.Content = append(l.Content, r.Content...)
		}
	}
}
