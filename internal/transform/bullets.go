package transform

import "github.com/docweave/docweave/internal/doctree"

// NestBulletsPass interprets each BulletItem's Level to build the Nested
// tree spec §3.2 describes, then wraps the result in a single BulletList.
// Consecutive BulletLists in a container are merged into one before
// nesting, mirroring how a source parser may emit one BulletList per
// paragraph-adjacent run of list items.
type NestBulletsPass struct{}

func (NestBulletsPass) Apply(env *Env, doc *doctree.Document) error {
	return EditLists(doc, func(list []doctree.Element, _ []doctree.Element) ([]doctree.Element, error) {
		return nestBulletListsInSlice(list), nil
	})
}

func nestBulletListsInSlice(list []doctree.Element) []doctree.Element {
	merged := mergeAdjacentBulletLists(list)
	out := make([]doctree.Element, len(merged))
	for i, e := range merged {
		if bl, ok := e.(*doctree.BulletList); ok {
			nested := doctree.NewBulletList()
			nested.Items = nestItems(0, bl.Items)
			out[i] = nested
			continue
		}
		out[i] = e
	}
	return out
}

func mergeAdjacentBulletLists(list []doctree.Element) []doctree.Element {
	var out []doctree.Element
	var run []*doctree.BulletItem
	flush := func() {
		if run == nil {
			return
		}
		merged := doctree.NewBulletList()
		merged.Items = run
		out = append(out, merged)
		run = nil
	}
	for _, e := range list {
		if bl, ok := e.(*doctree.BulletList); ok {
			run = append(run, bl.Items...)
			continue
		}
		flush()
		out = append(out, e)
	}
	flush()
	return out
}

// nestItems ports the original's gap-wrapper algorithm: scanning backward
// through a flat, level-tagged item list, items at exactly `level` divide
// the list, absorbing any deeper-level items that followed them into their
// own Nested slice. A run of items deeper than `level` with nothing at
// `level` preceding it is wrapped in a contentless placeholder BulletItem
// so nesting depth still lines up with indentation.
func nestItems(level int, items []*doctree.BulletItem) []*doctree.BulletItem {
	var result []*doctree.BulletItem
	lastMatched := len(items)

	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if item.Level == level {
			below := items[i+1 : lastMatched]
			if len(below) > 0 {
				item.Nested = nestItems(level+1, below)
			}
			result = append(result, item)
			lastMatched = i
		}
	}

	if lastMatched != 0 {
		below := items[:lastMatched]
		wrapper := doctree.NewBulletItem(level, "empty")
		wrapper.Nested = nestItems(level+1, below)
		result = append(result, wrapper)
	}

	reversed := make([]*doctree.BulletItem, len(result))
	for i, item := range result {
		reversed[len(result)-1-i] = item
	}
	return reversed
}
