package transform

import "github.com/docweave/docweave/internal/doctree"

// HeadingLevelTag is the tag a source parser sets on a Paragraph to mark it
// as an h1..h6 heading, carrying "1".."6". NestSectionsPass looks for this
// tag rather than a distinct tree variant, since spec §3.1 has no separate
// Heading element — a heading is just a Paragraph until this pass runs.
const HeadingLevelTag = "heading_level"

// NestSectionsPass interprets heading levels to build the Section tree
// described in spec §3.2/§4.5: a heading opens a Section at its level;
// content at a deeper level nests inside; a heading at the same or a
// shallower level closes it. A heading that skips a level (e.g. an h1
// followed directly by an h3) is wrapped in an intermediate headingless
// Section so the level sequence stays contiguous.
type NestSectionsPass struct{}

func (NestSectionsPass) Apply(env *Env, doc *doctree.Document) error {
	return EditLists(doc, func(list []doctree.Element, _ []doctree.Element) ([]doctree.Element, error) {
		if !anyHeading(list) {
			return list, nil
		}
		top := structureDoc(1, nil, list)
		return top.Content, nil
	})
}

func anyHeading(list []doctree.Element) bool {
	for _, e := range list {
		if _, ok := headingLevel(e); ok {
			return true
		}
	}
	return false
}

func headingLevel(e doctree.Element) (int, bool) {
	p, ok := e.(*doctree.Paragraph)
	if !ok {
		return 0, false
	}
	lvl, ok := p.Tags()[HeadingLevelTag]
	if !ok {
		return 0, false
	}
	switch lvl {
	case "1":
		return 1, true
	case "2":
		return 2, true
	case "3":
		return 3, true
	case "4":
		return 4, true
	case "5":
		return 5, true
	case "6":
		return 6, true
	default:
		return 0, false
	}
}

// structureDoc ports the original's _structure_doc: build one Section at
// level, given the heading (if any) that opened it and the items available
// at level-or-deeper.
func structureDoc(level int, heading *doctree.Paragraph, items []doctree.Element) *doctree.Section {
	if heading != nil {
		if hl, _ := headingLevel(heading); level < hl {
			wrapper := doctree.NewSection(nil, level)
			wrapper.Content = []doctree.Element{structureDoc(level+1, heading, items)}
			return wrapper
		}
	}

	firstHeadingIdx := -1
	for i, item := range items {
		if _, ok := headingLevel(item); ok {
			firstHeadingIdx = i
			break
		}
	}
	if firstHeadingIdx == -1 {
		firstHeadingIdx = len(items)
	}
	intro := append([]doctree.Element{}, items[:firstHeadingIdx]...)

	var levelSections []doctree.Element
	lastHeadingIdx := len(items)
	for i := len(items) - 1; i >= firstHeadingIdx; i-- {
		hl, ok := headingLevel(items[i])
		if !ok {
			continue
		}
		if hl == level {
			newItems := items[i+1 : lastHeadingIdx]
			sub := structureDoc(level+1, items[i].(*doctree.Paragraph), newItems)
			levelSections = append(levelSections, sub)
			lastHeadingIdx = i
		}
	}

	if lastHeadingIdx != firstHeadingIdx {
		newItems := items[firstHeadingIdx:lastHeadingIdx]
		levelSections = append(levelSections, structureDoc(level+1, nil, newItems))
	}

	// levelSections was built back-to-front; reverse it.
	for l, r := 0, len(levelSections)-1; l < r; l, r = l+1, r-1 {
		levelSections[l], levelSections[r] = levelSections[r], levelSections[l]
	}

	sec := doctree.NewSection(heading, level)
	sec.Content = append(intro, levelSections...)
	return sec
}
