package transform

import (
	"fmt"

	"github.com/docweave/docweave/internal/doctree"
)

// ListEditor rewrites one container's child list, given the ancestor path
// down to and including that container. It runs post-order: every element
// already in the list has had its own sub-containers edited first.
type ListEditor func(list []doctree.Element, ancestors []doctree.Element) ([]doctree.Element, error)

// EditLists walks doc, applying edit to every container's child list
// bottom-up, and writes the results back into the tree in place. This is
// the shared mechanism behind drop_elements, merge_by_tag, split_text,
// nest_bullets and nest_sections — the passes that rewrite a container's
// children rather than just a leaf's fields.
func EditLists(doc *doctree.Document, edit ListEditor) error {
	newContent, err := editElementList(doc.Content, []doctree.Element{doc}, edit)
	if err != nil {
		return err
	}
	doc.Content = newContent
	return nil
}

func editElement(e doctree.Element, ancestors []doctree.Element, edit ListEditor) (doctree.Element, error) {
	childAncestors := append(append([]doctree.Element{}, ancestors...), e)

	switch v := e.(type) {
	case *doctree.Paragraph:
		next, err := editParagraphElements(v.Elements, childAncestors, edit)
		if err != nil {
			return nil, err
		}
		v.Elements = next
		return v, nil

	case *doctree.BulletItem:
		next, err := editParagraphElements(v.Elements, childAncestors, edit)
		if err != nil {
			return nil, err
		}
		v.Elements = next
		nested, err := editBulletItems(v.Nested, childAncestors, edit)
		if err != nil {
			return nil, err
		}
		v.Nested = nested
		return v, nil

	case *doctree.BulletList:
		items, err := editBulletItems(v.Items, childAncestors, edit)
		if err != nil {
			return nil, err
		}
		v.Items = items
		return v, nil

	case *doctree.DocContent:
		next, err := editElementList(v.Elements, childAncestors, edit)
		if err != nil {
			return nil, err
		}
		v.Elements = next
		return v, nil

	case *doctree.TableCell:
		next, err := editElementList(v.DocContent.Elements, childAncestors, edit)
		if err != nil {
			return nil, err
		}
		v.DocContent.Elements = next
		return v, nil

	case *doctree.Table:
		for _, c := range v.Cells {
			if _, err := editElement(c, ancestors, edit); err != nil {
				return nil, err
			}
		}
		return v, nil

	case *doctree.Section:
		if v.Heading != nil {
			next, err := editParagraphElements(v.Heading.Elements, childAncestors, edit)
			if err != nil {
				return nil, err
			}
			v.Heading.Elements = next
		}
		next, err := editElementList(v.Content, childAncestors, edit)
		if err != nil {
			return nil, err
		}
		v.Content = next
		return v, nil

	default:
		return e, nil
	}
}

func editElementList(list []doctree.Element, ancestors []doctree.Element, edit ListEditor) ([]doctree.Element, error) {
	next := make([]doctree.Element, len(list))
	for i, e := range list {
		ne, err := editElement(e, ancestors, edit)
		if err != nil {
			return nil, err
		}
		next[i] = ne
	}
	return edit(next, ancestors)
}

func editParagraphElements(list []doctree.ParagraphElement, ancestors []doctree.Element, edit ListEditor) ([]doctree.ParagraphElement, error) {
	asElems := make([]doctree.Element, len(list))
	for i, e := range list {
		ne, err := editElement(e, ancestors, edit)
		if err != nil {
			return nil, err
		}
		asElems[i] = ne
	}
	edited, err := edit(asElems, ancestors)
	if err != nil {
		return nil, err
	}
	out := make([]doctree.ParagraphElement, 0, len(edited))
	for _, e := range edited {
		pe, ok := e.(doctree.ParagraphElement)
		if !ok {
			return nil, &PassError{Pass: "structural", Msg: fmt.Sprintf("edit produced a %T that cannot live in a paragraph", e)}
		}
		out = append(out, pe)
	}
	return out, nil
}

func editBulletItems(list []*doctree.BulletItem, ancestors []doctree.Element, edit ListEditor) ([]*doctree.BulletItem, error) {
	asElems := make([]doctree.Element, len(list))
	for i, b := range list {
		ne, err := editElement(b, ancestors, edit)
		if err != nil {
			return nil, err
		}
		asElems[i] = ne
	}
	edited, err := edit(asElems, ancestors)
	if err != nil {
		return nil, err
	}
	out := make([]*doctree.BulletItem, 0, len(edited))
	for _, e := range edited {
		b, ok := e.(*doctree.BulletItem)
		if !ok {
			return nil, &PassError{Pass: "structural", Msg: fmt.Sprintf("edit produced a %T where a BulletItem is required", e)}
		}
		out = append(out, b)
	}
	return out, nil
}
