// Package doctree defines the typed document tree that the transformation
// engine operates on: a discriminated union of elements produced by a
// source, mutated in place by transformation passes, and finally projected
// to JSON for extraction.
package doctree

import (
	"fmt"
	"strings"
)

// ElementType names a concrete variant of Element. Matchers compare against
// it directly, except for the ParagraphElement capability, which several
// leaf variants satisfy without being named ElementType themselves.
type ElementType string

const (
	TypeTextRun    ElementType = "TextRun"
	TypeChips      ElementType = "Chips"
	TypeParagraph  ElementType = "Paragraph"
	TypeBulletItem ElementType = "BulletItem"
	TypeBulletList ElementType = "BulletList"
	TypeTable      ElementType = "Table"
	TypeDocContent ElementType = "DocContent"
	TypeSection    ElementType = "Section"
	TypeDocument   ElementType = "Document"

	// TypeParagraphElement is the abstract capability name used in matcher
	// element_types sets; it is never the Type() of a concrete element.
	TypeParagraphElement ElementType = "ParagraphElement"
)

// Element is the common interface satisfied by every tree node. Children
// returns structural children in traversal order; leaves return nil.
type Element interface {
	Type() ElementType
	Tags() map[string]string
	Style() map[string]string
	Attribs() map[string]string
	Children() []Element
}

// ParagraphElement is the capability set matched polymorphically by the
// "ParagraphElement" element type: inline leaves that may appear in a
// Paragraph's element sequence.
type ParagraphElement interface {
	Element
	isParagraphElement()
}

// base holds the attribute records every element variant carries.
type base struct {
	tags    map[string]string
	style   map[string]string
	attribs map[string]string
}

func newBase() base {
	return base{
		tags:    map[string]string{},
		style:   map[string]string{},
		attribs: map[string]string{},
	}
}

func (b *base) Tags() map[string]string    { return b.tags }
func (b *base) Style() map[string]string   { return b.style }
func (b *base) Attribs() map[string]string { return b.attribs }

// TextRun is a leaf carrying literal text, optionally hyperlinked.
type TextRun struct {
	base
	Text string
	URL  string
}

// NewTextRun constructs a TextRun with initialized attribute maps.
func NewTextRun(text string) *TextRun {
	return &TextRun{base: newBase(), Text: text}
}

func (t *TextRun) Type() ElementType   { return TypeTextRun }
func (t *TextRun) Children() []Element { return nil }
func (t *TextRun) isParagraphElement() {}

// Chips is a leaf representing an inline smart chip (a linked person,
// file, date, or similar embedded reference in a Docs export).
type Chips struct {
	base
	Text string
	URL  string
}

// NewChips constructs a Chips element with initialized attribute maps.
func NewChips(text string) *Chips {
	return &Chips{base: newBase(), Text: text}
}

func (c *Chips) Type() ElementType   { return TypeChips }
func (c *Chips) Children() []Element { return nil }
func (c *Chips) isParagraphElement() {}

// Paragraph is an ordered sequence of ParagraphElements.
type Paragraph struct {
	base
	Elements []ParagraphElement
}

// NewParagraph constructs an empty Paragraph with initialized attribute maps.
func NewParagraph() *Paragraph {
	return &Paragraph{base: newBase()}
}

func (p *Paragraph) Type() ElementType { return TypeParagraph }

func (p *Paragraph) Children() []Element {
	out := make([]Element, len(p.Elements))
	for i, e := range p.Elements {
		out[i] = e
	}
	return out
}

// Append adds a ParagraphElement to the end of the paragraph.
func (p *Paragraph) Append(e ParagraphElement) {
	p.Elements = append(p.Elements, e)
}

// BulletItem is a Paragraph extended with a nested list of BulletItems at
// a deeper indent level, and the list style (e.g. "bullet", "number").
type BulletItem struct {
	Paragraph
	Nested   []*BulletItem
	ListType string
	Level    int
}

// NewBulletItem constructs an empty BulletItem at the given level.
func NewBulletItem(level int, listType string) *BulletItem {
	return &BulletItem{Paragraph: *NewParagraph(), Level: level, ListType: listType}
}

func (b *BulletItem) Type() ElementType { return TypeBulletItem }

func (b *BulletItem) Children() []Element {
	out := append([]Element{}, b.Paragraph.Children()...)
	for _, n := range b.Nested {
		out = append(out, n)
	}
	return out
}

// PrefixText returns this item's own paragraph text, excluding nested
// items — the "paragraph prefix" aggregation spec §4.1 calls for. Full
// aggregation (including nested items) goes through AggregatedText below.
func (b *BulletItem) PrefixText() string {
	return AggregatedText(&b.Paragraph)
}

// BulletList is a container of top-level BulletItems, synthesized by the
// nest_bullets transformation pass.
type BulletList struct {
	base
	Items []*BulletItem
}

// NewBulletList constructs an empty BulletList.
func NewBulletList() *BulletList {
	return &BulletList{base: newBase()}
}

func (l *BulletList) Type() ElementType { return TypeBulletList }

func (l *BulletList) Children() []Element {
	out := make([]Element, len(l.Items))
	for i, it := range l.Items {
		out[i] = it
	}
	return out
}

// DocContent is a container cell holding an ordered sequence of elements
// (paragraphs, lists, nested tables).
type DocContent struct {
	base
	Elements []Element
}

// NewDocContent constructs an empty DocContent.
func NewDocContent() *DocContent {
	return &DocContent{base: newBase()}
}

func (d *DocContent) Type() ElementType { return TypeDocContent }
func (d *DocContent) Children() []Element {
	return append([]Element{}, d.Elements...)
}

// Append adds an element to the cell's content.
func (d *DocContent) Append(e Element) {
	d.Elements = append(d.Elements, e)
}

// Table is a 2-D grid of DocContent cells, stored row-major. Every cell
// carries its own Row/Col for direct lookup during traversal.
type Table struct {
	base
	Rows  int
	Cols  int
	Cells []*TableCell
}

// TableCell wraps a DocContent with its coordinates within the table.
type TableCell struct {
	*DocContent
	Row int
	Col int
}

// NewTable constructs a Table from row-major cells, validating that the
// cell count matches rows*cols and that coordinates are unique, per the
// structural invariant in spec §3.2. A mismatch is a StructuralError.
func NewTable(rows, cols int, cells []*TableCell) (*Table, error) {
	if len(cells) != rows*cols {
		return nil, &StructuralError{
			Msg: fmt.Sprintf("table: %d cells does not match %d rows x %d cols", len(cells), rows, cols),
		}
	}
	seen := make(map[[2]int]bool, len(cells))
	for _, c := range cells {
		if c.Row < 0 || c.Row >= rows || c.Col < 0 || c.Col >= cols {
			return nil, &StructuralError{
				Msg: fmt.Sprintf("table: cell (%d,%d) out of bounds for %dx%d", c.Row, c.Col, rows, cols),
			}
		}
		key := [2]int{c.Row, c.Col}
		if seen[key] {
			return nil, &StructuralError{
				Msg: fmt.Sprintf("table: duplicate cell at (%d,%d)", c.Row, c.Col),
			}
		}
		seen[key] = true
	}
	return &Table{base: newBase(), Rows: rows, Cols: cols, Cells: cells}, nil
}

func (t *Table) Type() ElementType { return TypeTable }

func (t *Table) Children() []Element {
	out := make([]Element, len(t.Cells))
	for i, c := range t.Cells {
		out[i] = c
	}
	return out
}

// CellAt returns the cell at (row, col), or false if out of bounds.
func (t *Table) CellAt(row, col int) (*TableCell, bool) {
	if row < 0 || row >= t.Rows || col < 0 || col >= t.Cols {
		return nil, false
	}
	for _, c := range t.Cells {
		if c.Row == row && c.Col == col {
			return c, true
		}
	}
	return nil, false
}

// Section carries a heading paragraph, its level (1-6), and the ordered
// content that falls under it, synthesized by nest_sections.
type Section struct {
	base
	Heading *Paragraph
	Level   int
	Content []Element
}

// NewSection constructs a Section with the given heading and level.
func NewSection(heading *Paragraph, level int) *Section {
	return &Section{base: newBase(), Heading: heading, Level: level}
}

func (s *Section) Type() ElementType { return TypeSection }

func (s *Section) Children() []Element {
	out := make([]Element, 0, len(s.Content)+1)
	if s.Heading != nil {
		out = append(out, s.Heading)
	}
	out = append(out, s.Content...)
	return out
}

// Append adds an element to the section's content.
func (s *Section) Append(e Element) {
	s.Content = append(s.Content, e)
}

// HeadingText returns the aggregated text of the section's heading only,
// the "heading-only" aggregation spec §4.1 calls for.
func (s *Section) HeadingText() string {
	if s.Heading == nil {
		return ""
	}
	return AggregatedText(s.Heading)
}

// SharedData holds document-wide data referenced by elements via
// attribs.class, namely the stylesheet rules lifted from the source.
type SharedData struct {
	StyleRules map[string]map[string]string
}

// Document is the tree root.
type Document struct {
	base
	Attrs      map[string]string
	SharedData SharedData
	Content    []Element
}

// NewDocument constructs an empty Document with initialized maps.
func NewDocument() *Document {
	return &Document{
		base:  newBase(),
		Attrs: map[string]string{},
		SharedData: SharedData{
			StyleRules: map[string]map[string]string{},
		},
	}
}

func (d *Document) Type() ElementType { return TypeDocument }

func (d *Document) Children() []Element {
	return append([]Element{}, d.Content...)
}

// Append adds a top-level element to the document.
func (d *Document) Append(e Element) {
	d.Content = append(d.Content, e)
}

// AggregatedText computes the depth-first concatenation of descendant
// TextRun/Chips text with no separator, per spec §4.1. Leaves define it as
// their own text; every container recurses over Children().
func AggregatedText(e Element) string {
	switch v := e.(type) {
	case *TextRun:
		return v.Text
	case *Chips:
		return v.Text
	}
	var b strings.Builder
	for _, c := range e.Children() {
		b.WriteString(AggregatedText(c))
	}
	return b.String()
}

// StructuralError reports a tree invariant violated at construction time
// (spec §7, category 2): fatal for the offending document, not the pipeline.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return e.Msg }
