// Package traverse walks a document tree in preorder depth-first order,
// yielding a Context per element: its ancestor path, its (row, col) within
// the nearest enclosing Table if any, and its position among siblings.
package traverse

import "github.com/docweave/docweave/internal/doctree"

// Context describes one visited element during a walk.
type Context struct {
	Element doctree.Element

	// Ancestors lists elements from the walk's root down to (not
	// including) Element itself.
	Ancestors []doctree.Element

	// Row, Col, TableRows and TableCols are valid only when HasPosition
	// is true: the element lies within a Table, either as the cell
	// itself or as one of the cell's descendants. TableRows/TableCols
	// give the enclosing table's full geometry, needed to resolve
	// negative (from-the-end) position bounds. Table is the enclosing
	// Table itself, letting the variable engine's element_at look up a
	// sibling cell.
	Row, Col             int
	TableRows, TableCols int
	Table                *doctree.Table
	HasPosition          bool

	// Index, First and Last describe the element's position among its
	// siblings in its parent's Children() order.
	Index int
	First bool
	Last  bool
}

// Visit is called once per element in preorder. Returning false stops the
// walk early without visiting further elements — this is what makes the
// traversal lazy: a caller satisfied after the first match need not pay
// for the rest of the tree.
type Visit func(Context) bool

// Walk performs a preorder depth-first traversal starting at root, with an
// empty ancestor path.
func Walk(root doctree.Element, visit Visit) bool {
	return WalkFrom(root, nil, visit)
}

// WalkFrom performs a preorder depth-first traversal starting at root, but
// with a caller-supplied ancestor prefix. This is how the engine "resumes"
// traversal at a sub-tree for nested queries (e.g. match_descendent,
// nested ExtractSpecs) while keeping match_ancestor_list evaluation correct
// relative to the true document root.
func WalkFrom(root doctree.Element, ancestors []doctree.Element, visit Visit) bool {
	return walkNode(root, ancestors, tablePos{}, 0, true, true, visit)
}

// tablePos carries the enclosing table position, if any, down through a walk.
type tablePos struct {
	row, col, rows, cols int
	table                *doctree.Table
	has                  bool
}

func walkNode(e doctree.Element, ancestors []doctree.Element, pos tablePos, index int, first, last bool, visit Visit) bool {
	ctx := Context{
		Element:     e,
		Ancestors:   ancestors,
		Row:         pos.row,
		Col:         pos.col,
		TableRows:   pos.rows,
		TableCols:   pos.cols,
		Table:       pos.table,
		HasPosition: pos.has,
		Index:       index,
		First:       first,
		Last:        last,
	}
	if !visit(ctx) {
		return false
	}

	children := e.Children()
	if len(children) == 0 {
		return true
	}
	childAncestors := make([]doctree.Element, len(ancestors)+1)
	copy(childAncestors, ancestors)
	childAncestors[len(ancestors)] = e

	tbl, isTable := e.(*doctree.Table)
	for i, c := range children {
		childPos := pos
		if isTable {
			if cell, ok := c.(*doctree.TableCell); ok {
				childPos = tablePos{row: cell.Row, col: cell.Col, rows: tbl.Rows, cols: tbl.Cols, table: tbl, has: true}
			}
		}
		if !walkNode(c, childAncestors, childPos, i, i == 0, i == len(children)-1, visit) {
			return false
		}
	}
	return true
}

// Collect runs a full walk and returns every visited Context. Prefer Walk
// directly when a predicate can short-circuit; Collect is for callers that
// genuinely need the whole sequence (e.g. merge_by_tag's adjacency scan).
func Collect(root doctree.Element) []Context {
	var out []Context
	Walk(root, func(c Context) bool {
		out = append(out, c)
		return true
	})
	return out
}

// Any reports whether any visited element (in preorder, starting at root
// itself) satisfies pred.
func Any(root doctree.Element, pred func(Context) bool) bool {
	found := false
	Walk(root, func(c Context) bool {
		if pred(c) {
			found = true
			return false
		}
		return true
	})
	return found
}
