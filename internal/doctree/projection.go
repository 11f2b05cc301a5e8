package doctree

// ToJSON projects an element into the JSON-ready view the extraction stage
// and debugging dumps both consume (spec §4.6). Empty tags/style/attribs/
// attrs/style_rules maps, an empty url, and empty nested, bullet-list and
// table-cell element lists are omitted, following the original
// DictConverter's default-value elision; row/col, level, list_type,
// Section content and the element lists of paragraphs, bullet items,
// tables and DocContent are always written, even when zero or empty.
func ToJSON(e Element) map[string]any {
	if e == nil {
		return nil
	}
	out := map[string]any{"type": string(e.Type())}
	putMap(out, "tags", e.Tags())
	putMap(out, "style", e.Style())
	putMap(out, "attribs", e.Attribs())

	switch v := e.(type) {
	case *TextRun:
		out["text"] = v.Text
		if v.URL != "" {
			out["url"] = v.URL
		}
	case *Chips:
		out["text"] = v.Text
		if v.URL != "" {
			out["url"] = v.URL
		}
	case *Paragraph:
		out["elements"] = projectSlice(v.Children())
	case *BulletItem:
		out["elements"] = projectSlice(v.Paragraph.Children())
		out["list_type"] = v.ListType
		out["level"] = v.Level
		if len(v.Nested) > 0 {
			nested := make([]any, len(v.Nested))
			for i, n := range v.Nested {
				nested[i] = ToJSON(n)
			}
			out["nested"] = nested
		}
	case *BulletList:
		items := make([]any, len(v.Items))
		for i, it := range v.Items {
			items[i] = ToJSON(it)
		}
		if len(items) > 0 {
			out["elements"] = items
		}
	case *Table:
		out["rows"] = v.Rows
		out["cols"] = v.Cols
		cells := make([]any, len(v.Cells))
		for i, c := range v.Cells {
			cells[i] = ToJSON(c)
		}
		out["elements"] = cells
	case *TableCell:
		out["row"] = v.Row
		out["col"] = v.Col
		if len(v.Elements) > 0 {
			out["elements"] = projectSlice(v.DocContent.Children())
		}
	case *DocContent:
		out["elements"] = projectSlice(v.Children())
	case *Section:
		if v.Heading != nil {
			out["heading"] = ToJSON(v.Heading)
		}
		out["level"] = v.Level
		out["content"] = projectSlice(v.Content)
	case *Document:
		if len(v.Attrs) > 0 {
			attrs := make(map[string]any, len(v.Attrs))
			for k, val := range v.Attrs {
				attrs[k] = val
			}
			out["attrs"] = attrs
		}
		if len(v.SharedData.StyleRules) > 0 {
			rules := make(map[string]any, len(v.SharedData.StyleRules))
			for k, rule := range v.SharedData.StyleRules {
				r := make(map[string]any, len(rule))
				for rk, rv := range rule {
					r[rk] = rv
				}
				rules[k] = r
			}
			out["shared_data"] = map[string]any{"style_rules": rules}
		}
		out["content"] = projectSlice(v.Content)
	}
	return out
}

func putMap(out map[string]any, key string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	v := make(map[string]any, len(m))
	for k, val := range m {
		v[k] = val
	}
	out[key] = v
}

func projectSlice(elems []Element) []any {
	out := make([]any, len(elems))
	for i, e := range elems {
		out[i] = ToJSON(e)
	}
	return out
}
