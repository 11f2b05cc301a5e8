// Package htmlsource parses a Google-Docs-exported HTML file into a
// doctree.Document: paragraphs, headings, bullet lists, tables and inline
// chips, plus the document's class-keyed stylesheet rules (spec §4.2,
// §6.2's shared_data.style_rules). It adapts the teacher's heading-stack
// walk in internal/parser/html.go from a flat title/text outline to the
// typed tree this engine operates on, and adds goquery for the
// <style>-block and class-attribute handling a plain golang.org/x/net/html
// walk has no facility for.
package htmlsource

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/docweave/docweave/internal/transform"
	"golang.org/x/net/html"
)

func init() {
	config.RegisterSourceKind("html_file", func(cfg map[string]any) (pipeline.Source, error) {
		path, _ := cfg["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("html_file: config.path is required")
		}
		return &Source{Path: path}, nil
	})
}

// Source reads one HTML file and projects it into a single doctree.Document.
type Source struct {
	Path string
}

func (s *Source) Name() string { return "html_file:" + s.Path }

func (s *Source) Documents(context.Context) ([]*doctree.Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}
	defer f.Close()

	gq, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: fmt.Sprintf("parse html: %s", err), Retryable: false}
	}

	doc := doctree.NewDocument()
	doc.SharedData.StyleRules = extractStyleRules(gq)

	body := gq.Find("body")
	if body.Length() == 0 {
		body = gq.Selection
	}
	for _, n := range body.Nodes {
		appendBlockChildren(doc, n)
	}
	return []*doctree.Document{doc}, nil
}

// classStyleRuleRe matches one ".classname { declarations }" CSS rule, the
// shape a Google Docs HTML export's <style> block uses almost exclusively
// (no combinators, no nesting).
var classStyleRuleRe = regexp.MustCompile(`\.([-\w]+)\s*\{([^}]*)\}`)

func extractStyleRules(gq *goquery.Document) map[string]map[string]string {
	rules := map[string]map[string]string{}
	gq.Find("style").Each(func(_ int, sel *goquery.Selection) {
		text := sel.Text()
		for _, m := range classStyleRuleRe.FindAllStringSubmatch(text, -1) {
			class, body := m[1], m[2]
			decls := parseDeclarations(body)
			if len(decls) == 0 {
				continue
			}
			if existing, ok := rules[class]; ok {
				for k, v := range decls {
					existing[k] = v
				}
			} else {
				rules[class] = decls
			}
		}
	})
	return rules
}

// parseDeclarations splits a "prop: value; prop2: value2" rule body on ";"
// then each segment on its first ":" — the same prop/value grammar the
// original extractor's _STYLE_RE captured with a lookahead, ported to plain
// splitting since RE2 (used by Go's regexp package) has no lookahead
// support.
func parseDeclarations(body string) map[string]string {
	out := map[string]string{}
	for _, decl := range strings.Split(body, ";") {
		decl = strings.TrimSpace(decl)
		if decl == "" {
			continue
		}
		idx := strings.Index(decl, ":")
		if idx < 0 {
			continue
		}
		prop := strings.ToLower(strings.TrimSpace(decl[:idx]))
		val := strings.TrimSpace(decl[idx+1:])
		if prop == "" || val == "" {
			continue
		}
		out[prop] = val
	}
	return out
}

func parseInlineStyle(attrs map[string]string) map[string]string {
	style, ok := attrs["style"]
	if !ok || style == "" {
		return nil
	}
	return parseDeclarations(style)
}

func nodeAttrs(n *html.Node) map[string]string {
	out := map[string]string{}
	for _, a := range n.Attr {
		out[a.Key] = a.Val
	}
	return out
}

func applyCommonAttrs(e doctree.Element, n *html.Node) {
	attrs := nodeAttrs(n)
	for k, v := range attrs {
		if k == "style" {
			continue
		}
		e.Attribs()[k] = v
	}
	for k, v := range parseInlineStyle(attrs) {
		e.Style()[k] = v
	}
}

// appendBlockChildren walks n's children, appending each recognized block
// element (heading, paragraph, list, table) to doc in document order. Text
// and inline content outside of a block container has no home in the typed
// tree and is skipped, matching the teacher's behavior of only extracting
// headings and the handful of content tags it recognizes.
func appendBlockChildren(doc *doctree.Document, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if el, ok := blockElement(c); ok {
			doc.Append(el)
			continue
		}
		switch c.Data {
		case "script", "style", "head":
		default:
			appendBlockChildren(doc, c)
		}
	}
}

// blockElement converts one block-level HTML node into its doctree
// equivalent, or reports ok=false for nodes appendBlockChildren should
// recurse through instead (div, section, body wrappers, ...).
func blockElement(n *html.Node) (doctree.Element, bool) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		p := paragraphFromInline(n)
		lvl, _ := strconv.Atoi(strings.TrimPrefix(n.Data, "h"))
		p.Tags()[transform.HeadingLevelTag] = strconv.Itoa(lvl)
		applyCommonAttrs(p, n)
		return p, true
	case "p", "blockquote":
		p := paragraphFromInline(n)
		applyCommonAttrs(p, n)
		return p, true
	case "ul", "ol":
		list := bulletListFrom(n, 0, listType(n.Data))
		applyCommonAttrs(list, n)
		return list, true
	case "table":
		t, err := tableFrom(n)
		if err != nil {
			return nil, false
		}
		applyCommonAttrs(t, n)
		return t, true
	default:
		return nil, false
	}
}

func listType(tag string) string {
	if tag == "ol" {
		return "number"
	}
	return "bullet"
}

// bulletListFrom builds a BulletList from a <ul>/<ol>'s direct <li> children.
// Nested lists inside an <li> become that item's Nested items (spec §3.1),
// one level deeper.
func bulletListFrom(n *html.Node, level int, typ string) *doctree.BulletList {
	list := doctree.NewBulletList()
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		list.Items = append(list.Items, bulletItemFrom(c, level, typ))
	}
	return list
}

func bulletItemFrom(n *html.Node, level int, typ string) *doctree.BulletItem {
	item := doctree.NewBulletItem(level, typ)
	applyCommonAttrs(item, n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			if c.Type == html.TextNode {
				appendInlineText(&item.Paragraph, c.Data)
			}
			continue
		}
		if c.Data == "ul" || c.Data == "ol" {
			nested := bulletListFrom(c, level+1, listType(c.Data))
			item.Nested = append(item.Nested, nested.Items...)
			continue
		}
		appendInlineChildren(&item.Paragraph, c)
	}
	return item
}

func tableFrom(n *html.Node) (*doctree.Table, error) {
	var rows [][]*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				var row []*html.Node
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						row = append(row, cell)
					}
				}
				rows = append(rows, row)
			case "thead", "tbody", "tfoot":
				walk(c)
			}
		}
	}
	walk(n)

	cols := 0
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	var cells []*doctree.TableCell
	for r, row := range rows {
		for c := 0; c < cols; c++ {
			content := doctree.NewDocContent()
			if c < len(row) {
				fillCellContent(content, row[c])
				applyCommonAttrs(content, row[c])
			}
			cells = append(cells, &doctree.TableCell{DocContent: content, Row: r, Col: c})
		}
	}
	return doctree.NewTable(len(rows), cols, cells)
}

func fillCellContent(content *doctree.DocContent, cell *html.Node) {
	for c := cell.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
				p := doctree.NewParagraph()
				appendInlineText(p, c.Data)
				content.Append(p)
			}
			continue
		}
		if el, ok := blockElement(c); ok {
			content.Append(el)
			continue
		}
		p := paragraphFromInline(c)
		if len(p.Elements) > 0 {
			content.Append(p)
		}
	}
}

// paragraphFromInline collects n's inline descendants (text, spans, links)
// into a single Paragraph.
func paragraphFromInline(n *html.Node) *doctree.Paragraph {
	p := doctree.NewParagraph()
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendInlineChildren(p, c)
	}
	return p
}

func appendInlineChildren(p *doctree.Paragraph, n *html.Node) {
	if n.Type == html.TextNode {
		appendInlineText(p, n.Data)
		return
	}
	if n.Type != html.ElementNode {
		return
	}
	switch n.Data {
	case "a":
		run := doctree.NewChips(textContent(n))
		run.URL = attrValue(n, "href")
		applyCommonAttrs(run, n)
		p.Append(run)
	case "br":
		appendInlineText(p, "\n")
	case "script", "style":
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			appendInlineChildren(p, c)
		}
	}
}

func appendInlineText(p *doctree.Paragraph, text string) {
	if text == "" {
		return
	}
	p.Append(doctree.NewTextRun(text))
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
