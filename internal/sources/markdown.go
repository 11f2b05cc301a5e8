package sources

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/docweave/docweave/internal/transform"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

func init() {
	config.RegisterSourceKind("markdown_file", func(cfg map[string]any) (pipeline.Source, error) {
		path, _ := cfg["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("markdown_file: config.path is required")
		}
		return &MarkdownSource{Path: path}, nil
	})
}

// MarkdownSource reads one Markdown file into a doctree.Document of flat
// Paragraphs, headings tagged with transform.HeadingLevelTag so a
// nest_sections step downstream can fold them into Sections. Adapted from
// the teacher's own heading-stack walk in parser/markdown.go, which folded
// headings inline instead of leaving that to a later pipeline stage.
type MarkdownSource struct {
	Path string
}

func (s *MarkdownSource) Name() string { return "markdown_file:" + s.Path }

func (s *MarkdownSource) Documents(context.Context) ([]*doctree.Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}
	defer f.Close()

	src, err := io.ReadAll(f)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}

	md := goldmark.New()
	reader := gmtext.NewReader(src)
	root := md.Parser().Parse(reader)

	doc := doctree.NewDocument()
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok {
			p := doctree.NewParagraph()
			p.Append(doctree.NewTextRun(string(heading.Text(src))))
			p.Tags()[transform.HeadingLevelTag] = strconv.Itoa(heading.Level)
			doc.Append(p)
			continue
		}
		t := strings.TrimSpace(blockText(n, src))
		if t == "" {
			continue
		}
		p := doctree.NewParagraph()
		p.Append(doctree.NewTextRun(t))
		doc.Append(p)
	}
	return []*doctree.Document{doc}, nil
}

// blockText collects a non-heading block node's text, recursing through
// inline children the way the teacher's extractText did.
func blockText(n ast.Node, src []byte) string {
	var b strings.Builder
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteString(blockText(c, src))
	}
	return strings.TrimSpace(b.String())
}
