package sources

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
	"github.com/docweave/docweave/internal/transform"
	docx "github.com/fumiama/go-docx"
)

func init() {
	config.RegisterSourceKind("docx_file", func(cfg map[string]any) (pipeline.Source, error) {
		path, _ := cfg["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("docx_file: config.path is required")
		}
		return &DOCXSource{Path: path}, nil
	})
}

// DOCXSource reads one .docx file into a doctree.Document of flat
// Paragraphs, headings tagged with transform.HeadingLevelTag. Adapted from
// the teacher's parser/docx.go, which recognized heading styles the same
// way but folded them into a tree inline instead of leaving that to
// nest_sections.
type DOCXSource struct {
	Path string
}

func (s *DOCXSource) Name() string { return "docx_file:" + s.Path }

func (s *DOCXSource) Documents(context.Context) ([]*doctree.Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}

	parsed, err := docx.Parse(f, info.Size())
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: fmt.Sprintf("parse docx: %s", err), Retryable: false}
	}

	doc := doctree.NewDocument()
	for _, item := range parsed.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		p := doctree.NewParagraph()
		p.Append(doctree.NewTextRun(text))
		if level := docxHeadingLevel(para); level > 0 {
			p.Tags()[transform.HeadingLevelTag] = strconv.Itoa(level)
		}
		doc.Append(p)
	}
	return []*doctree.Document{doc}, nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := para.Properties.Style.Val
	for lvl := 1; lvl <= 6; lvl++ {
		compact := "Heading" + strconv.Itoa(lvl)
		spaced := "heading " + strconv.Itoa(lvl)
		if strings.EqualFold(style, compact) || strings.EqualFold(style, spaced) {
			return lvl
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
