package sources

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
)

func init() {
	config.RegisterSourceKind("text_file", func(cfg map[string]any) (pipeline.Source, error) {
		path, _ := cfg["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("text_file: config.path is required")
		}
		return &TextSource{Path: path}, nil
	})
}

// TextSource reads one plain-text file, splitting on blank lines into one
// Paragraph per block, adapted from the teacher's parser/text.go.
type TextSource struct {
	Path string
}

func (s *TextSource) Name() string { return "text_file:" + s.Path }

func (s *TextSource) Documents(context.Context) ([]*doctree.Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	if err := scanner.Err(); err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}

	doc := doctree.NewDocument()
	for _, para := range paragraphs {
		p := doctree.NewParagraph()
		p.Append(doctree.NewTextRun(para))
		doc.Append(p)
	}
	return []*doctree.Document{doc}, nil
}
