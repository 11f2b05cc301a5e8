package sources

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
	pdflib "github.com/ledongthuc/pdf"
)

func init() {
	config.RegisterSourceKind("pdf_file", func(cfg map[string]any) (pipeline.Source, error) {
		path, _ := cfg["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("pdf_file: config.path is required")
		}
		fallback, _ := cfg["fallback_pdftotext"].(bool)
		return &PDFSource{Path: path, FallbackPdftotext: fallback}, nil
	})
}

// PDFSource reads one PDF file into a doctree.Document: one Paragraph per
// page, tagged "page" with the 1-indexed page number. Tries
// ledongthuc/pdf first, then falls back to a pdftotext subprocess when
// FallbackPdftotext is set and the library fails, matching the teacher's
// parser/pdf.go fallback chain.
type PDFSource struct {
	Path              string
	FallbackPdftotext bool
}

func (s *PDFSource) Name() string { return "pdf_file:" + s.Path }

func (s *PDFSource) Documents(context.Context) ([]*doctree.Document, error) {
	text, err := extractPDFText(s.Path)
	if err != nil && s.FallbackPdftotext {
		text, err = extractPdftotext(s.Path)
	}
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: fmt.Sprintf("extract pdf text: %s", err), Retryable: false}
	}

	doc := doctree.NewDocument()
	pages := strings.Split(text, "\f")
	emitted := false
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		p := doctree.NewParagraph()
		p.Append(doctree.NewTextRun(page))
		p.Tags()["page"] = fmt.Sprintf("%d", i+1)
		doc.Append(p)
		emitted = true
	}
	if !emitted && strings.TrimSpace(text) != "" {
		p := doctree.NewParagraph()
		p.Append(doctree.NewTextRun(strings.TrimSpace(text)))
		p.Tags()["page"] = "1"
		doc.Append(p)
	}
	return []*doctree.Document{doc}, nil
}

func extractPDFText(path string) (string, error) {
	pf, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer pf.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f")
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
