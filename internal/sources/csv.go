package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/docweave/docweave/internal/config"
	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/pipeline"
)

func init() {
	config.RegisterSourceKind("csv_file", func(cfg map[string]any) (pipeline.Source, error) {
		path, _ := cfg["path"].(string)
		if path == "" {
			return nil, fmt.Errorf("csv_file: config.path is required")
		}
		return &CSVSource{Path: path}, nil
	})
}

// CSVSource reads one CSV file into a single doctree.Table: the header row
// plus every data row, one cell per column. The teacher's parser/csv.go
// instead batched rows into flattened "Header: value, ..." text blocks
// because doctree.DocTree had no tabular element; this engine's Table type
// lets the structure survive intact.
type CSVSource struct {
	Path string
}

func (s *CSVSource) Name() string { return "csv_file:" + s.Path }

func (s *CSVSource) Documents(context.Context) ([]*doctree.Document, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: fmt.Sprintf("parse csv: %s", err), Retryable: false}
	}

	doc := doctree.NewDocument()
	if len(records) == 0 {
		return []*doctree.Document{doc}, nil
	}

	cols := 0
	for _, row := range records {
		if len(row) > cols {
			cols = len(row)
		}
	}
	cells := make([]*doctree.TableCell, 0, len(records)*cols)
	for r, row := range records {
		for c := 0; c < cols; c++ {
			content := doctree.NewDocContent()
			if c < len(row) {
				p := doctree.NewParagraph()
				p.Append(doctree.NewTextRun(row[c]))
				content.Append(p)
			}
			cells = append(cells, &doctree.TableCell{DocContent: content, Row: r, Col: c})
		}
	}
	table, err := doctree.NewTable(len(records), cols, cells)
	if err != nil {
		return nil, &pipeline.SourceError{Source: s.Name(), Msg: err.Error(), Retryable: false}
	}
	doc.Append(table)
	return []*doctree.Document{doc}, nil
}
