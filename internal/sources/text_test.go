package sources

import (
	"context"
	"testing"

	"github.com/docweave/docweave/internal/doctree"
)

func TestTextSource_BlankLineSplitsParagraphs(t *testing.T) {
	path := writeTemp(t, "notes.txt", "first line\nsecond line\n\nsecond paragraph\n")
	src := &TextSource{Path: path}
	docs, err := src.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	doc := docs[0]
	if len(doc.Content) != 2 {
		t.Fatalf("got %d paragraphs, want 2", len(doc.Content))
	}
	if got := doctree.AggregatedText(doc.Content[0]); got != "first line\nsecond line" {
		t.Errorf("got first paragraph %q", got)
	}
	if got := doctree.AggregatedText(doc.Content[1]); got != "second paragraph" {
		t.Errorf("got second paragraph %q", got)
	}
}

func TestTextSource_EmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.txt", "")
	src := &TextSource{Path: path}
	docs, err := src.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents() error = %v", err)
	}
	if len(docs[0].Content) != 0 {
		t.Errorf("got %d paragraphs, want 0", len(docs[0].Content))
	}
}
