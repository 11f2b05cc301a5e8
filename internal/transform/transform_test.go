package transform

import (
	"reflect"
	"testing"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/extract"
	"github.com/docweave/docweave/internal/matcher"
	"github.com/docweave/docweave/internal/variables"
)

func textOf(items ...doctree.Element) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = doctree.AggregatedText(e)
	}
	return out
}

func TestDropElementsRemovesMatchedAndPreservesOrder(t *testing.T) {
	doc := doctree.NewDocument()
	keep := doctree.NewParagraph()
	keep.Append(doctree.NewTextRun("keep"))
	drop := doctree.NewParagraph()
	run := doctree.NewTextRun("drop")
	run.Tags()["remove"] = "yes"
	drop.Append(run)
	doc.Append(keep)
	doc.Append(drop)

	pass := &DropElementsPass{Criteria: &matcher.Criteria{
		MatchElement: &matcher.ElementSpec{RequiredTagSets: []matcher.TagSet{{"remove": ""}}},
	}}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// Only the tagged run matches; its paragraph is not tagged and stays.
	if len(doc.Content) != 2 {
		t.Fatalf("got %d top-level elements, want 2", len(doc.Content))
	}
	if doctree.AggregatedText(doc.Content[0]) != "keep" {
		t.Errorf("got %q, want keep", doctree.AggregatedText(doc.Content[0]))
	}
	if got := doctree.AggregatedText(doc.Content[1]); got != "" {
		t.Errorf("got %q in the second paragraph, want the dropped run gone", got)
	}
}

func TestDropElementsCascadesToDescendants(t *testing.T) {
	doc := doctree.NewDocument()
	para := doctree.NewParagraph()
	para.Tags()["remove"] = "yes"
	para.Append(doctree.NewTextRun("child text"))
	doc.Append(para)

	pass := &DropElementsPass{Criteria: &matcher.Criteria{
		MatchElement: &matcher.ElementSpec{RequiredTagSets: []matcher.TagSet{{"remove": ""}}},
	}}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(doc.Content) != 0 {
		t.Errorf("expected the paragraph and its child text run both gone, got %d elements", len(doc.Content))
	}
}

func TestNestBulletsBuildsLevelTree(t *testing.T) {
	doc := doctree.NewDocument()
	bl := doctree.NewBulletList()
	i0 := doctree.NewBulletItem(0, "bullet")
	i0.Append(doctree.NewTextRun("top"))
	i1 := doctree.NewBulletItem(1, "bullet")
	i1.Append(doctree.NewTextRun("nested"))
	bl.Items = []*doctree.BulletItem{i0, i1}
	doc.Append(bl)

	pass := NestBulletsPass{}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := doc.Content[0].(*doctree.BulletList)
	if len(got.Items) != 1 {
		t.Fatalf("got %d top-level items, want 1", len(got.Items))
	}
	if len(got.Items[0].Nested) != 1 {
		t.Fatalf("got %d nested items, want 1", len(got.Items[0].Nested))
	}
	if got.Items[0].Nested[0].PrefixText() != "nested" {
		t.Errorf("got %q, want nested", got.Items[0].Nested[0].PrefixText())
	}
}

func TestNestBulletsMergesAdjacentLists(t *testing.T) {
	doc := doctree.NewDocument()
	a := doctree.NewBulletList()
	a.Items = []*doctree.BulletItem{doctree.NewBulletItem(0, "bullet")}
	b := doctree.NewBulletList()
	b.Items = []*doctree.BulletItem{doctree.NewBulletItem(0, "bullet")}
	doc.Append(a)
	doc.Append(b)

	pass := NestBulletsPass{}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(doc.Content) != 1 {
		t.Fatalf("expected the two lists merged into one, got %d", len(doc.Content))
	}
	merged := doc.Content[0].(*doctree.BulletList)
	if len(merged.Items) != 2 {
		t.Errorf("got %d items, want 2", len(merged.Items))
	}
}

func newHeadingParagraph(level, text string) *doctree.Paragraph {
	p := doctree.NewParagraph()
	p.Tags()[HeadingLevelTag] = level
	p.Append(doctree.NewTextRun(text))
	return p
}

func TestNestSectionsBuildsLevelTree(t *testing.T) {
	doc := doctree.NewDocument()
	doc.Append(newHeadingParagraph("1", "Top"))
	body := doctree.NewParagraph()
	body.Append(doctree.NewTextRun("intro"))
	doc.Append(body)
	doc.Append(newHeadingParagraph("2", "Sub"))
	subBody := doctree.NewParagraph()
	subBody.Append(doctree.NewTextRun("sub body"))
	doc.Append(subBody)

	pass := NestSectionsPass{}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(doc.Content) != 1 {
		t.Fatalf("got %d top-level elements, want 1 Section", len(doc.Content))
	}
	top := doc.Content[0].(*doctree.Section)
	if top.HeadingText() != "Top" {
		t.Errorf("got heading %q, want Top", top.HeadingText())
	}
	if len(top.Content) != 2 {
		t.Fatalf("got %d content items (intro + nested section), want 2", len(top.Content))
	}
	nested, ok := top.Content[1].(*doctree.Section)
	if !ok {
		t.Fatalf("expected the second content item to be a nested Section, got %T", top.Content[1])
	}
	if nested.HeadingText() != "Sub" {
		t.Errorf("got nested heading %q, want Sub", nested.HeadingText())
	}
}

func TestRegexReplaceAppliesBackreferenceAndCase(t *testing.T) {
	doc := doctree.NewDocument()
	p := doctree.NewParagraph()
	run := doctree.NewTextRun("Invoice #42")
	p.Append(run)
	doc.Append(p)

	pass := &RegexReplacePass{
		Criteria:      &matcher.Criteria{MatchElement: &matcher.ElementSpec{ElementTypes: []string{"ParagraphElement"}}},
		Substitutions: []TextSubstitution{{Regex: `Invoice #(\d+)`, Substitute: `id-\1`, Operation: "upper"}},
	}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if run.Text != "ID-42" {
		t.Errorf("got %q, want ID-42", run.Text)
	}
}

func TestSplitTextProducesOnePiecePerCaptureGroup(t *testing.T) {
	doc := doctree.NewDocument()
	p := doctree.NewParagraph()
	run := doctree.NewTextRun("John:Doe")
	p.Append(run)
	doc.Append(p)

	pass := &SplitTextPass{
		Criteria:    &matcher.Criteria{MatchElement: &matcher.ElementSpec{ElementTypes: []string{"ParagraphElement"}}},
		TextRegex:   `(\w+):(\w+)`,
		ElementTags: []map[string]string{{"role": "first"}, {"role": "last"}},
	}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := doc.Content[0].(*doctree.Paragraph)
	if len(got.Elements) != 2 {
		t.Fatalf("got %d pieces, want 2", len(got.Elements))
	}
	if got.Elements[0].Tags()["role"] != "first" || got.Elements[1].Tags()["role"] != "last" {
		t.Errorf("tags not assigned positionally: %v, %v", got.Elements[0].Tags(), got.Elements[1].Tags())
	}
	gotTexts := textOf(got.Elements[0], got.Elements[1])
	if gotTexts[0] != "John" || gotTexts[1] != "Doe" {
		t.Errorf("got %v, want [John Doe]", gotTexts)
	}
}

func TestSplitTextFailsWithoutAllowNoMatches(t *testing.T) {
	doc := doctree.NewDocument()
	p := doctree.NewParagraph()
	p.Append(doctree.NewTextRun("no digits here"))
	doc.Append(p)

	pass := &SplitTextPass{
		Criteria:  &matcher.Criteria{MatchElement: &matcher.ElementSpec{ElementTypes: []string{"ParagraphElement"}}},
		TextRegex: `\d+`,
	}
	if err := pass.Apply(NewEnv(), doc); err == nil {
		t.Error("expected an error for no match with allow_no_matches unset")
	}
}

func TestStripElementsRemovesMatchingAttribKeys(t *testing.T) {
	doc := doctree.NewDocument()
	run := doctree.NewTextRun("x")
	run.Attribs()["style"] = "color: red"
	run.Attribs()["class"] = "heading"
	doc.Append(run)

	pass := &StripElementsPass{}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, ok := run.Attribs()["style"]; ok {
		t.Error("expected style attrib to be stripped by default")
	}
	if _, ok := run.Attribs()["class"]; !ok {
		t.Error("expected class attrib to survive the default strip list")
	}
}

func TestStripElementsRemovesMatchingStyleKeysByDefault(t *testing.T) {
	doc := doctree.NewDocument()
	run := doctree.NewTextRun("x")
	run.Style()["margin-top"] = "1em"
	run.Style()["color"] = "red"
	doc.Append(run)

	pass := &StripElementsPass{}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, ok := run.Style()["margin-top"]; ok {
		t.Error("expected margin-* style to be stripped by default")
	}
	if _, ok := run.Style()["color"]; !ok {
		t.Error("expected color style to survive the default strip list")
	}
}

func TestTagMatchingComputesVariablesAndAppliesTags(t *testing.T) {
	doc := doctree.NewDocument()
	run := doctree.NewTextRun("Invoice #7")
	doc.Append(run)

	pass := &TagMatchingPass{
		Criteria: &matcher.Criteria{MatchElement: &matcher.ElementSpec{ElementTypes: []string{"ParagraphElement"}}},
		Variables: map[string]*variables.Spec{
			"num": {Substitutions: []variables.Substitution{{Regex: `\D+`, Substitute: ""}}},
		},
		TagsAdd: map[string]string{"invoice_id": "{num}"},
	}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if run.Tags()["invoice_id"] != "7" {
		t.Errorf("got %q, want 7", run.Tags()["invoice_id"])
	}
}

func TestTagMatchingRemoveWildcardClearsThenAdds(t *testing.T) {
	doc := doctree.NewDocument()
	run := doctree.NewTextRun("x")
	run.Tags()["old"] = "value"
	doc.Append(run)

	pass := &TagMatchingPass{
		Criteria:   &matcher.Criteria{MatchElement: &matcher.ElementSpec{ElementTypes: []string{"ParagraphElement"}}},
		TagsRemove: []string{"*"},
		TagsAdd:    map[string]string{"fresh": "yes"},
	}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, ok := run.Tags()["old"]; ok {
		t.Error("expected '*' to clear the old tag")
	}
	if run.Tags()["fresh"] != "yes" {
		t.Errorf("got %q, want yes", run.Tags()["fresh"])
	}
}

func TestNestBulletsIsIdempotent(t *testing.T) {
	doc := doctree.NewDocument()
	bl := doctree.NewBulletList()
	i0 := doctree.NewBulletItem(0, "bullet")
	i0.Append(doctree.NewTextRun("top"))
	i1 := doctree.NewBulletItem(1, "bullet")
	i1.Append(doctree.NewTextRun("nested one"))
	i2 := doctree.NewBulletItem(0, "bullet")
	i2.Append(doctree.NewTextRun("second top"))
	bl.Items = []*doctree.BulletItem{i0, i1, i2}
	doc.Append(bl)

	pass := NestBulletsPass{}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	once := doctree.ToJSON(doc)

	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	twice := doctree.ToJSON(doc)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("nest_bullets is not idempotent:\nonce  = %#v\ntwice = %#v", once, twice)
	}
}

func TestNestSectionsIsIdempotent(t *testing.T) {
	doc := doctree.NewDocument()
	doc.Append(newHeadingParagraph("1", "Top"))
	body := doctree.NewParagraph()
	body.Append(doctree.NewTextRun("intro"))
	doc.Append(body)
	doc.Append(newHeadingParagraph("2", "Sub"))
	subBody := doctree.NewParagraph()
	subBody.Append(doctree.NewTextRun("sub body"))
	doc.Append(subBody)

	pass := NestSectionsPass{}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	once := doctree.ToJSON(doc)

	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	twice := doctree.ToJSON(doc)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("nest_sections is not idempotent:\nonce  = %#v\ntwice = %#v", once, twice)
	}
}

func TestDropElementsIsIdempotent(t *testing.T) {
	doc := doctree.NewDocument()
	keep := doctree.NewParagraph()
	keep.Append(doctree.NewTextRun("keep"))
	drop := doctree.NewParagraph()
	run := doctree.NewTextRun("drop")
	run.Tags()["remove"] = "yes"
	drop.Append(run)
	doc.Append(keep)
	doc.Append(drop)

	pass := &DropElementsPass{Criteria: &matcher.Criteria{
		MatchElement: &matcher.ElementSpec{RequiredTagSets: []matcher.TagSet{{"remove": ""}}},
	}}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	once := doctree.ToJSON(doc)

	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	twice := doctree.ToJSON(doc)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("drop_elements is not idempotent:\nonce  = %#v\ntwice = %#v", once, twice)
	}
}

func TestTagMatchingIgnoreErrorsLeavesElementUnchanged(t *testing.T) {
	doc := doctree.NewDocument()
	run := doctree.NewTextRun("x")
	run.Tags()["keep"] = "1"
	doc.Append(run)

	pass := &TagMatchingPass{
		Criteria: &matcher.Criteria{MatchElement: &matcher.ElementSpec{ElementTypes: []string{"ParagraphElement"}}},
		Variables: map[string]*variables.Spec{
			"x": {ElementAt: &variables.ElementAtSpec{Col: "next"}},
		},
		TagsAdd:      map[string]string{"new": "{x}"},
		IgnoreErrors: true,
	}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := run.Tags()
	want := map[string]string{"keep": "1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got tags %v, want %v — a failed variable with ignore_errors must leave the element untouched", got, want)
	}
}

// TestNestedBulletRecordExtractionEndToEnd reproduces a nested-bullet record
// extraction through the real matcher, variables, transform and extract
// packages together: two sections, one in scope and one not, each holding a
// top-level "Name" bullet with nested "Field" bullets underneath it. Only
// the in-scope section's entry should survive to the final JSON.
func TestNestedBulletRecordExtractionEndToEnd(t *testing.T) {
	doc := doctree.NewDocument()

	withPrefixHeading := doctree.NewParagraph()
	withPrefixHeading.Append(doctree.NewTextRun("With prefix"))
	withPrefix := doctree.NewSection(withPrefixHeading, 1)
	name0 := doctree.NewBulletItem(0, "bullet")
	name0.Append(doctree.NewTextRun("**Name:** Prefix First entry"))
	field1 := doctree.NewBulletItem(1, "bullet")
	field1.Append(doctree.NewTextRun("**Field1:** prefix value1"))
	field2 := doctree.NewBulletItem(1, "bullet")
	field2.Append(doctree.NewTextRun("**Field2:** prefix value2"))
	prefixList := doctree.NewBulletList()
	prefixList.Items = []*doctree.BulletItem{name0, field1, field2}
	withPrefix.Append(prefixList)
	doc.Append(withPrefix)

	nonMatchingHeading := doctree.NewParagraph()
	nonMatchingHeading.Append(doctree.NewTextRun("Non-Matching"))
	nonMatching := doctree.NewSection(nonMatchingHeading, 1)
	badName := doctree.NewBulletItem(0, "bullet")
	badName.Append(doctree.NewTextRun("**Name:** BAD ENTRY"))
	badList := doctree.NewBulletList()
	badList.Items = []*doctree.BulletItem{badName}
	nonMatching.Append(badList)
	doc.Append(nonMatching)

	env := NewEnv()

	// Tag every bullet with which section (lowercased heading) it falls
	// under, before nest_bullets runs so each item's own text still equals
	// its aggregated text.
	sectionPass := &TagMatchingPass{
		Criteria: &matcher.Criteria{MatchElement: &matcher.ElementSpec{ElementTypes: []string{"BulletItem"}}},
		Variables: map[string]*variables.Spec{
			"sec": {Substitutions: []variables.Substitution{
				{Regex: `^(.*)$`, Substitute: `\1`, Operation: "lower", SectionHeadingOnly: true},
			}},
		},
		TagsAdd: map[string]string{"section": "{sec}"},
	}
	if err := sectionPass.Apply(env, doc); err != nil {
		t.Fatalf("section tag_matching Apply() error = %v", err)
	}

	namePass := &TagMatchingPass{
		Criteria: &matcher.Criteria{MatchElement: &matcher.ElementSpec{
			ElementTypes:        []string{"BulletItem"},
			RequiredTagSets:     []matcher.TagSet{{"section": "with prefix"}},
			AggregatedTextRegex: `^\*\*Name:\*\*.*$`,
		}},
		Variables: map[string]*variables.Spec{
			"name_val": {Substitutions: []variables.Substitution{
				{Regex: `^\*\*Name:\*\*\s*(.*)$`, Substitute: `\1`},
			}},
		},
		TagsAdd: map[string]string{"item_name": "{name_val}"},
	}
	if err := namePass.Apply(env, doc); err != nil {
		t.Fatalf("name tag_matching Apply() error = %v", err)
	}

	fieldPass := &TagMatchingPass{
		Criteria: &matcher.Criteria{MatchElement: &matcher.ElementSpec{
			ElementTypes:        []string{"BulletItem"},
			RequiredTagSets:     []matcher.TagSet{{"section": "with prefix"}},
			AggregatedTextRegex: `^\*\*Field\d+:\*\*.*$`,
		}},
		Variables: map[string]*variables.Spec{
			"key": {Substitutions: []variables.Substitution{
				{Regex: `^\*\*Field(\d+):\*\*.*$`, Substitute: `field\1`, Operation: "lower"},
			}},
			"val": {Substitutions: []variables.Substitution{
				{Regex: `^\*\*Field\d+:\*\*\s*(.*)$`, Substitute: `\1`},
			}},
		},
		TagsAdd: map[string]string{"field_key": "{key}", "field_value": "{val}"},
	}
	if err := fieldPass.Apply(env, doc); err != nil {
		t.Fatalf("field tag_matching Apply() error = %v", err)
	}

	nest := NestBulletsPass{}
	if err := nest.Apply(env, doc); err != nil {
		t.Fatalf("nest_bullets Apply() error = %v", err)
	}

	compiled, err := extract.Compile(&extract.Spec{
		ExtractAll: `.. | select(.tags.item_name)`,
		Nested: map[string]*extract.Spec{
			"details": {
				ExtractAll: `.nested[]`,
				Render:     `{key: .tags.field_key, value: .tags.field_value}`,
			},
		},
		Render: `{name: .tags.item_name, details: ($details | from_entries)}`,
	})
	if err != nil {
		t.Fatalf("extract.Compile() error = %v", err)
	}

	got, err := extract.TransformItems(nil, doc, compiled)
	if err != nil {
		t.Fatalf("TransformItems() error = %v", err)
	}

	want := []any{
		map[string]any{
			"name": "Prefix First entry",
			"details": map[string]any{
				"field1": "prefix value1",
				"field2": "prefix value2",
			},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestMergeByTagCoalescesAdjacentTextRuns(t *testing.T) {
	doc := doctree.NewDocument()
	p := doctree.NewParagraph()
	a := doctree.NewTextRun("Hello ")
	a.Tags()["mergeable"] = "yes"
	b := doctree.NewTextRun("World")
	b.Tags()["mergeable"] = "yes"
	p.Append(a)
	p.Append(b)
	doc.Append(p)

	pass := &MergeByTagPass{
		Criteria: &matcher.Criteria{MatchElement: &matcher.ElementSpec{
			RequiredTagSets: []matcher.TagSet{{"mergeable": ""}},
		}},
		MergeAsTextRun: true,
	}
	if err := pass.Apply(NewEnv(), doc); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := doc.Content[0].(*doctree.Paragraph)
	if len(got.Elements) != 1 {
		t.Fatalf("got %d elements, want 1 merged", len(got.Elements))
	}
	if doctree.AggregatedText(got.Elements[0]) != "Hello World" {
		t.Errorf("got %q, want %q", doctree.AggregatedText(got.Elements[0]), "Hello World")
	}
}
