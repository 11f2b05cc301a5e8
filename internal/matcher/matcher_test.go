package matcher

import (
	"testing"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/traverse"
)

func newEnv() *Env {
	return &Env{Cache: NewCache(), StyleRules: map[string]map[string]string{}}
}

func ctxFor(el doctree.Element, ancestors ...doctree.Element) traverse.Context {
	return traverse.Context{Element: el, Ancestors: ancestors}
}

func TestMatchElementTypesPolymorphic(t *testing.T) {
	run := doctree.NewTextRun("x")
	chip := doctree.NewChips("y")
	spec := &ElementSpec{ElementTypes: []string{"ParagraphElement"}}
	env := newEnv()

	for _, el := range []doctree.Element{run, chip} {
		ok, err := MatchElementSpec(env, spec, ctxFor(el), []doctree.Element{el})
		if err != nil {
			t.Fatalf("MatchElementSpec() error = %v", err)
		}
		if !ok {
			t.Errorf("expected %v to match ParagraphElement", el.Type())
		}
	}

	sec := doctree.NewSection(nil, 1)
	ok, _ := MatchElementSpec(env, spec, ctxFor(sec), []doctree.Element{sec})
	if ok {
		t.Error("Section should not match ParagraphElement")
	}
}

func TestRequiredTagSetsDisjunctionOfConjunctions(t *testing.T) {
	run := doctree.NewTextRun("x")
	run.Tags()["a"] = "1"
	run.Tags()["b"] = "2"

	spec := &ElementSpec{
		RequiredTagSets: []TagSet{
			{"a": "9"},      // fails
			{"a": "1", "b": "2"}, // matches
		},
	}
	env := newEnv()
	ok, err := MatchElementSpec(env, spec, ctxFor(run), nil)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if !ok {
		t.Error("expected match via second conjunction")
	}
}

func TestRequiredTagSetsEmptyPatternChecksExistence(t *testing.T) {
	run := doctree.NewTextRun("x")
	run.Tags()["present"] = "anything"
	spec := &ElementSpec{RequiredTagSets: []TagSet{{"present": ""}}}
	env := newEnv()
	ok, _ := MatchElementSpec(env, spec, ctxFor(run), nil)
	if !ok {
		t.Error("empty pattern should match on key presence alone")
	}

	spec2 := &ElementSpec{RequiredTagSets: []TagSet{{"missing": ""}}}
	ok2, _ := MatchElementSpec(env, spec2, ctxFor(run), nil)
	if ok2 {
		t.Error("empty pattern should fail when key is absent")
	}
}

func TestRejectedTags(t *testing.T) {
	run := doctree.NewTextRun("x")
	run.Tags()["drop"] = "yes"
	spec := &ElementSpec{RejectedTags: map[string]string{"drop": "yes"}}
	env := newEnv()
	ok, _ := MatchElementSpec(env, spec, ctxFor(run), nil)
	if ok {
		t.Error("expected rejection")
	}
}

func TestStyleInheritanceViaClass(t *testing.T) {
	run := doctree.NewTextRun("x")
	run.Attribs()["class"] = "heading"
	env := &Env{
		Cache: NewCache(),
		StyleRules: map[string]map[string]string{
			"heading": {"font-weight": "bold"},
		},
	}
	spec := &ElementSpec{RequiredStyleSets: []TagSet{{"font-weight": "bold"}}}
	ok, err := MatchElementSpec(env, spec, ctxFor(run), nil)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if !ok {
		t.Error("expected style inherited via attribs.class to match")
	}
}

func TestStyleQuoteStrippingDefault(t *testing.T) {
	run := doctree.NewTextRun("x")
	run.Style()["font-family"] = `"Arial"`
	env := newEnv()
	spec := &ElementSpec{RequiredStyleSets: []TagSet{{"font-family": "Arial"}}}
	ok, _ := MatchElementSpec(env, spec, ctxFor(run), nil)
	if !ok {
		t.Error("expected quotes to be stripped by default before matching")
	}
}

func TestAggregatedTextRegexFullMatch(t *testing.T) {
	run := doctree.NewTextRun("hello")
	env := newEnv()
	spec := &ElementSpec{AggregatedTextRegex: `hello`}
	ok, _ := MatchElementSpec(env, spec, ctxFor(run), nil)
	if !ok {
		t.Error("expected full match")
	}

	spec2 := &ElementSpec{AggregatedTextRegex: `hell`}
	ok2, _ := MatchElementSpec(env, spec2, ctxFor(run), nil)
	if ok2 {
		t.Error("partial match should not satisfy full-match semantics")
	}
}

func TestPositionBoundsNegativeIndexing(t *testing.T) {
	// 2 rows x 3 cols: start_col: -1 selects only the last column.
	startCol := -1
	spec := &ElementSpec{StartCol: &startCol}
	env := newEnv()

	for col := 0; col < 3; col++ {
		ctx := traverse.Context{
			Element: doctree.NewTextRun("x"), HasPosition: true,
			Row: 0, Col: col, TableRows: 2, TableCols: 3,
		}
		ok, _ := MatchElementSpec(env, spec, ctx, nil)
		want := col == 2
		if ok != want {
			t.Errorf("col %d: ok = %v, want %v", col, ok, want)
		}
	}
}

func TestPositionBoundsRequireTablePosition(t *testing.T) {
	startCol := 0
	spec := &ElementSpec{StartCol: &startCol}
	env := newEnv()
	ctx := traverse.Context{Element: doctree.NewTextRun("x"), HasPosition: false}
	ok, _ := MatchElementSpec(env, spec, ctx, nil)
	if ok {
		t.Error("position bounds should fail elements outside a table")
	}
}

func TestMatchAncestorListSkipAny(t *testing.T) {
	// Criteria from spec scenario S5: skip-any, Section tagged section=X,
	// skip-any — matches any descendant of a section=X tagged Section.
	root := doctree.NewDocument()
	sec := doctree.NewSection(nil, 1)
	sec.Tags()["section"] = "X"
	para := doctree.NewParagraph()
	run := doctree.NewTextRun("deep")
	para.Append(run)
	sec.Append(para)
	root.Append(sec)

	criteria := &Criteria{
		MatchAncestorList: []AncestorStep{
			{SkipAncestors: "any"},
			{Match: &ElementSpec{
				ElementTypes:    []string{"Section"},
				RequiredTagSets: []TagSet{{"section": "X"}},
			}},
			{SkipAncestors: "any"},
		},
	}
	env := newEnv()

	var matchedRun, matchedSection bool
	traverse.Walk(root, func(ctx traverse.Context) bool {
		ok, err := Match(env, criteria, ctx, []doctree.Element{ctx.Element})
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if ctx.Element == doctree.Element(run) {
			matchedRun = ok
		}
		if ctx.Element == doctree.Element(sec) {
			matchedSection = ok
		}
		return true
	})
	if !matchedRun {
		t.Error("expected descendant text run to match")
	}
	if matchedSection {
		t.Error("the tagged Section itself is not its own descendant, should not match")
	}
}

func TestMatchDescendent(t *testing.T) {
	para := doctree.NewParagraph()
	run := doctree.NewTextRun("findme")
	para.Append(run)

	criteria := &Criteria{
		MatchDescendent: &ElementSpec{AggregatedTextRegex: "findme"},
	}
	env := newEnv()
	ok, err := Match(env, criteria, ctxFor(para), nil)
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if !ok {
		t.Error("expected descendant predicate to find the matching text run")
	}

	ok2, _ := Match(env, criteria, ctxFor(run), nil)
	if ok2 {
		t.Error("a leaf with no descendants should not match match_descendent")
	}
}
