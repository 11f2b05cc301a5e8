package variables

import (
	"testing"

	"github.com/docweave/docweave/internal/doctree"
	"github.com/docweave/docweave/internal/traverse"
)

func buildRowTable(t *testing.T) (*doctree.Table, []*doctree.TableCell) {
	t.Helper()
	cells := make([]*doctree.TableCell, 0, 6)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			dc := doctree.NewDocContent()
			dc.Append(doctree.NewTextRun("cell"))
			cell := &doctree.TableCell{DocContent: dc, Row: r, Col: c}
			cell.Tags()["label"] = "L"
			cells = append(cells, cell)
		}
	}
	tbl, err := doctree.NewTable(2, 3, cells)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return tbl, cells
}

func TestElementAtNext(t *testing.T) {
	tbl, _ := buildRowTable(t)
	ctx := traverse.Context{
		Element: tbl.Cells[0], HasPosition: true,
		Row: 0, Col: 0, TableRows: 2, TableCols: 3, Table: tbl,
	}
	env := NewEnv()
	v, err := Evaluate(env, &Spec{ElementAt: &ElementAtSpec{Col: "next"}}, ctx, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	got, ok := v.Field("tags", "label")
	if !ok || got != "L" {
		t.Errorf("Field(tags,label) = %q, %v", got, ok)
	}
}

func TestElementAtOutOfBoundsErrors(t *testing.T) {
	tbl, _ := buildRowTable(t)
	ctx := traverse.Context{
		Element: tbl.Cells[0], HasPosition: true,
		Row: 0, Col: 0, TableRows: 2, TableCols: 3, Table: tbl,
	}
	env := NewEnv()
	_, err := Evaluate(env, &Spec{ElementAt: &ElementAtSpec{Col: "prev"}}, ctx, nil)
	if err == nil {
		t.Error("expected error stepping before the first column")
	}
}

func TestElementAtRequiresTablePosition(t *testing.T) {
	ctx := traverse.Context{Element: doctree.NewTextRun("x"), HasPosition: false}
	env := NewEnv()
	_, err := Evaluate(env, &Spec{ElementAt: &ElementAtSpec{Col: "next"}}, ctx, nil)
	if err == nil {
		t.Error("expected error for an element outside any table")
	}
}

func TestSubstitutionsChainAndCaseOperation(t *testing.T) {
	run := doctree.NewTextRun("Invoice #1234")
	ctx := traverse.Context{Element: run}
	env := NewEnv()
	spec := &Spec{Substitutions: []Substitution{
		{Regex: `Invoice #(\d+)`, Substitute: `id-\1`, Operation: "upper"},
	}}
	v, err := Evaluate(env, spec, ctx, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if v.String() != "ID-1234" {
		t.Errorf("got %q, want ID-1234", v.String())
	}
}

func TestSubstitutionsSectionHeadingOnly(t *testing.T) {
	heading := doctree.NewParagraph()
	heading.Append(doctree.NewTextRun("Quarterly Report"))
	sec := doctree.NewSection(heading, 1)
	run := doctree.NewTextRun("body text")
	ctx := traverse.Context{Element: run, Ancestors: []doctree.Element{sec}}
	env := NewEnv()
	spec := &Spec{Substitutions: []Substitution{
		{Regex: `Report`, Substitute: `Summary`, SectionHeadingOnly: true},
	}}
	v, err := Evaluate(env, spec, ctx, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if v.String() != "Quarterly Summary" {
		t.Errorf("got %q, want Quarterly Summary", v.String())
	}
}

func TestJSONQueryEvaluatesAgainstProjection(t *testing.T) {
	env := NewEnv()
	spec := &Spec{JSONQuery: ".name"}
	v, err := Evaluate(env, spec, traverse.Context{}, func() any {
		return map[string]any{"name": "hello"}
	})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if v.String() != "hello" {
		t.Errorf("got %q, want hello", v.String())
	}
}

func TestAncestorPathJoinsLevels(t *testing.T) {
	root := doctree.NewSection(nil, 1)
	root.Tags()["name"] = "root"
	mid := doctree.NewSection(nil, 2)
	mid.Tags()["name"] = "mid"
	run := doctree.NewTextRun("leaf")
	ctx := traverse.Context{Element: run, Ancestors: []doctree.Element{root, mid}}
	env := NewEnv()
	spec := &Spec{AncestorPath: &AncestorPathSpec{
		LevelValue: "{level.tags[name]}",
		LevelStart: 0,
		LevelEnd:   1,
	}}
	v, err := Evaluate(env, spec, ctx, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if v.String() != "mid/root" {
		t.Errorf("got %q, want mid/root", v.String())
	}
}

func TestRenderAddIgnoreErrorsSuppressesWholeAdd(t *testing.T) {
	vars := Set{"amount": stringValue("42")}
	add := map[string]string{
		"kept":    "{amount}",
		"dropped": "{missing}",
	}
	out, err := RenderAdd(add, vars, true)
	if err != nil {
		t.Fatalf("RenderAdd() error = %v", err)
	}
	if out != nil {
		t.Errorf("got %v, want nil — one unresolved placeholder must suppress every tag in this add", out)
	}
}

func TestRenderAddFailsWithoutIgnoreErrors(t *testing.T) {
	vars := Set{}
	add := map[string]string{"x": "{missing}"}
	_, err := RenderAdd(add, vars, false)
	if err == nil {
		t.Error("expected error when a placeholder cannot resolve and ignore_errors is false")
	}
}

func TestParseLevelRange(t *testing.T) {
	start, end, err := ParseLevelRange("0..2")
	if err != nil || start != 0 || end != 2 {
		t.Errorf("got (%d,%d,%v), want (0,2,nil)", start, end, err)
	}
	start, end, err = ParseLevelRange("3")
	if err != nil || start != 3 || end != 3 {
		t.Errorf("got (%d,%d,%v), want (3,3,nil)", start, end, err)
	}
}
