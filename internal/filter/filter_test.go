package filter

import (
	"testing"

	"github.com/csvquery/csvlens/internal/model"
)

type fakeRows struct {
	rows     [][]string
	complete bool
}

func (f *fakeRows) Len() model.RowId        { return model.RowId(len(f.rows)) }
func (f *fakeRows) IndexedComplete() bool   { return f.complete }
func (f *fakeRows) Fetch(id model.RowId) ([]string, error) {
	return f.rows[id], nil
}

func TestBasicRowFilter(t *testing.T) {
	rows := &fakeRows{rows: [][]string{{"1", "x"}, {"2", "y"}, {"3", "x"}}, complete: true}
	e := New(rows, 1)
	if err := e.SetRowFilter("x", model.FilterScope{Kind: model.ScopeAnyColumn}, false); err != nil {
		t.Fatal(err)
	}
	if err := e.EnsureFiltered(3, 100); err != nil {
		t.Fatal(err)
	}
	seq := e.Snapshot()
	if len(seq) != 2 || seq[0] != 0 || seq[1] != 2 {
		t.Fatalf("got %v, want [0 2]", seq)
	}
}

func TestFilteredSequenceStrictlyIncreasing(t *testing.T) {
	rows := &fakeRows{complete: true}
	for i := 0; i < 50; i++ {
		rows.rows = append(rows.rows, []string{"v"})
	}
	e := New(rows, 1)
	if err := e.SetRowFilter("v", model.FilterScope{Kind: model.ScopeAnyColumn}, false); err != nil {
		t.Fatal(err)
	}
	e.EnsureFiltered(50, 1000)
	seq := e.Snapshot()
	for i := 1; i < len(seq); i++ {
		if seq[i] <= seq[i-1] {
			t.Fatalf("not strictly increasing at %d: %v", i, seq)
		}
	}
}

func TestSmartcase(t *testing.T) {
	rows := &fakeRows{rows: [][]string{{"Hello"}, {"world"}}, complete: true}

	e := New(rows, 1)
	if err := e.SetRowFilter("hello", model.FilterScope{Kind: model.ScopeAnyColumn}, true); err != nil {
		t.Fatal(err)
	}
	e.EnsureFiltered(2, 100)
	if len(e.Snapshot()) != 1 {
		t.Fatalf("lowercase pattern with ignoreCase should match 'Hello' case-insensitively")
	}

	e2 := New(rows, 1)
	if err := e2.SetRowFilter("Hello", model.FilterScope{Kind: model.ScopeAnyColumn}, true); err != nil {
		t.Fatal(err)
	}
	e2.EnsureFiltered(2, 100)
	seq := e2.Snapshot()
	if len(seq) != 1 || seq[0] != 0 {
		t.Fatalf("uppercase in pattern should force case-sensitive match, got %v", seq)
	}
}

func TestColumnFilterMatchesHeaderNames(t *testing.T) {
	names := []string{"id", "Name", "created_at"}
	rows := &fakeRows{complete: true}
	e := New(rows, 1)
	if err := e.SetColumnFilter("(?i)name|id", false); err != nil {
		t.Fatal(err)
	}
	vis := e.VisibleColumns(names)
	if len(vis) != 2 || vis[0] != 0 || vis[1] != 1 {
		t.Fatalf("got %v", vis)
	}
}

func TestBadPattern(t *testing.T) {
	rows := &fakeRows{complete: true}
	e := New(rows, 1)
	err := e.SetRowFilter("(unclosed", model.FilterScope{Kind: model.ScopeAnyColumn}, false)
	if err == nil {
		t.Fatal("expected BadPattern error")
	}
	var bp *model.BadPattern
	if !asBadPattern(err, &bp) {
		t.Fatalf("expected *model.BadPattern, got %T", err)
	}
}

func asBadPattern(err error, target **model.BadPattern) bool {
	bp, ok := err.(*model.BadPattern)
	if ok {
		*target = bp
	}
	return ok
}
