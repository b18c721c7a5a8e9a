package finder

import (
	"testing"

	"github.com/csvquery/csvlens/internal/model"
)

type fakeSource struct {
	rows [][]string
	cols []int
}

func (f *fakeSource) Len() int { return len(f.rows) }
func (f *fakeSource) RowAt(i int) (model.RowId, bool) {
	if i < 0 || i >= len(f.rows) {
		return 0, false
	}
	return model.RowId(i), true
}
func (f *fakeSource) VisibleColumns() []int { return f.cols }
func (f *fakeSource) Fetch(id model.RowId) ([]string, error) { return f.rows[id], nil }

func TestFinderLocatesMatchesInOrder(t *testing.T) {
	src := &fakeSource{
		rows: [][]string{{"foo", "bar"}, {"baz", "foobar"}, {"qux", "x"}},
		cols: []int{0, 1},
	}
	f, err := New(src, "foo", model.FilterScope{Kind: model.ScopeAnyColumn}, false)
	if err != nil {
		t.Fatal(err)
	}
	m1, ok := f.Next()
	if !ok || m1.LogicalIndex != 0 || m1.ColumnIndex != 0 {
		t.Fatalf("first match = %+v, ok=%v", m1, ok)
	}
	m2, ok := f.Next()
	if !ok || m2.LogicalIndex != 1 || m2.ColumnIndex != 1 {
		t.Fatalf("second match = %+v, ok=%v", m2, ok)
	}
	_, ok = f.Next()
	if ok {
		t.Fatal("expected no third match")
	}
	prev, ok := f.Prev()
	if !ok || prev.LogicalIndex != 0 {
		t.Fatalf("prev should return to first match, got %+v", prev)
	}
}

func TestFinderCount(t *testing.T) {
	src := &fakeSource{rows: [][]string{{"a"}, {"a"}, {"b"}, {"a"}}, cols: []int{0}}
	f, err := New(src, "a", model.FilterScope{Kind: model.ScopeAnyColumn}, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}
}

func TestFinderScopeColumn(t *testing.T) {
	src := &fakeSource{rows: [][]string{{"x", "x"}}, cols: []int{0, 1}}
	f, err := New(src, "x", model.FilterScope{Kind: model.ScopeColumn, Column: 1}, false)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := f.Next()
	if !ok || m.ColumnIndex != 1 {
		t.Fatalf("expected match only in column 1, got %+v ok=%v", m, ok)
	}
	_, ok = f.Next()
	if ok {
		t.Fatal("expected column 0 to be excluded from ScopeColumn search")
	}
}

func TestHighlightsInWindow(t *testing.T) {
	src := &fakeSource{rows: [][]string{{"a"}, {"a"}, {"a"}, {"a"}}, cols: []int{0}}
	f, err := New(src, "a", model.FilterScope{Kind: model.ScopeAnyColumn}, false)
	if err != nil {
		t.Fatal(err)
	}
	hl := f.HighlightsInWindow(1, 3)
	if len(hl) != 2 {
		t.Fatalf("got %d highlights, want 2", len(hl))
	}
	for _, m := range hl {
		if m.LogicalIndex < 1 || m.LogicalIndex >= 3 {
			t.Fatalf("highlight out of window: %+v", m)
		}
	}
}
