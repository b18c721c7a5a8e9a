package viewmodel

import (
	"bytes"
	"testing"

	"github.com/csvquery/csvlens/internal/model"
)

type fakeRows struct {
	rows     [][]string
	complete bool
}

func (f *fakeRows) Len() model.RowId      { return model.RowId(len(f.rows)) }
func (f *fakeRows) IndexedComplete() bool { return f.complete }
func (f *fakeRows) Fetch(id model.RowId) ([]string, error) {
	return f.rows[id], nil
}

func newTestVM() *ViewModel {
	rows := &fakeRows{
		rows: [][]string{
			{"1", "x"},
			{"2", "y"},
			{"3", "x"},
		},
		complete: true,
	}
	vm := New(1, rows, []string{"a", "b"}, 10000)
	vm.Refresh(3, 1000)
	return vm
}

func TestFilterComposesIntoLogicalSequence(t *testing.T) {
	vm := newTestVM()
	if err := vm.SetRowFilter("x", model.FilterScope{Kind: model.ScopeAnyColumn}, false); err != nil {
		t.Fatal(err)
	}
	vm.Refresh(3, 1000)
	if vm.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", vm.Len())
	}
	id0, _ := vm.RowAt(0)
	id1, _ := vm.RowAt(1)
	if id0 != 0 || id1 != 2 {
		t.Fatalf("logical sequence = [%d %d], want [0 2]", id0, id1)
	}
}

func TestFilterThenSortComposition(t *testing.T) {
	vm := newTestVM()
	if err := vm.SetRowFilter("x", model.FilterScope{Kind: model.ScopeAnyColumn}, false); err != nil {
		t.Fatal(err)
	}
	vm.SetSort(0, model.Desc, model.SortLex)
	vm.Refresh(3, 1000)
	id0, _ := vm.RowAt(0)
	id1, _ := vm.RowAt(1)
	if id0 != 2 || id1 != 0 {
		t.Fatalf("logical sequence = [%d %d], want [2 0] (desc by column 0)", id0, id1)
	}
}

func TestCursorStaysOnRowAcrossSortChange(t *testing.T) {
	vm := newTestVM()
	vm.MoveRow(2) // cursor on RowId 2 ("3,x")
	vm.SetSort(0, model.Desc, model.SortLex)
	vm.Refresh(3, 1000)
	cur := vm.Cursor()
	id, _ := vm.RowAt(cur.LogicalIndex)
	if id != 2 {
		t.Fatalf("cursor should follow RowId 2 across the re-sort, is on %d", id)
	}
}

func TestGotoLineLandsOnNearestSurvivor(t *testing.T) {
	vm := newTestVM()
	if err := vm.SetRowFilter("x", model.FilterScope{Kind: model.ScopeAnyColumn}, false); err != nil {
		t.Fatal(err)
	}
	vm.Refresh(3, 1000)
	vm.GotoLine(2) // RowId 1 is filtered out; next survivor is RowId 2
	cur := vm.Cursor()
	id, _ := vm.RowAt(cur.LogicalIndex)
	if id != 2 {
		t.Fatalf("GotoLine(2) should clamp to RowId 2, got %d", id)
	}
}

func TestCursorEmptyWhenSequenceEmpty(t *testing.T) {
	rows := &fakeRows{complete: true}
	vm := New(1, rows, []string{"a"}, 10000)
	vm.Refresh(10, 100)
	if !vm.Cursor().Empty {
		t.Fatal("cursor must be empty for an empty sequence")
	}
	vm.MoveRow(1)
	if !vm.Cursor().Empty {
		t.Fatal("cursor must stay empty after motion on an empty sequence")
	}
}

func TestMarksPersistAcrossFilterChanges(t *testing.T) {
	vm := newTestVM()
	vm.ToggleMark() // marks RowId 0
	if err := vm.SetRowFilter("y", model.FilterScope{Kind: model.ScopeAnyColumn}, false); err != nil {
		t.Fatal(err)
	}
	vm.Refresh(3, 1000)
	if !vm.IsMarked(0) {
		t.Fatal("mark on RowId 0 must survive a filter that hides the row")
	}
	vm.ClearAllFilters()
	vm.Refresh(3, 1000)
	if !vm.IsMarked(0) {
		t.Fatal("mark must still be present after clearing filters")
	}
}

func TestSeedMarksPrunesBeyondRowCount(t *testing.T) {
	vm := newTestVM()
	vm.SeedMarks([]model.RowId{0, 2, 7}, 3)
	if !vm.IsMarked(0) || !vm.IsMarked(2) {
		t.Fatal("in-range marks should be seeded")
	}
	if vm.IsMarked(7) {
		t.Fatal("marks past the new epoch's row count must be pruned")
	}
}

func TestJumpToMatchTranslatesColumn(t *testing.T) {
	vm := newTestVM()
	vm.JumpToMatch(model.Match{LogicalIndex: 2, ColumnIndex: 1})
	cur := vm.Cursor()
	if cur.LogicalIndex != 2 || cur.ColumnIndex != 1 {
		t.Fatalf("cursor = %+v, want logical 2 column 1", cur)
	}
}

func TestColumnFilterNarrowsVisibleColumns(t *testing.T) {
	vm := newTestVM()
	vm.MoveColumn(1) // cursor on column index 1
	if err := vm.SetColumnFilter("^a$", false); err != nil {
		t.Fatal(err)
	}
	vis := vm.VisibleColumns()
	if len(vis) != 1 || vis[0] != 0 {
		t.Fatalf("VisibleColumns() = %v, want [0]", vis)
	}
	if vm.Cursor().ColumnIndex != 0 {
		t.Fatalf("cursor column must clamp into the narrowed set, got %d", vm.Cursor().ColumnIndex)
	}
}

func TestSortPendingWhileFilterExtending(t *testing.T) {
	rows := &fakeRows{rows: [][]string{{"b"}, {"a"}}, complete: false}
	vm := New(1, rows, []string{"k"}, 10000)
	vm.SetSort(0, model.Asc, model.SortLex)
	vm.Refresh(2, 100)
	if !vm.SortPending() {
		t.Fatal("sort over an incomplete sequence must report pending")
	}
	if vm.EndAvailable() {
		t.Fatal("End must be unavailable while the sort is partial")
	}
}

func TestEchoMarkedRowsWritesCSVLines(t *testing.T) {
	vm := newTestVM()
	vm.ToggleMark() // RowId 0
	vm.MoveRow(2)
	vm.ToggleMark() // RowId 2
	var buf bytes.Buffer
	if err := vm.EchoMarkedRows(&buf, ','); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "1,x\n3,x\n"; got != want {
		t.Fatalf("echoed %q, want %q", got, want)
	}
}

func TestEchoOnExitPrintsNamedColumn(t *testing.T) {
	vm := newTestVM()
	vm.MoveRow(1) // RowId 1: "2","y"
	var buf bytes.Buffer
	if err := vm.EchoOnExit(&buf, 1, ','); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "y\n"; got != want {
		t.Fatalf("echoed %q, want %q", got, want)
	}
}
