package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/viewmodel"
)

type fakeRows struct {
	data map[model.RowId][]string
}

func (f *fakeRows) Len() model.RowId         { return model.RowId(len(f.data)) }
func (f *fakeRows) IndexedComplete() bool     { return true }
func (f *fakeRows) Fetch(id model.RowId) ([]string, error) {
	return f.data[id], nil
}

func newTestMachine() (*Machine, *viewmodel.ViewModel) {
	rows := &fakeRows{data: map[model.RowId][]string{
		0: {"1", "alice"},
		1: {"2", "bob"},
		2: {"3", "carol"},
	}}
	vm := viewmodel.New(1, rows, []string{"id", "name"}, 10000)
	vm.Refresh(3, 1000)
	return New(vm, ',', -1), vm
}

func testKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSlashEntersFindInput(t *testing.T) {
	m, _ := newTestMachine()
	m.HandleKey(testKey('/'))
	if m.State() != StateFindInput {
		t.Fatalf("expected FindInput state, got %v", m.State())
	}
}

func TestEscReturnsToNormal(t *testing.T) {
	m, _ := newTestMachine()
	m.HandleKey(testKey('/'))
	m.HandleKey(tea.KeyMsg{Type: tea.KeyEsc})
	if m.State() != StateNormal {
		t.Fatalf("expected Normal state after Esc, got %v", m.State())
	}
}

func TestFilterSubmitAppliesRowFilter(t *testing.T) {
	m, vm := newTestMachine()
	m.HandleKey(testKey('&'))
	for _, r := range "bob" {
		m.HandleKey(testKey(r))
	}
	m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.State() != StateNormal {
		t.Fatalf("expected return to Normal after submit, got %v", m.State())
	}
	if got := vm.Len(); got != 1 {
		t.Fatalf("expected 1 row surviving filter, got %d", got)
	}
}

func TestBadPatternKeepsInputState(t *testing.T) {
	m, vm := newTestMachine()
	m.HandleKey(testKey('&'))
	m.HandleKey(testKey('('))
	r := m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.State() != StateFilterInput {
		t.Fatalf("expected to stay in FilterInput after a bad pattern, got %v", m.State())
	}
	if r.Status == "" {
		t.Fatal("expected a status message describing the bad pattern")
	}
	if got := vm.Len(); got != 3 {
		t.Fatalf("expected the filter to be left unapplied (3 rows), got %d", got)
	}
}

func TestColonEntersJumpInputAndSubmits(t *testing.T) {
	m, vm := newTestMachine()
	m.HandleKey(testKey(':'))
	if m.State() != StateJumpInput {
		t.Fatalf("expected JumpInput state, got %v", m.State())
	}
	m.HandleKey(testKey('2'))
	m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.State() != StateNormal {
		t.Fatalf("expected return to Normal after jump submit, got %v", m.State())
	}
	if vm.Cursor().LogicalIndex != 1 {
		t.Fatalf("expected logical index 1 (line 2), got %d", vm.Cursor().LogicalIndex)
	}
}

func TestGotoLineDigitsAccumulate(t *testing.T) {
	m, vm := newTestMachine()
	m.HandleKey(testKey('2'))
	m.HandleKey(testKey('G'))
	if vm.Cursor().Empty {
		t.Fatal("expected non-empty cursor")
	}
	if vm.Cursor().LogicalIndex != 1 {
		t.Fatalf("expected logical index 1 (line 2), got %d", vm.Cursor().LogicalIndex)
	}
}

func TestHelpTogglesAndReturns(t *testing.T) {
	m, _ := newTestMachine()
	m.HandleKey(testKey('?'))
	if m.State() != StateHelp {
		t.Fatalf("expected Help state, got %v", m.State())
	}
	m.HandleKey(testKey('x'))
	if m.State() != StateNormal {
		t.Fatalf("expected Normal after any key from Help, got %v", m.State())
	}
}

func TestFindSubmitJumpsToFirstMatch(t *testing.T) {
	m, vm := newTestMachine()
	m.HandleKey(testKey('/'))
	for _, r := range "carol" {
		m.HandleKey(testKey(r))
	}
	m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if m.State() != StateNormal {
		t.Fatalf("expected Normal after find submit, got %v", m.State())
	}
	cur := vm.Cursor()
	if cur.LogicalIndex != 2 || cur.ColumnIndex != 1 {
		t.Fatalf("cursor = %+v, want logical 2 column 1 (the carol cell)", cur)
	}
}

func TestNextAndPrevWalkMatches(t *testing.T) {
	m, vm := newTestMachine()
	m.HandleKey(testKey('/'))
	for _, r := range "o" { // alice has none; bob and carol each one
		m.HandleKey(testKey(r))
	}
	m.HandleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if vm.Cursor().LogicalIndex != 1 {
		t.Fatalf("first match should be bob's row, cursor at %d", vm.Cursor().LogicalIndex)
	}
	m.HandleKey(testKey('n'))
	if vm.Cursor().LogicalIndex != 2 {
		t.Fatalf("n should advance to carol's row, cursor at %d", vm.Cursor().LogicalIndex)
	}
	m.HandleKey(testKey('N'))
	if vm.Cursor().LogicalIndex != 1 {
		t.Fatalf("N should return to bob's row, cursor at %d", vm.Cursor().LogicalIndex)
	}
}

func TestQuitKeyRequestsExit(t *testing.T) {
	m, _ := newTestMachine()
	r := m.HandleKey(testKey('q'))
	if !r.Quit {
		t.Fatal("expected q to request quit")
	}
}
