// Package command translates bubbletea key events into commands
// against the view model, through the modal states Normal, FindInput,
// FilterInput, ColumnFilterInput, JumpInput, FreezeInput, and Help.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/viewmodel"
)

// State is one of the machine's modal input states.
type State int

const (
	StateNormal State = iota
	StateFindInput
	StateFilterInput
	StateColumnFilterInput
	StateJumpInput
	StateFreezeInput
	StateHelp
)

// Machine owns the modal input state and routes submitted values to
// the View Model. It holds no rendering logic; the Coordinator asks
// it for State()/Input() to decide what to draw.
type Machine struct {
	state   State
	keys    KeyMap
	vm      *viewmodel.ViewModel
	input   textinput.Model
	history []string
	histIdx int

	digits string // accumulates goto-line digits

	echoColumn  int // --echo-column index, or -1
	separator   rune
	quitOnEnter bool // Enter in Cell mode should request exit (echo-on-exit)
}

// New builds a Machine in the Normal state.
func New(vm *viewmodel.ViewModel, separator rune, echoColumn int) *Machine {
	ti := textinput.New()
	ti.Prompt = ""
	m := &Machine{
		state:      StateNormal,
		keys:       DefaultKeyMap(),
		vm:         vm,
		input:      ti,
		separator:  separator,
		echoColumn: echoColumn,
	}
	return m
}

func (m *Machine) State() State         { return m.state }
func (m *Machine) InputValue() string   { return m.input.Value() }
func (m *Machine) InputView() string    { return m.input.View() }
func (m *Machine) DigitsBuffer() string { return m.digits }
func (m *Machine) SetKeyMap(k KeyMap)   { m.keys = k }
func (m *Machine) RequestedExit() bool  { return m.quitOnEnter }
func (m *Machine) ClearExitRequest()    { m.quitOnEnter = false }

// Result is what HandleKey hands back to the Coordinator: a status
// line note (possibly empty) and whether the program should exit.
type Result struct {
	Status string
	Quit   bool
}

// HandleKey processes one keystroke and returns a Result. vm mutations
// happen as a side effect (filter/sort/find/cursor updates); the
// Coordinator re-derives layout and redraws afterward.
func (m *Machine) HandleKey(msg tea.KeyMsg) Result {
	switch m.state {
	case StateNormal:
		return m.handleNormal(msg)
	case StateHelp:
		m.state = StateNormal
		return Result{}
	default:
		return m.handleInput(msg)
	}
}

func (m *Machine) handleNormal(msg tea.KeyMsg) Result {
	keyStr := msg.String()

	// Digit accumulation feeds Goto-line (bare digits before G) unless
	// a FreezeInput sequence is already in progress.
	if len(keyStr) == 1 && isDigitRune(rune(keyStr[0])) {
		m.digits += keyStr
		return Result{}
	}

	k := m.keys

	switch {
	case msg.Type == tea.KeyCtrlC:
		return Result{Quit: true}

	case key.Matches(msg, k.Quit):
		return Result{Quit: true}

	case key.Matches(msg, k.Up):
		m.vm.MoveRow(-1)
	case key.Matches(msg, k.Down):
		m.vm.MoveRow(1)
	case key.Matches(msg, k.Left):
		m.vm.MoveColumn(-1)
	case key.Matches(msg, k.Right):
		m.vm.MoveColumn(1)
	case key.Matches(msg, k.PageUp):
		m.vm.MoveWindow(-1)
	case key.Matches(msg, k.PageDown):
		m.vm.MoveWindow(1)
	case key.Matches(msg, k.HalfPageUp):
		m.vm.MoveHalfWindow(-1)
	case key.Matches(msg, k.HalfPageDn):
		m.vm.MoveHalfWindow(1)
	case key.Matches(msg, k.Home):
		if m.digits != "" {
			m.gotoDigits()
		} else {
			m.vm.Home()
		}
	case key.Matches(msg, k.End):
		if m.digits != "" {
			m.gotoDigits()
		} else if m.vm.EndAvailable() {
			m.vm.End()
		} else {
			return Result{Status: "sorting…"}
		}
	case key.Matches(msg, k.FirstColumn):
		m.vm.FirstColumn()
	case key.Matches(msg, k.LastColumn):
		m.vm.LastColumn()
	case key.Matches(msg, k.WindowLeft):
		m.vm.MoveWindowHorizontally(-1, 1)
	case key.Matches(msg, k.WindowRight):
		m.vm.MoveWindowHorizontally(1, 1)

	case key.Matches(msg, k.Find):
		m.enterInput(StateFindInput, "")
	case key.Matches(msg, k.Filter):
		m.enterInput(StateFilterInput, "")
	case key.Matches(msg, k.ColumnFilter):
		m.enterInput(StateColumnFilterInput, "")
	case key.Matches(msg, k.JumpTo):
		m.digits = ""
		m.enterInput(StateJumpInput, "")
	case key.Matches(msg, k.FindCell):
		if m.vm.SelectionMode() == model.SelectCell {
			m.enterInput(StateFindInput, "^"+regexQuoteLiteral(m.selectedCellText())+"$")
		}
	case key.Matches(msg, k.FilterCell):
		if m.vm.SelectionMode() == model.SelectCell {
			m.enterInput(StateFilterInput, "^"+regexQuoteLiteral(m.selectedCellText())+"$")
		}
	case key.Matches(msg, k.Next):
		if f := m.vm.Finder(); f != nil {
			if match, ok := f.Next(); ok {
				m.vm.JumpToMatch(match)
			}
		}
	case key.Matches(msg, k.Prev):
		if f := m.vm.Finder(); f != nil {
			if match, ok := f.Prev(); ok {
				m.vm.JumpToMatch(match)
			}
		}
	case key.Matches(msg, k.ClearFilters):
		m.vm.ClearAllFilters()

	case key.Matches(msg, k.Sort):
		m.cycleSort(model.Asc)
	case key.Matches(msg, k.SortReverse):
		m.cycleSort(model.Desc)
	case key.Matches(msg, k.SortNatural):
		m.toggleSortMode()
	case key.Matches(msg, k.ClearSort):
		m.vm.SetSort(-1, model.Asc, model.SortLex)

	case key.Matches(msg, k.SelectMode):
		m.vm.CycleSelectionMode()
	case key.Matches(msg, k.WrapChars):
		m.vm.ToggleWrap(model.WrapChars)
	case key.Matches(msg, k.WrapWords):
		m.vm.ToggleWrap(model.WrapWords)
	case key.Matches(msg, k.Freeze):
		m.enterInput(StateFreezeInput, "")
	case key.Matches(msg, k.WidenColumn):
		m.vm.AdjustColumnWidth(1)
	case key.Matches(msg, k.NarrowColumn):
		m.vm.AdjustColumnWidth(-1)

	case key.Matches(msg, k.ToggleMark):
		m.vm.ToggleMark()
	case key.Matches(msg, k.ClearMarks):
		m.vm.ClearMarks()
	case key.Matches(msg, k.EchoMarked):
		return Result{Status: "echo"} // Coordinator performs the actual I/O
	case key.Matches(msg, k.CopyCell):
		return m.copy(viewmodel.CopyCell)
	case key.Matches(msg, k.CopyRow):
		return m.copy(viewmodel.CopyRow)
	case key.Matches(msg, k.CopyColumn):
		return m.copy(viewmodel.CopyColumn)

	case keyStr == "enter":
		if m.vm.SelectionMode() == model.SelectCell {
			m.quitOnEnter = true
			return Result{Quit: true}
		}

	case key.Matches(msg, k.Help):
		m.state = StateHelp
	}

	return Result{}
}

func (m *Machine) copy(target viewmodel.CopyTarget) Result {
	status, err := m.vm.CopySelection(target, m.separator)
	if err != nil {
		return Result{Status: err.Error()}
	}
	return Result{Status: status}
}

func (m *Machine) gotoDigits() {
	n, err := strconv.Atoi(m.digits)
	m.digits = ""
	if err != nil {
		return
	}
	m.vm.GotoLine(n)
}

func (m *Machine) cycleSort(dir model.SortDirection) {
	col := m.vm.Cursor().ColumnIndex
	m.vm.SetSort(col, dir, model.SortLex)
}

func (m *Machine) toggleSortMode() {
	col := m.vm.Cursor().ColumnIndex
	m.vm.SetSort(col, model.Asc, model.SortNatural)
}

func (m *Machine) selectedCellText() string {
	cur := m.vm.Cursor()
	if cur.Empty {
		return ""
	}
	id, ok := m.vm.RowAt(cur.LogicalIndex)
	if !ok {
		return ""
	}
	cells, err := m.vm.Fetch(id)
	if err != nil {
		return ""
	}
	cols := m.vm.VisibleColumns()
	if cur.ColumnIndex >= len(cols) {
		return ""
	}
	idx := cols[cur.ColumnIndex]
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// regexQuoteLiteral escapes regexp metacharacters so a preseeded
// exact-match pattern matches the literal cell text.
func regexQuoteLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (m *Machine) enterInput(s State, preseed string) {
	m.state = s
	m.input.SetValue(preseed)
	m.input.CursorEnd()
	m.input.Focus()
	m.histIdx = len(m.history)
}

// handleInput services FindInput, FilterInput, ColumnFilterInput,
// JumpInput, and FreezeInput. Esc restores Normal without committing;
// Enter submits; up/down replay command history.
func (m *Machine) handleInput(msg tea.KeyMsg) Result {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = StateNormal
		m.input.Blur()
		return Result{}
	case tea.KeyEnter:
		return m.submitInput()
	case tea.KeyUp:
		m.historyUp()
		return Result{}
	case tea.KeyDown:
		m.historyDown()
		return Result{}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	_ = cmd
	return Result{}
}

func (m *Machine) historyUp() {
	if len(m.history) == 0 {
		return
	}
	if m.histIdx > 0 {
		m.histIdx--
	}
	m.input.SetValue(m.history[m.histIdx])
	m.input.CursorEnd()
}

func (m *Machine) historyDown() {
	if m.histIdx < len(m.history)-1 {
		m.histIdx++
		m.input.SetValue(m.history[m.histIdx])
	} else {
		m.histIdx = len(m.history)
		m.input.SetValue("")
	}
	m.input.CursorEnd()
}

func (m *Machine) pushHistory(v string) {
	if v == "" {
		return
	}
	if len(m.history) == 0 || m.history[len(m.history)-1] != v {
		m.history = append(m.history, v)
	}
}

// submitInput commits the current input buffer. A BadPattern failure
// leaves the machine in the same input state with the buffer intact
// rather than returning to Normal, so the user can correct the regex
// in place.
func (m *Machine) submitInput() Result {
	v := m.input.Value()
	prevState := m.state

	switch prevState {
	case StateFindInput:
		m.pushHistory(v)
		if v == "" {
			m.vm.SetFind("", model.FilterScope{}, false)
			break
		}
		if err := m.vm.SetFind(v, model.FilterScope{Kind: model.ScopeAnyColumn}, true); err != nil {
			return Result{Status: badPatternMsg(err)}
		}
		if f := m.vm.Finder(); f != nil {
			if match, ok := f.Next(); ok {
				m.vm.JumpToMatch(match)
			}
		}
	case StateFilterInput:
		m.pushHistory(v)
		if err := m.vm.SetRowFilter(v, model.FilterScope{Kind: model.ScopeAnyColumn}, true); err != nil {
			return Result{Status: badPatternMsg(err)}
		}
		// Rebuild the logical sequence so the filter shows immediately.
		m.vm.Refresh(m.vm.Len(), 4000)
	case StateColumnFilterInput:
		m.pushHistory(v)
		if err := m.vm.SetColumnFilter(v, true); err != nil {
			return Result{Status: badPatternMsg(err)}
		}
	case StateJumpInput:
		n, err := strconv.Atoi(v)
		if err == nil {
			m.vm.GotoLine(n)
		}
	case StateFreezeInput:
		k, err := strconv.Atoi(v)
		if err == nil {
			m.vm.SetFreeze(k)
		}
	}
	m.state = StateNormal
	m.input.Blur()
	return Result{}
}

func badPatternMsg(err error) string {
	if bp, ok := err.(*model.BadPattern); ok {
		return fmt.Sprintf("bad pattern: %s", bp.Reason)
	}
	return err.Error()
}
