package viewmodel

import "github.com/csvquery/csvlens/internal/model"

// clampCursor enforces the cursor invariant: empty iff the logical
// sequence is empty, else 0 <= logical_index < len and
// 0 <= column_index < |visible_columns|.
func (vm *ViewModel) clampCursor() {
	n := len(vm.order)
	if n == 0 {
		vm.cursor = model.Cursor{Empty: true}
		vm.hasCursor = false
		return
	}
	if vm.cursor.LogicalIndex < 0 {
		vm.cursor.LogicalIndex = 0
	}
	if vm.cursor.LogicalIndex >= n {
		vm.cursor.LogicalIndex = n - 1
	}
	nc := len(vm.visibleCols)
	if nc == 0 {
		vm.cursor = model.Cursor{Empty: true}
		vm.hasCursor = false
		return
	}
	if vm.cursor.ColumnIndex < 0 {
		vm.cursor.ColumnIndex = 0
	}
	if vm.cursor.ColumnIndex >= nc {
		vm.cursor.ColumnIndex = nc - 1
	}
	vm.cursor.Empty = false
	vm.hasCursor = true
}

// Cursor returns a snapshot of the current cursor.
func (vm *ViewModel) Cursor() model.Cursor {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.cursor
}

// MoveRow shifts logical_index by delta rows, clamping at the ends.
func (vm *ViewModel) MoveRow(delta int) {
	vm.mu.Lock()
	vm.cursor.LogicalIndex += delta
	vm.clampCursor()
	vm.rememberRowID()
	vm.mu.Unlock()
}

// MoveColumn shifts column_index by delta, clamping.
func (vm *ViewModel) MoveColumn(delta int) {
	vm.mu.Lock()
	vm.cursor.ColumnIndex += delta
	vm.clampCursor()
	vm.mu.Unlock()
}

// MoveWindow moves by a full viewport height (PageUp/PageDown).
func (vm *ViewModel) MoveWindow(sign int) {
	vm.mu.Lock()
	h := vm.viewportHeight
	vm.cursor.LogicalIndex += sign * h
	vm.clampCursor()
	vm.rememberRowID()
	vm.mu.Unlock()
}

// MoveHalfWindow moves by half a viewport height, rounded up.
func (vm *ViewModel) MoveHalfWindow(sign int) {
	vm.mu.Lock()
	h := (vm.viewportHeight + 1) / 2
	vm.cursor.LogicalIndex += sign * h
	vm.clampCursor()
	vm.rememberRowID()
	vm.mu.Unlock()
}

// Home moves to the first logical row; End to the last.
func (vm *ViewModel) Home() {
	vm.mu.Lock()
	vm.cursor.LogicalIndex = 0
	vm.clampCursor()
	vm.rememberRowID()
	vm.mu.Unlock()
}

func (vm *ViewModel) End() {
	vm.mu.Lock()
	vm.cursor.LogicalIndex = len(vm.order) - 1
	vm.clampCursor()
	vm.rememberRowID()
	vm.mu.Unlock()
}

// EndAvailable reports whether End() may be safely used: while the
// sort is still partial, "go to bottom" has no stable bottom to go
// to.
func (vm *ViewModel) EndAvailable() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return !vm.orderPartial
}

// FirstColumn / LastColumn move the column cursor to either edge.
func (vm *ViewModel) FirstColumn() {
	vm.mu.Lock()
	vm.cursor.ColumnIndex = 0
	vm.clampCursor()
	vm.mu.Unlock()
}

func (vm *ViewModel) LastColumn() {
	vm.mu.Lock()
	vm.cursor.ColumnIndex = len(vm.visibleCols) - 1
	vm.clampCursor()
	vm.mu.Unlock()
}

// MoveWindowHorizontally shifts column_index by a full visible span
// (one screenful of columns), clamping.
func (vm *ViewModel) MoveWindowHorizontally(sign int, visibleSpan int) {
	if visibleSpan < 1 {
		visibleSpan = 1
	}
	vm.mu.Lock()
	vm.cursor.ColumnIndex += sign * visibleSpan
	vm.clampCursor()
	vm.mu.Unlock()
}

// GotoLine sets logical_index to the logical position of the 1-based
// user-visible line number N, if that row survives the current
// filter; else clamps to the nearest valid index.
func (vm *ViewModel) GotoLine(n int) {
	target := model.RowId(n - 1)
	vm.mu.Lock()
	defer vm.mu.Unlock()
	idx := -1
	for i, id := range vm.order {
		if id == target {
			idx = i
			break
		}
		if id > target && idx == -1 {
			idx = i // first surviving row at or after the target
		}
	}
	if idx == -1 {
		idx = len(vm.order) - 1
	}
	vm.cursor.LogicalIndex = idx
	vm.clampCursor()
	vm.rememberRowID()
}

// JumpToMatch moves the cursor onto a finder match's cell. The
// match's column is a source column index; it is translated back to
// its position among the visible columns.
func (vm *ViewModel) JumpToMatch(m model.Match) {
	vm.mu.Lock()
	vm.cursor.LogicalIndex = m.LogicalIndex
	for vi, ci := range vm.visibleCols {
		if ci == m.ColumnIndex {
			vm.cursor.ColumnIndex = vi
			break
		}
	}
	vm.clampCursor()
	vm.rememberRowID()
	vm.mu.Unlock()
}

func (vm *ViewModel) rememberRowID() {
	if vm.cursor.Empty || vm.cursor.LogicalIndex >= len(vm.order) {
		return
	}
	vm.lastRowID = vm.order[vm.cursor.LogicalIndex]
}

// CycleSelectionMode advances Row -> Column -> Cell -> Row.
func (vm *ViewModel) CycleSelectionMode() {
	vm.mu.Lock()
	vm.selection = (vm.selection + 1) % 3
	vm.mu.Unlock()
}

func (vm *ViewModel) SelectionMode() model.SelectionMode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.selection
}

// ToggleWrap cycles Off<->mode, with Chars or Words selected by
// whichever of the two toggle keys triggered it.
func (vm *ViewModel) ToggleWrap(mode model.WrapMode) {
	vm.mu.Lock()
	if vm.wrap == mode {
		vm.wrap = model.WrapOff
	} else {
		vm.wrap = mode
	}
	vm.mu.Unlock()
}

func (vm *ViewModel) Wrap() model.WrapMode {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.wrap
}

// SetFreeze sets the frozen-column count k, clamped to
// [0, |visible_columns|].
func (vm *ViewModel) SetFreeze(k int) {
	vm.mu.Lock()
	if k < 0 {
		k = 0
	}
	if k > len(vm.visibleCols) {
		k = len(vm.visibleCols)
	}
	vm.frozenCount = k
	vm.mu.Unlock()
}

func (vm *ViewModel) FrozenCount() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.frozenCount
}

const (
	widthStep = 4
	minWidth  = 3
	maxWidth  = 512
)

// AdjustColumnWidth changes the selected column's custom width by
// step * delta, clamped.
func (vm *ViewModel) AdjustColumnWidth(delta int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.cursor.Empty || len(vm.visibleCols) == 0 {
		return
	}
	col := vm.cursor.ColumnIndex
	if vm.customWidths == nil {
		vm.customWidths = make(map[int]int)
	}
	cur, ok := vm.customWidths[col]
	if !ok {
		cur = 0 // unset: layout falls back to natural width until first adjustment
	}
	cur += delta * widthStep
	if cur < minWidth {
		cur = minWidth
	}
	if cur > maxWidth {
		cur = maxWidth
	}
	vm.customWidths[col] = cur
}

// CustomWidths returns a copy of the custom-width overrides, keyed by
// visible-column index.
func (vm *ViewModel) CustomWidths() map[int]int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make(map[int]int, len(vm.customWidths))
	for k, v := range vm.customWidths {
		out[k] = v
	}
	return out
}

// reresolveCursor tries to find the prior selected RowId in the new
// logical sequence; if absent, it clamps to the nearest valid index.
func (vm *ViewModel) reresolveCursor() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if !vm.hasCursor {
		vm.clampCursor()
		return
	}
	for i, id := range vm.order {
		if id == vm.lastRowID {
			vm.cursor.LogicalIndex = i
			vm.clampCursor()
			return
		}
	}
	vm.clampCursor()
}
