package viewmodel

import (
	"sort"

	"github.com/csvquery/csvlens/internal/model"
)

// ToggleMark adds or removes the current row's RowId from the mark
// set. Marks persist across filter/sort changes within an epoch
// because they're keyed by RowId, not logical index.
func (vm *ViewModel) ToggleMark() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.cursor.Empty {
		return
	}
	id := vm.order[vm.cursor.LogicalIndex]
	if _, ok := vm.marks[id]; ok {
		delete(vm.marks, id)
	} else {
		vm.marks[id] = struct{}{}
	}
}

// ClearMarks empties the mark set.
func (vm *ViewModel) ClearMarks() {
	vm.mu.Lock()
	vm.marks = make(map[model.RowId]struct{})
	vm.mu.Unlock()
}

// IsMarked reports whether rowID is currently marked.
func (vm *ViewModel) IsMarked(id model.RowId) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, ok := vm.marks[id]
	return ok
}

// MarkedRowIDs returns the current marks, sorted ascending by RowId so
// consumers (Ctrl+e echo) emit them in a stable, document order.
func (vm *ViewModel) MarkedRowIDs() []model.RowId {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]model.RowId, 0, len(vm.marks))
	for id := range vm.marks {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SeedMarks installs a carried-over mark set from the prior epoch's
// view model, dropping any RowId that no longer exists under total
// (the new epoch's row count). A mark is a positional bookmark: it
// survives a reload even when the content at that position changed,
// and is pruned only when the position itself is gone.
func (vm *ViewModel) SeedMarks(ids []model.RowId, total model.RowId) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, id := range ids {
		if id < total {
			vm.marks[id] = struct{}{}
		}
	}
}
