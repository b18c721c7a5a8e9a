// Package viewmodel composes the filter engine, sort engine, and
// finder into one ordered logical row sequence, and holds the cursor,
// selection mode, marks, wrap mode, frozen-column count, and custom
// column widths that the rest of the UI reads.
package viewmodel

import (
	"sync"

	"github.com/csvquery/csvlens/internal/filter"
	"github.com/csvquery/csvlens/internal/finder"
	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/sortengine"
)

// RowSource is what the View Model needs from the Byte Index + Row
// Store pairing: row count, completeness, and decoding. Row 0 (the
// header, if enabled) is never part of it — the Coordinator supplies
// a RowSource that already begins at the first data row.
type RowSource interface {
	Len() model.RowId
	IndexedComplete() bool
	Fetch(model.RowId) ([]string, error)
}

// ViewModel is the mutable state behind the Normal-mode screen.
type ViewModel struct {
	mu sync.Mutex

	epoch model.Epoch
	rows  RowSource

	headerNames []string // raw header names, or synthetic "1","2",...
	filterEng   *filter.Engine
	sortSpec    sortengine.Spec

	order        []model.RowId // current logical sequence (post filter+sort)
	orderPartial bool
	visibleCols  []int

	// Applied-state fingerprint of the last Refresh, so the periodic
	// tick skips recomputing (and re-sorting) an unchanged sequence.
	orderValid      bool
	appliedSort     sortengine.Spec
	appliedSeqLen   int
	appliedComplete bool

	find *finder.Finder

	cursor    model.Cursor
	selection model.SelectionMode
	marks     map[model.RowId]struct{}
	lastRowID model.RowId
	hasCursor bool

	wrap         model.WrapMode
	frozenCount  int
	customWidths map[int]int

	viewportHeight int
	statusMsg      string
	clipboardLimit int
}

// New builds a fresh View Model for one source epoch.
func New(epoch model.Epoch, rows RowSource, headerNames []string, clipboardLimit int) *ViewModel {
	vm := &ViewModel{
		epoch:          epoch,
		rows:           rows,
		headerNames:    headerNames,
		filterEng:      filter.New(rows, epoch),
		sortSpec:       sortengine.Spec{Column: -1},
		marks:          make(map[model.RowId]struct{}),
		viewportHeight: 20,
		clipboardLimit: clipboardLimit,
	}
	vm.visibleCols = vm.filterEng.VisibleColumns(headerNames)
	return vm
}

// SetViewportHeight records the current viewport row count, used by
// Window/HalfWindow motions.
func (vm *ViewModel) SetViewportHeight(h int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if h > 0 {
		vm.viewportHeight = h
	}
}

// StatusMessage returns the note last stored by SetStatusMessage,
// cleared by SetStatusMessage("").
func (vm *ViewModel) StatusMessage() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.statusMsg
}

func (vm *ViewModel) SetStatusMessage(msg string) {
	vm.mu.Lock()
	vm.statusMsg = msg
	vm.mu.Unlock()
}

// Refresh ensures the logical sequence contains at least through
// logical index `through` (exclusive upper bound), re-running the
// filter extension and sort. budget bounds the filter-extension work
// done in this call so the Coordinator tick stays responsive.
func (vm *ViewModel) Refresh(through, budget int) {
	vm.mu.Lock()
	eng := vm.filterEng
	spec := vm.sortSpec
	vm.mu.Unlock()

	eng.EnsureFiltered(through, budget)

	seqLen := eng.Len()
	complete := eng.Complete()
	vm.mu.Lock()
	unchanged := vm.orderValid && vm.appliedSort == spec &&
		vm.appliedSeqLen == seqLen && vm.appliedComplete == complete
	vm.mu.Unlock()
	if unchanged {
		return
	}

	seq := eng.Snapshot()

	var result sortengine.Result
	if len(seq) > sortengine.ExternalThreshold {
		if r, err := sortengine.ApplyExternal(seq, complete, vm.rows, spec); err == nil {
			result = r
		} else {
			result = sortengine.Apply(seq, complete, vm.rows, spec)
		}
	} else {
		result = sortengine.Apply(seq, complete, vm.rows, spec)
	}

	vm.mu.Lock()
	vm.order = result.Order
	vm.orderPartial = result.Partial
	vm.orderValid = true
	vm.appliedSort = spec
	vm.appliedSeqLen = seqLen
	vm.appliedComplete = complete
	vm.mu.Unlock()

	vm.reresolveCursor()
}

// Len returns the length of the currently materialized logical
// sequence, always equal to the filtered sequence's length.
func (vm *ViewModel) Len() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(vm.order)
}

// SortPending reports whether the current sort was computed against a
// partial filtered sequence (still being extended).
func (vm *ViewModel) SortPending() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.orderPartial
}

// RowAt resolves a logical index to a RowId. Implements
// finder.LogicalSource.
func (vm *ViewModel) RowAt(logicalIndex int) (model.RowId, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if logicalIndex < 0 || logicalIndex >= len(vm.order) {
		return 0, false
	}
	return vm.order[logicalIndex], true
}

// Fetch decodes a row. Implements finder.LogicalSource and
// sortengine.RowSource.
func (vm *ViewModel) Fetch(id model.RowId) ([]string, error) { return vm.rows.Fetch(id) }

// VisibleColumns returns the current column-filtered set of column
// indices, in order. Implements finder.LogicalSource.
func (vm *ViewModel) VisibleColumns() []int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]int, len(vm.visibleCols))
	copy(out, vm.visibleCols)
	return out
}

// HeaderNames returns the raw header/synthetic names, unfiltered.
func (vm *ViewModel) HeaderNames() []string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.headerNames
}

// SetRowFilter installs a new row filter; the caller should Refresh()
// afterward to rebuild the logical sequence.
func (vm *ViewModel) SetRowFilter(pattern string, scope model.FilterScope, ignoreCase bool) error {
	if err := vm.filterEng.SetRowFilter(pattern, scope, ignoreCase); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.find = nil
	vm.orderValid = false
	vm.mu.Unlock()
	return nil
}

// SetColumnFilter installs or clears the column filter and recomputes
// visible columns immediately (it doesn't need the Byte Index to
// extend, only the header).
func (vm *ViewModel) SetColumnFilter(pattern string, ignoreCase bool) error {
	if err := vm.filterEng.SetColumnFilter(pattern, ignoreCase); err != nil {
		return err
	}
	vm.mu.Lock()
	vm.visibleCols = vm.filterEng.VisibleColumns(vm.headerNames)
	if vm.cursor.ColumnIndex >= len(vm.visibleCols) {
		vm.cursor.ColumnIndex = maxInt(0, len(vm.visibleCols)-1)
	}
	vm.mu.Unlock()
	return nil
}

// ClearAllFilters drops both filters.
func (vm *ViewModel) ClearAllFilters() {
	vm.filterEng.ClearAll()
	vm.mu.Lock()
	vm.visibleCols = vm.filterEng.VisibleColumns(vm.headerNames)
	vm.find = nil
	vm.orderValid = false
	vm.mu.Unlock()
}

// SetSort installs a new sort spec. column = -1 clears sorting.
func (vm *ViewModel) SetSort(column int, dir model.SortDirection, mode model.SortMode) {
	vm.mu.Lock()
	vm.sortSpec = sortengine.Spec{Column: column, Direction: dir, Mode: mode}
	vm.mu.Unlock()
}

// SortSpec returns the active sort configuration, used to carry the
// sort forward across a source epoch change.
func (vm *ViewModel) SortSpec() sortengine.Spec {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.sortSpec
}

// SetFind installs (or clears, with pattern == "") an active Finder
// preseeded to scan forward from the current cursor.
func (vm *ViewModel) SetFind(pattern string, scope model.FilterScope, ignoreCase bool) error {
	if pattern == "" {
		vm.mu.Lock()
		vm.find = nil
		vm.mu.Unlock()
		return nil
	}
	f, err := finder.New(vm, pattern, scope, ignoreCase)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	at := vm.cursor.LogicalIndex
	vm.find = f
	vm.mu.Unlock()
	f.SeekTo(at)
	return nil
}

// Finder returns the active Finder, or nil.
func (vm *ViewModel) Finder() *finder.Finder {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.find
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
