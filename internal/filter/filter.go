// Package filter evaluates row filters (regex or exact-cell match)
// and column filters over header names, producing the filtered row-id
// sequence the view is built from.
package filter

import (
	"regexp"
	"sync"

	"github.com/csvquery/csvlens/internal/model"
)

// RowSource is the slice of the Byte Index + Row Store the Filter
// Engine needs: how many rows exist so far, whether that count is
// final, and how to decode one.
type RowSource interface {
	Len() model.RowId
	IndexedComplete() bool
	Fetch(model.RowId) ([]string, error)
}

// Engine holds the current row/column filter state and the lazily
// extended filtered sequence derived from it.
type Engine struct {
	mu sync.Mutex

	rows RowSource

	rowRe *regexp.Regexp
	scope model.FilterScope

	colRe *regexp.Regexp

	epoch    model.Epoch
	filtered []model.RowId // strictly increasing RowId
	nextScan model.RowId   // next candidate row to test
}

// New creates a Filter Engine with no active filters (everything
// passes) reading from rows, tagged with epoch.
func New(rows RowSource, epoch model.Epoch) *Engine {
	return &Engine{rows: rows, epoch: epoch}
}

// SetRowFilter installs a new row regex filter and resets the
// filtered sequence. Returns BadPattern if pattern doesn't compile.
func (e *Engine) SetRowFilter(pattern string, scope model.FilterScope, ignoreCase bool) error {
	re, err := CompilePattern(pattern, ignoreCase)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rowRe = re
	e.scope = scope
	e.resetLocked()
	return nil
}

// SetColumnFilter installs a column-name regex, or clears it if
// pattern is "".
func (e *Engine) SetColumnFilter(pattern string, ignoreCase bool) error {
	if pattern == "" {
		e.mu.Lock()
		e.colRe = nil
		e.mu.Unlock()
		return nil
	}
	re, err := CompilePattern(pattern, ignoreCase)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.colRe = re
	e.mu.Unlock()
	return nil
}

// ClearAll removes both filters.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rowRe = nil
	e.colRe = nil
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.filtered = e.filtered[:0]
	e.nextScan = 0
}

// HasRowFilter reports whether a row filter is active.
func (e *Engine) HasRowFilter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rowRe != nil
}

// VisibleColumns applies the column filter to names (header names, or
// synthetic ones), returning the indices that pass, in order. With no
// column filter, all indices pass.
func (e *Engine) VisibleColumns(names []string) []int {
	e.mu.Lock()
	re := e.colRe
	e.mu.Unlock()
	if re == nil {
		all := make([]int, len(names))
		for i := range all {
			all[i] = i
		}
		return all
	}
	return MatchColumns(re, names)
}

// EnsureFiltered extends the filtered sequence, fetching and testing
// candidate rows from rows, until it contains at least `want` entries
// or the Byte Index is exhausted. It is safe to call repeatedly from
// the Coordinator tick; each call does bounded work by stopping after
// `budget` candidate rows have been examined, returning early so the
// caller can yield.
func (e *Engine) EnsureFiltered(want int, budget int) error {
	e.mu.Lock()
	re := e.rowRe
	scope := e.scope
	e.mu.Unlock()

	if re == nil {
		// No filter: the filtered sequence is conceptually "all rows",
		// but callers still address it by index, so materialize lazily
		// too, to keep one code path.
		return e.ensureIdentity(want, budget)
	}

	examined := 0
	for {
		e.mu.Lock()
		haveEnough := len(e.filtered) >= want
		exhausted := e.nextScan >= e.rows.Len() && e.rows.IndexedComplete()
		candidate := e.nextScan
		e.mu.Unlock()
		if haveEnough || exhausted || examined >= budget {
			return nil
		}
		if candidate >= e.rows.Len() {
			return nil // caught up to the indexer; more will arrive later
		}

		cells, err := e.rows.Fetch(candidate)
		examined++
		if err != nil {
			return nil // Pending or transient; try again next call
		}
		e.mu.Lock()
		e.nextScan++
		e.mu.Unlock()

		if rowMatches(re, scope, cells) {
			e.mu.Lock()
			e.filtered = append(e.filtered, candidate)
			e.mu.Unlock()
		}
	}
}

func (e *Engine) ensureIdentity(want, budget int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.filtered) < want && int(e.nextScan) < int(e.rows.Len()) {
		e.filtered = append(e.filtered, e.nextScan)
		e.nextScan++
	}
	return nil
}

// Len returns the number of rows currently materialized in the
// filtered sequence.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.filtered)
}

// At returns the RowId at logical position i in the filtered
// sequence. Callers must have called EnsureFiltered(i+1, ...) first.
func (e *Engine) At(i int) (model.RowId, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.filtered) {
		return 0, false
	}
	return e.filtered[i], true
}

// Snapshot returns a copy of the filtered sequence materialized so
// far, for consumers (Sort Engine) that need the whole thing.
func (e *Engine) Snapshot() []model.RowId {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.RowId, len(e.filtered))
	copy(out, e.filtered)
	return out
}

// Complete reports whether the filtered sequence has consumed the
// entire (complete) Byte Index.
func (e *Engine) Complete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rows.IndexedComplete() && e.nextScan >= e.rows.Len()
}
