// Package finder provides a seekable cursor over cells matching a
// regex in the current logical row sequence.
package finder

import (
	"regexp"
	"sync"

	"github.com/csvquery/csvlens/internal/filter"
	"github.com/csvquery/csvlens/internal/model"
)

// LogicalSource is the slice of the View Model the Finder needs: the
// current logical (filtered+sorted) sequence length, a way to resolve
// a logical index to a RowId, the visible columns to scan, and cell
// decoding.
type LogicalSource interface {
	Len() int
	RowAt(logicalIndex int) (model.RowId, bool)
	VisibleColumns() []int
	Fetch(model.RowId) ([]string, error)
}

// Finder scans src lazily, extending its internal match list outward
// from wherever the cursor last stopped.
type Finder struct {
	mu sync.Mutex

	src   LogicalSource
	re    *regexp.Regexp
	scope model.FilterScope

	matches []model.Match
	scanned int // logical indices [0,scanned) have been searched
	cursor  int // index into matches; -1 if no current match
}

// New compiles pattern with smartcase and returns a Finder over src,
// or a *model.BadPattern error.
func New(src LogicalSource, pattern string, scope model.FilterScope, ignoreCase bool) (*Finder, error) {
	re, err := filter.CompilePattern(pattern, ignoreCase)
	if err != nil {
		return nil, err
	}
	return &Finder{src: src, re: re, scope: scope, cursor: -1}, nil
}

// extendTo scans logical indices forward until it has searched at
// least through index target (exclusive upper bound) or the source is
// exhausted.
func (f *Finder) extendTo(target int) {
	for f.scanned < target && f.scanned < f.src.Len() {
		i := f.scanned
		rowID, ok := f.src.RowAt(i)
		if !ok {
			break
		}
		cells, err := f.src.Fetch(rowID)
		if err == nil {
			cols := f.src.VisibleColumns()
			candidateCols := cols
			if f.scope.Kind == model.ScopeColumn || f.scope.Kind == model.ScopeExactCell {
				candidateCols = []int{f.scope.Column}
			}
			for _, col := range candidateCols {
				if col < 0 || col >= len(cells) {
					continue
				}
				cell := cells[col]
				for _, loc := range f.re.FindAllStringIndex(cell, -1) {
					f.matches = append(f.matches, model.Match{
						LogicalIndex: i,
						ColumnIndex:  col,
						Span:         model.ByteSpan{Start: loc[0], End: loc[1]},
					})
				}
			}
		}
		f.scanned++
	}
}

// extendAll scans the entire current logical source.
func (f *Finder) extendAll() { f.extendTo(f.src.Len()) }

// Next advances to the next match after the current cursor position,
// extending the scan as needed. Returns false if none exists.
func (f *Finder) Next() (model.Match, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if f.cursor+1 < len(f.matches) {
			f.cursor++
			return f.matches[f.cursor], true
		}
		if f.scanned >= f.src.Len() {
			return model.Match{}, false
		}
		f.extendTo(f.scanned + 1)
	}
}

// Prev moves to the previous match before the current cursor.
func (f *Finder) Prev() (model.Match, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor <= 0 {
		return model.Match{}, false
	}
	f.cursor--
	return f.matches[f.cursor], true
}

// Count forces a full scan and returns the total number of matches.
func (f *Finder) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extendAll()
	return len(f.matches)
}

// Current returns the match at the cursor, if any.
func (f *Finder) Current() (model.Match, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor < 0 || f.cursor >= len(f.matches) {
		return model.Match{}, false
	}
	return f.matches[f.cursor], true
}

// SeekTo resets the cursor so the next Next() call lands on the
// first match at or after fromLogicalIndex, used when the user jumps
// the cursor manually while a find is active.
func (f *Finder) SeekTo(fromLogicalIndex int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extendTo(fromLogicalIndex + 1)
	f.cursor = -1
	for i, m := range f.matches {
		if m.LogicalIndex >= fromLogicalIndex {
			f.cursor = i - 1
			break
		}
	}
	if f.cursor == -1 && len(f.matches) > 0 {
		// every match is before fromLogicalIndex
		lastBefore := -1
		for i, m := range f.matches {
			if m.LogicalIndex < fromLogicalIndex {
				lastBefore = i
			}
		}
		f.cursor = lastBefore
	}
}

// HighlightsInWindow returns the matches whose LogicalIndex falls in
// [start,end), for the renderer to intersect with the laid-out cells.
func (f *Finder) HighlightsInWindow(start, end int) []model.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extendTo(end)
	var out []model.Match
	for _, m := range f.matches {
		if m.LogicalIndex >= start && m.LogicalIndex < end {
			out = append(out, m)
		}
	}
	return out
}
