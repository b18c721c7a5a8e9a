// Package layout computes column widths under a finite terminal
// width budget, with frozen columns, wrap policy, and row heights.
package layout

import (
	"github.com/csvquery/csvlens/internal/model"
)

const minColumnWidth = 3

// Column describes one laid-out column: its source index into the
// visible-columns list, its header, and its computed width in
// display columns.
type Column struct {
	VisibleIndex int // index into the caller's visible-columns slice
	Header       string
	Width        int
	Frozen       bool
}

// Input bundles everything the Layout Engine needs for one pass.
type Input struct {
	ViewportRows int
	ViewportCols int

	Headers     []string // one per visible column, in order
	SampleCells [][]string // SampleCells[col] = a handful of sampled cell values for that column
	MaxColWidth int        // per-column cap on natural width; 0 = no cap

	CustomWidths map[int]int // visibleIndex -> absolute width override
	FrozenCount  int
	CursorColumn int // visibleIndex currently under the cursor
	Wrap         model.WrapMode

	GutterWidth int // reserved for the line-number column
}

// Output is one computed layout.
type Output struct {
	Columns   []Column // columns actually shown, left to right (frozen first)
	RowHeight func(cells []string) int
}

// Compute runs one layout pass: natural widths from header and
// sampled cells, the frozen region, then a greedy fit around the
// cursor column.
func Compute(in Input) Output {
	natural := make([]int, len(in.Headers))
	for i := range in.Headers {
		w := DisplayWidth(in.Headers[i])
		for _, cell := range in.SampleCells[i] {
			if cw := DisplayWidth(cell); cw > w {
				w = cw
			}
		}
		if in.MaxColWidth > 0 && w > in.MaxColWidth {
			w = in.MaxColWidth
		}
		if custom, ok := in.CustomWidths[i]; ok {
			w = custom
		}
		if w < minColumnWidth {
			w = minColumnWidth
		}
		natural[i] = w
	}

	budget := in.ViewportCols - in.GutterWidth
	if budget < 0 {
		budget = 0
	}

	var cols []Column

	frozenCount := in.FrozenCount
	if frozenCount > len(in.Headers) {
		frozenCount = len(in.Headers)
	}
	frozenWidth := 0
	for i := 0; i < frozenCount; i++ {
		frozenWidth += natural[i]
	}
	if frozenWidth > budget && frozenCount > 0 {
		// Truncate frozen columns proportionally, minimum width 3 each.
		scale := float64(budget) / float64(frozenWidth)
		remaining := budget
		for i := 0; i < frozenCount; i++ {
			w := int(float64(natural[i]) * scale)
			if w < minColumnWidth {
				w = minColumnWidth
			}
			if i == frozenCount-1 {
				w = remaining
				if w < minColumnWidth {
					w = minColumnWidth
				}
			}
			cols = append(cols, Column{VisibleIndex: i, Header: in.Headers[i], Width: w, Frozen: true})
			remaining -= w
		}
		return Output{Columns: cols, RowHeight: rowHeightFunc(in, cols)}
	}
	for i := 0; i < frozenCount; i++ {
		cols = append(cols, Column{VisibleIndex: i, Header: in.Headers[i], Width: natural[i], Frozen: true})
	}
	used := frozenWidth

	// Greedily include columns rightward from the cursor, then one to
	// the left of the cursor if needed to keep it in view, then
	// continue left.
	start := in.CursorColumn
	if start < frozenCount {
		start = frozenCount
	}
	if start >= len(in.Headers) {
		start = frozenCount
	}

	included := make(map[int]bool, len(in.Headers))
	for i := 0; i < frozenCount; i++ {
		included[i] = true
	}

	for i := start; i < len(in.Headers) && used < budget; i++ {
		if included[i] {
			continue
		}
		w := natural[i]
		if used+w > budget {
			break
		}
		cols = append(cols, Column{VisibleIndex: i, Header: in.Headers[i], Width: w})
		included[i] = true
		used += w
	}

	if !included[in.CursorColumn] && in.CursorColumn >= frozenCount && in.CursorColumn < len(in.Headers) {
		w := natural[in.CursorColumn]
		if used+w <= budget {
			cols = append(cols, Column{VisibleIndex: in.CursorColumn, Header: in.Headers[in.CursorColumn], Width: w})
			included[in.CursorColumn] = true
			used += w
		}
	}

	for i := start - 1; i >= frozenCount && used < budget; i-- {
		if included[i] {
			continue
		}
		w := natural[i]
		if used+w > budget {
			break
		}
		cols = append(cols, Column{VisibleIndex: i, Header: in.Headers[i], Width: w})
		included[i] = true
		used += w
	}

	// Columns were appended out of left-to-right order by the
	// rightward/leftward passes above; restore visual order.
	cols = reorderByVisibleIndex(cols, frozenCount)

	return Output{Columns: cols, RowHeight: rowHeightFunc(in, cols)}
}

func reorderByVisibleIndex(cols []Column, frozenCount int) []Column {
	frozen := cols[:0:0]
	rest := make([]Column, 0, len(cols))
	for _, c := range cols {
		if c.Frozen {
			frozen = append(frozen, c)
		} else {
			rest = append(rest, c)
		}
	}
	for i := 0; i < len(rest); i++ {
		for j := i + 1; j < len(rest); j++ {
			if rest[j].VisibleIndex < rest[i].VisibleIndex {
				rest[i], rest[j] = rest[j], rest[i]
			}
		}
	}
	return append(frozen, rest...)
}

// rowHeightFunc measures a row the same way the renderer draws it:
// the height is the tallest WrapCell line count among the shown
// columns (always 1 with wrap off).
func rowHeightFunc(in Input, cols []Column) func(cells []string) int {
	return func(cells []string) int {
		if in.Wrap == model.WrapOff {
			return 1
		}
		height := 1
		for _, c := range cols {
			if c.VisibleIndex >= len(cells) {
				continue
			}
			if h := len(WrapCell(cells[c.VisibleIndex], c.Width, in.Wrap)); h > height {
				height = h
			}
		}
		return height
	}
}
