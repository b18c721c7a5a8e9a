package viewmodel

import (
	"bytes"
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/writer"
)

// CopyTarget selects what a copy operation acts on.
type CopyTarget int

const (
	CopyCell CopyTarget = iota
	CopyRow
	CopyColumn
)

// CopySelection copies the current selection to the system clipboard.
// Column copy walks the full logical sequence in filter/sort order,
// truncating at vm.clipboardLimit and reporting truncation via the
// returned message.
func (vm *ViewModel) CopySelection(target CopyTarget, separator rune) (string, error) {
	vm.mu.Lock()
	if vm.cursor.Empty {
		vm.mu.Unlock()
		return "", fmt.Errorf("viewmodel: nothing selected")
	}
	rowID := vm.order[vm.cursor.LogicalIndex]
	col := vm.cursor.ColumnIndex
	visCol := 0
	if col < len(vm.visibleCols) {
		visCol = vm.visibleCols[col]
	}
	total := len(vm.order)
	limit := vm.clipboardLimit
	vm.mu.Unlock()

	var text string
	var status string

	switch target {
	case CopyCell:
		cells, err := vm.rows.Fetch(rowID)
		if err != nil {
			return "", err
		}
		text = cellOrEmpty(cells, visCol)
	case CopyRow:
		cells, err := vm.rows.Fetch(rowID)
		if err != nil {
			return "", err
		}
		text = encodeCSVLine(cells, separator)
	case CopyColumn:
		n := total
		truncated := false
		if limit > 0 && n > limit {
			n = limit
			truncated = true
		}
		var b bytes.Buffer
		for i := 0; i < n; i++ {
			id, ok := vm.RowAt(i)
			if !ok {
				break
			}
			cells, err := vm.rows.Fetch(id)
			if err != nil {
				continue
			}
			b.WriteString(cellOrEmpty(cells, visCol))
			b.WriteByte('\n')
		}
		text = b.String()
		if truncated {
			status = fmt.Sprintf("copied %d of %d values (truncated)", n, total)
		} else {
			status = fmt.Sprintf("copied %d values", n)
		}
	}

	if err := clipboard.WriteAll(text); err != nil {
		return "", &model.ClipboardUnavailable{Err: err}
	}
	if status == "" {
		status = "copied to clipboard"
	}
	return status, nil
}

func cellOrEmpty(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// encodeCSVLine renders one record as a single CSV line, reusing the
// same writer.EchoWriter the Ctrl+e binding writes through, so both
// paths quote/escape identically.
func encodeCSVLine(cells []string, separator rune) string {
	var b bytes.Buffer
	w := writer.New(&b, writer.Config{Separator: separator})
	w.Write(cells)
	return b.String()
}

// EchoOnExit publishes the Enter-in-Cell-mode exit payload: the
// selected cell, or the named column's value when echoColumnIndex is
// set, written with a trailing newline to w (stdout in the real CLI).
func (vm *ViewModel) EchoOnExit(w io.Writer, echoColumnIndex int, separator rune) error {
	vm.mu.Lock()
	empty := vm.cursor.Empty
	var rowID model.RowId
	var selCol int
	if !empty {
		rowID = vm.order[vm.cursor.LogicalIndex]
		if vm.cursor.ColumnIndex < len(vm.visibleCols) {
			selCol = vm.visibleCols[vm.cursor.ColumnIndex]
		}
	}
	vm.mu.Unlock()
	if empty {
		return nil
	}

	cells, err := vm.rows.Fetch(rowID)
	if err != nil {
		return err
	}

	outCol := selCol
	if echoColumnIndex >= 0 {
		outCol = echoColumnIndex
	}
	if _, err := fmt.Fprintln(w, cellOrEmpty(cells, outCol)); err != nil {
		return err
	}
	return nil
}

// EchoMarkedRows writes every marked row as a CSV line to w (the
// Ctrl+e binding), delimiter preserved.
func (vm *ViewModel) EchoMarkedRows(w io.Writer, separator rune) error {
	ew := writer.New(w, writer.Config{Separator: separator})
	for _, id := range vm.MarkedRowIDs() {
		cells, err := vm.rows.Fetch(id)
		if err != nil {
			continue
		}
		if err := ew.Write(cells); err != nil {
			return err
		}
	}
	return nil
}
