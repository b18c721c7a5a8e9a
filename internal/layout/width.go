package layout

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/csvquery/csvlens/internal/model"
)

// tabStop is the column width CSV cells' embedded tabs expand to, the
// conventional terminal default.
const tabStop = 8

// DisplayWidth computes s's on-screen width: grapheme width with East
// Asian Wide counted as 2 (delegated to go-runewidth, the same
// library the pack's TUI repos use for layout math), tabs expanded to
// the next multiple of tabStop, and control characters rendered in
// caret form ("^A") at width 2.
func DisplayWidth(s string) int {
	width := 0
	col := 0
	for _, r := range s {
		switch {
		case r == '\t':
			next := ((col / tabStop) + 1) * tabStop
			width += next - col
			col = next
		case r < 0x20 || r == 0x7f:
			width += 2
			col += 2
		default:
			w := runewidth.RuneWidth(r)
			width += w
			col += w
		}
	}
	return width
}

// Render renders s the way DisplayWidth measures it: tabs expanded,
// control characters in caret form. Used by the renderer, not just
// for width accounting.
func Render(s string) string {
	var b strings.Builder
	col := 0
	for _, r := range s {
		switch {
		case r == '\t':
			next := ((col / tabStop) + 1) * tabStop
			for col < next {
				b.WriteByte(' ')
				col++
			}
		case r < 0x20 || r == 0x7f:
			b.WriteByte('^')
			if r == 0x7f {
				b.WriteByte('?')
			} else {
				b.WriteByte('@' + byte(r))
			}
			col += 2
		default:
			b.WriteRune(r)
			col += runewidth.RuneWidth(r)
		}
	}
	return b.String()
}

// WrapCell splits a cell's rendered text (tabs expanded, control
// chars in caret form) into the physical lines one laid-out column
// shows for it. WrapOff returns a single line, left for the caller to
// truncate; Chars breaks at the width boundary; Words soft-breaks on
// spaces, falling back to char breaks for tokens wider than the
// column. Row heights are defined as the line count this returns, so
// measurement and rendering can't drift apart.
func WrapCell(s string, width int, mode model.WrapMode) []string {
	rendered := Render(s)
	if mode == model.WrapOff || width <= 0 {
		return []string{rendered}
	}
	if mode == model.WrapChars {
		return chunkByWidth(rendered, width)
	}
	return wordWrapLines(rendered, width)
}

func chunkByWidth(s string, width int) []string {
	var lines []string
	var b strings.Builder
	col := 0
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if col+w > width && col > 0 {
			lines = append(lines, b.String())
			b.Reset()
			col = 0
		}
		b.WriteRune(r)
		col += w
	}
	return append(lines, b.String())
}

func wordWrapLines(s string, width int) []string {
	var lines []string
	line := ""
	lineW := 0
	flush := func() {
		lines = append(lines, line)
		line = ""
		lineW = 0
	}
	for _, word := range strings.Split(s, " ") {
		ww := DisplayWidth(word)
		if ww > width {
			if lineW > 0 {
				flush()
			}
			chunks := chunkByWidth(word, width)
			for _, chunk := range chunks[:len(chunks)-1] {
				line = chunk
				flush()
			}
			line = chunks[len(chunks)-1]
			lineW = DisplayWidth(line)
			continue
		}
		sep := 0
		if lineW > 0 {
			sep = 1
		}
		if lineW+sep+ww > width {
			flush()
			line = word
			lineW = ww
		} else {
			if sep == 1 {
				line += " "
			}
			line += word
			lineW += sep + ww
		}
	}
	if line != "" || len(lines) == 0 {
		lines = append(lines, line)
	}
	return lines
}

// Truncate trims s to fit within maxWidth display columns, appending
// an ellipsis ("…", width 1) if it had to cut anything.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if DisplayWidth(s) <= maxWidth {
		return s
	}
	if maxWidth == 1 {
		return "…"
	}
	budget := maxWidth - 1
	width := 0
	var b strings.Builder
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if width+w > budget {
			break
		}
		b.WriteRune(r)
		width += w
	}
	b.WriteRune('…')
	return b.String()
}
