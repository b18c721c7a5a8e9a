package command

import "github.com/charmbracelet/bubbles/key"

// KeyMap binds the Normal-state key vocabulary. Input states
// (FindInput, FilterInput, ...) consume the embedded textinput.Model's
// own line-editing keys instead of these.
type KeyMap struct {
	Up, Down, Left, Right   key.Binding
	PageUp, PageDown        key.Binding
	HalfPageUp, HalfPageDn  key.Binding
	Home, End               key.Binding
	FirstColumn, LastColumn key.Binding
	WindowLeft, WindowRight key.Binding

	Find          key.Binding
	Filter        key.Binding
	ColumnFilter  key.Binding
	ClearFilters  key.Binding
	FindCell      key.Binding
	FilterCell    key.Binding
	Next, Prev    key.Binding
	Sort          key.Binding
	SortReverse   key.Binding
	SortNatural   key.Binding
	ClearSort     key.Binding
	SelectMode    key.Binding
	WrapChars     key.Binding
	WrapWords     key.Binding
	Freeze        key.Binding
	WidenColumn   key.Binding
	NarrowColumn  key.Binding
	ToggleMark    key.Binding
	ClearMarks    key.Binding
	CopyCell      key.Binding
	CopyRow       key.Binding
	CopyColumn    key.Binding
	EchoMarked    key.Binding
	JumpTo        key.Binding
	GotoEnd       key.Binding
	Help          key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:           key.NewBinding(key.WithKeys("up", "k")),
		Down:         key.NewBinding(key.WithKeys("down", "j")),
		Left:         key.NewBinding(key.WithKeys("left", "h")),
		Right:        key.NewBinding(key.WithKeys("right", "l")),
		PageUp:       key.NewBinding(key.WithKeys("pgup", "b")),
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		HalfPageUp:   key.NewBinding(key.WithKeys("u")),
		HalfPageDn:   key.NewBinding(key.WithKeys("d")),
		Home:         key.NewBinding(key.WithKeys("g")),
		End:          key.NewBinding(key.WithKeys("G")),
		FirstColumn:  key.NewBinding(key.WithKeys("^")),
		LastColumn:   key.NewBinding(key.WithKeys("$")),
		WindowLeft:   key.NewBinding(key.WithKeys("<")),
		WindowRight:  key.NewBinding(key.WithKeys(">")),

		Find:         key.NewBinding(key.WithKeys("/")),
		Filter:       key.NewBinding(key.WithKeys("&")),
		ColumnFilter: key.NewBinding(key.WithKeys("*")),
		ClearFilters: key.NewBinding(key.WithKeys("c")),
		FindCell:     key.NewBinding(key.WithKeys("#")),
		FilterCell:   key.NewBinding(key.WithKeys("@")),
		Next:         key.NewBinding(key.WithKeys("n")),
		Prev:         key.NewBinding(key.WithKeys("N")),
		Sort:         key.NewBinding(key.WithKeys("s")),
		SortReverse:  key.NewBinding(key.WithKeys("S")),
		SortNatural:  key.NewBinding(key.WithKeys("t")),
		ClearSort:    key.NewBinding(key.WithKeys("T")),
		SelectMode:   key.NewBinding(key.WithKeys("v")),
		WrapChars:    key.NewBinding(key.WithKeys("w")),
		WrapWords:    key.NewBinding(key.WithKeys("W")),
		Freeze:       key.NewBinding(key.WithKeys("f")),
		WidenColumn:  key.NewBinding(key.WithKeys("+")),
		NarrowColumn: key.NewBinding(key.WithKeys("-")),
		ToggleMark:   key.NewBinding(key.WithKeys(" ")),
		ClearMarks:   key.NewBinding(key.WithKeys("C")),
		CopyCell:     key.NewBinding(key.WithKeys("y")),
		CopyRow:      key.NewBinding(key.WithKeys("Y")),
		CopyColumn:   key.NewBinding(key.WithKeys("ctrl+y")),
		EchoMarked:   key.NewBinding(key.WithKeys("ctrl+e")),
		JumpTo:       key.NewBinding(key.WithKeys(":")),
		GotoEnd:      key.NewBinding(key.WithKeys("G")),
		Help:         key.NewBinding(key.WithKeys("H", "?")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c")),
	}
}

func isDigitRune(r rune) bool { return r >= '0' && r <= '9' }
