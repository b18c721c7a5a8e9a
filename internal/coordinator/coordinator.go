// Package coordinator runs the single-threaded, cooperative event
// loop built on bubbletea's Elm architecture, tying together
// keystroke events, the background indexer's progress notifications,
// source change notifications, and a periodic refresh tick.
package coordinator

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/csvquery/csvlens/internal/command"
	"github.com/csvquery/csvlens/internal/index"
	"github.com/csvquery/csvlens/internal/layout"
	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/rowstore"
	"github.com/csvquery/csvlens/internal/sortengine"
	"github.com/csvquery/csvlens/internal/source"
	"github.com/csvquery/csvlens/internal/viewmodel"
)

const refreshTick = 250 * time.Millisecond

// Options carries the CLI-resolved configuration the Coordinator
// needs to wire the rest of the components together.
type Options struct {
	Separator      rune
	Headers        bool
	ColumnsRegex   string
	FilterRegex    string
	FindRegex      string
	IgnoreCase     bool
	EchoColumnName string
	Prompt         string
	ColorColumns   bool
	Wrap           model.WrapMode
	ClipboardLimit int
	RowCacheSize   int

	// CheckpointPath, when non-empty, names an on-disk byte-index
	// checkpoint to try loading at startup and to save once indexing
	// completes, keyed by Fingerprint, so relaunching against an
	// unchanged file skips the re-index.
	CheckpointPath string
	Fingerprint    index.Fingerprint
}

// Coordinator is a tea.Model driving one csvlens session over src.
type Coordinator struct {
	opts Options
	src  source.Adapter

	epoch model.Epoch
	idx   *index.ByteIndex
	store *rowstore.Store
	rows  *dataRows

	progressCh chan index.Progress
	cancelCh   chan struct{}

	headerNames []string
	ready       bool

	vm  *viewmodel.ViewModel
	cmd *command.Machine

	width, height int
	layoutOut     layout.Output
	gutterWidth   int

	statusMsg       string
	loading         bool
	quitting        bool
	stdout          io.Writer
	checkpointSaved bool
	warningsShown   int
}

// New starts the background indexer against src and returns a
// Coordinator ready to run under tea.NewProgram.
func New(opts Options, src source.Adapter) *Coordinator {
	epoch := model.Epoch(1)
	idx := loadOrNewIndex(opts, epoch)
	store := rowstore.New(src, idx, opts.Separator, rowCacheSize(opts))
	c := &Coordinator{
		opts:       opts,
		src:        src,
		epoch:      epoch,
		idx:        idx,
		store:      store,
		progressCh: make(chan index.Progress, 8),
		cancelCh:   make(chan struct{}),
		stdout:     os.Stdout,
	}
	if idx.IndexedComplete() {
		c.checkpointSaved = true // already trusted as complete, nothing new to save
	}
	c.startIndexer()
	return c
}

// loadOrNewIndex tries opts.CheckpointPath first; a checkpoint whose
// fingerprint no longer matches the file (or that doesn't exist) falls
// back to an empty index, indexed from scratch as usual.
func loadOrNewIndex(opts Options, epoch model.Epoch) *index.ByteIndex {
	if opts.CheckpointPath != "" {
		if idx, ok, err := index.LoadCheckpoint(opts.CheckpointPath, uint64(epoch), opts.Fingerprint); err == nil && ok {
			return idx
		}
	}
	return index.New(epoch)
}

func rowCacheSize(opts Options) int {
	if opts.RowCacheSize > 0 {
		return opts.RowCacheSize
	}
	return 4096
}

func (c *Coordinator) startIndexer() {
	w := index.NewWorker(c.idx, c.src, byte(c.opts.Separator), c.progressCh, c.cancelCh)
	go w.Run()
}

// dataRows adapts (Byte Index, Row Store) to viewmodel.RowSource,
// shifting row numbers so row 0 is the first *data* row whenever
// headers are enabled — the header itself is rendered separately by
// the Coordinator, never part of the logical sequence.
type dataRows struct {
	idx          *index.ByteIndex
	store        *rowstore.Store
	headerOffset model.RowId
}

func (d *dataRows) Len() model.RowId {
	n := d.idx.Len()
	if n < d.headerOffset {
		return 0
	}
	return n - d.headerOffset
}

func (d *dataRows) IndexedComplete() bool { return d.idx.IndexedComplete() }

func (d *dataRows) Fetch(id model.RowId) ([]string, error) {
	return d.store.Fetch(id + d.headerOffset)
}

// Init kicks off the refresh ticker; header/view-model construction
// happens lazily in Update once the indexer has produced row 0.
func (c *Coordinator) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshTick, func(time.Time) tea.Msg { return tickMsg{} })
}

type tickMsg struct{}

func (c *Coordinator) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width, c.height = msg.Width, msg.Height
		if c.vm != nil {
			c.vm.SetViewportHeight(msg.Height - reservedRows)
		}
		return c, nil

	case tea.KeyMsg:
		if !c.ready {
			if msg.Type == tea.KeyCtrlC {
				c.quitting = true
				return c, tea.Quit
			}
			return c, nil
		}
		res := c.cmd.HandleKey(msg)
		if res.Status != "" {
			c.statusMsg = res.Status
			if res.Status == "echo" {
				c.echoMarked()
				c.statusMsg = ""
			}
		} else {
			c.statusMsg = ""
		}
		if res.Quit {
			c.quitting = true
			if c.cmd.RequestedExit() {
				c.publishEchoOnExit()
			}
			c.teardown()
			return c, tea.Quit
		}
		c.refreshLayout()
		return c, nil

	case tickMsg:
		c.drainProgress()
		c.drainSourceChange()
		if !c.ready {
			c.tryBecomeReady()
		}
		if c.ready {
			through := c.vm.Len() + c.visibleRows()
			c.vm.Refresh(through, filterBudget)
			c.refreshLayout()
		}
		return c, tick()
	}
	return c, nil
}

const (
	reservedRows = 2 // status line + header line
	filterBudget = 4000
)

func (c *Coordinator) visibleRows() int {
	if c.height <= reservedRows {
		return 50
	}
	return c.height - reservedRows
}

// drainProgress consumes any buffered indexer Progress messages
// without blocking, so the UI thread never waits on the worker.
func (c *Coordinator) drainProgress() {
	for {
		select {
		case p := <-c.progressCh:
			if p.Err != nil {
				c.statusMsg = fmt.Sprintf("index error: %v", p.Err)
			}
			if p.Complete && p.Epoch == c.epoch {
				c.maybeSaveCheckpoint()
			}
		default:
			c.surfaceNewWarning()
			return
		}
	}
}

// surfaceNewWarning promotes the first parse warning to the status
// line. Warnings keep accumulating in the index, but only the first
// occurrence interrupts, so a file with many malformed records
// doesn't spam the one-line status as indexing continues.
func (c *Coordinator) surfaceNewWarning() {
	warnings := c.idx.Warnings()
	if len(warnings) <= c.warningsShown {
		return
	}
	if c.warningsShown == 0 {
		c.statusMsg = warnings[0].Error()
	}
	c.warningsShown = len(warnings)
}

// drainSourceChange checks an AutoReload source's OnChange notifier; a
// signal means the Coordinator's owned epoch token must bump and every
// derived component be rebuilt against a fresh index. Other sources
// are left alone: StreamedStdin signals on the same channel when it
// appends bytes, and that signal belongs to the index worker.
func (c *Coordinator) drainSourceChange() {
	if _, ok := c.src.(*source.AutoReload); !ok {
		return
	}
	ch := c.src.OnChange()
	if ch == nil {
		return
	}
	select {
	case <-ch:
		c.bumpEpoch()
	default:
	}
}

// maybeSaveCheckpoint persists the now-complete index once per epoch,
// off the UI thread, so a later relaunch against the same file can
// skip re-indexing.
func (c *Coordinator) maybeSaveCheckpoint() {
	if c.checkpointSaved || c.opts.CheckpointPath == "" {
		return
	}
	c.checkpointSaved = true
	path, idx, fp := c.opts.CheckpointPath, c.idx, c.opts.Fingerprint
	go index.SaveCheckpoint(path, idx, fp)
}

func (c *Coordinator) bumpEpoch() {
	close(c.cancelCh)
	c.cancelCh = make(chan struct{})
	c.epoch++
	c.idx = index.New(c.epoch)
	c.store = rowstore.New(c.src, c.idx, c.opts.Separator, rowCacheSize(c.opts))
	c.startIndexer()
	c.ready = false
	c.statusMsg = "source changed, re-indexing…"
	// The checkpoint's fingerprint describes the file at launch; once
	// the source has changed under us that fingerprint is stale, so
	// stop trying to load or save against it for the new epoch.
	c.opts.CheckpointPath = ""
	c.checkpointSaved = true
	c.warningsShown = 0
}

// tryBecomeReady constructs the header names and View Model as soon
// as the indexer has committed row 0 (the header row, if enabled) —
// it doesn't wait for indexing to complete.
func (c *Coordinator) tryBecomeReady() {
	minRows := model.RowId(1)
	if !c.opts.Headers {
		minRows = 0
	}
	if c.idx.Len() <= minRows && !c.idx.IndexedComplete() {
		c.loading = true
		return
	}
	c.loading = false

	headerOffset := model.RowId(0)
	var names []string
	if c.opts.Headers {
		cells, err := c.store.Fetch(0)
		if err == nil {
			names = cells
			headerOffset = 1
		}
	}
	if names == nil {
		n := 0
		if c.idx.Len() > headerOffset {
			probe, err := c.store.Fetch(headerOffset)
			if err == nil {
				n = len(probe)
			}
		}
		names = syntheticNames(n)
	}

	// A rebuild after an epoch bump (c.vm already existed) carries
	// forward the sort spec and marks the user had set, rather than
	// resetting to the startup defaults.
	var priorSort *sortengine.Spec
	var priorMarks []model.RowId
	if c.vm != nil {
		s := c.vm.SortSpec()
		priorSort = &s
		priorMarks = c.vm.MarkedRowIDs()
	}

	c.rows = &dataRows{idx: c.idx, store: c.store, headerOffset: headerOffset}
	c.headerNames = names
	c.vm = viewmodel.New(c.epoch, c.rows, names, c.opts.ClipboardLimit)
	c.vm.SetViewportHeight(c.visibleRows())
	if c.opts.Wrap != model.WrapOff {
		c.vm.ToggleWrap(c.opts.Wrap)
	}
	if priorSort != nil {
		c.vm.SetSort(priorSort.Column, priorSort.Direction, priorSort.Mode)
		c.vm.SeedMarks(priorMarks, c.rows.Len())
	}

	echoCol := -1
	if c.opts.EchoColumnName != "" {
		for i, n := range names {
			if n == c.opts.EchoColumnName {
				echoCol = i
				break
			}
		}
	}
	c.cmd = command.New(c.vm, c.opts.Separator, echoCol)

	if c.opts.ColumnsRegex != "" {
		if err := c.vm.SetColumnFilter(c.opts.ColumnsRegex, c.opts.IgnoreCase); err != nil {
			c.statusMsg = err.Error()
		}
	}
	if c.opts.FilterRegex != "" {
		if err := c.vm.SetRowFilter(c.opts.FilterRegex, model.FilterScope{Kind: model.ScopeAnyColumn}, c.opts.IgnoreCase); err != nil {
			c.statusMsg = err.Error()
		}
	}
	c.vm.Refresh(c.visibleRows(), filterBudget)
	if c.opts.FindRegex != "" {
		if err := c.vm.SetFind(c.opts.FindRegex, model.FilterScope{Kind: model.ScopeAnyColumn}, c.opts.IgnoreCase); err != nil {
			c.statusMsg = err.Error()
		}
	}

	c.ready = true
	c.refreshLayout()
}

func syntheticNames(n int) []string {
	if n == 0 {
		n = 1
	}
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func (c *Coordinator) refreshLayout() {
	if c.vm == nil || c.width == 0 {
		return
	}
	visCols := c.vm.VisibleColumns()
	headers := make([]string, len(visCols))
	for i, ci := range visCols {
		if ci < len(c.headerNames) {
			headers[i] = c.headerNames[ci]
		}
	}
	sample := c.sampleCells(visCols)
	c.gutterWidth = lineNumberGutterWidth(c.rows.Len())
	in := layout.Input{
		ViewportRows: c.visibleRows(),
		ViewportCols: c.width,
		Headers:      headers,
		SampleCells:  sample,
		CustomWidths: c.vm.CustomWidths(),
		FrozenCount:  c.vm.FrozenCount(),
		CursorColumn: c.vm.Cursor().ColumnIndex,
		Wrap:         c.vm.Wrap(),
		GutterWidth:  c.gutterWidth,
	}
	c.layoutOut = layout.Compute(in)
}

// lineNumberGutterWidth sizes the line-number column to the widest
// row number indexed so far (at least 3 digits). It is recomputed on
// every layout pass, so the gutter widens as more of the file is
// indexed.
func lineNumberGutterWidth(total model.RowId) int {
	digits := len(strconv.Itoa(int(total) + 1))
	if digits < 3 {
		digits = 3
	}
	return digits + 1 // +1 for the trailing space before the grid
}

// sampleCells gathers a small window of rows around the cursor to
// feed the layout engine's natural-width computation.
func (c *Coordinator) sampleCells(visCols []int) [][]string {
	out := make([][]string, len(visCols))
	n := c.vm.Len()
	start := 0
	cur := c.vm.Cursor()
	if !cur.Empty {
		start = cur.LogicalIndex - 10
		if start < 0 {
			start = 0
		}
	}
	end := start + 40
	if end > n {
		end = n
	}
	for i := start; i < end; i++ {
		id, ok := c.vm.RowAt(i)
		if !ok {
			continue
		}
		cells, err := c.vm.Fetch(id)
		if err != nil {
			continue
		}
		for ci, colIdx := range visCols {
			if colIdx < len(cells) {
				out[ci] = append(out[ci], cells[colIdx])
			}
		}
	}
	return out
}

// echoMarked implements the Ctrl+e binding: every marked row written
// to stdout as a CSV line.
func (c *Coordinator) echoMarked() {
	if c.vm == nil {
		return
	}
	if err := c.vm.EchoMarkedRows(c.stdout, c.opts.Separator); err != nil {
		c.statusMsg = fmt.Sprintf("echo failed: %v", err)
	}
}

// publishEchoOnExit implements the Enter-in-Cell-mode stdout contract.
func (c *Coordinator) publishEchoOnExit() {
	if c.vm == nil {
		return
	}
	echoCol := -1
	if c.opts.EchoColumnName != "" {
		for i, n := range c.headerNames {
			if n == c.opts.EchoColumnName {
				echoCol = i
				break
			}
		}
	}
	_ = c.vm.EchoOnExit(c.stdout, echoCol, c.opts.Separator)
}

func (c *Coordinator) teardown() {
	close(c.cancelCh)
	c.src.Close()
}

func (c *Coordinator) View() string {
	if c.quitting {
		return ""
	}
	if !c.ready {
		return c.renderLoading()
	}
	switch c.cmd.State() {
	case command.StateHelp:
		return c.renderHelp()
	}

	var b strings.Builder
	b.WriteString(c.renderHeaderLine())
	b.WriteByte('\n')
	b.WriteString(c.renderRows())
	b.WriteByte('\n')
	b.WriteString(c.renderStatusLine())
	if s := c.renderInputLine(); s != "" {
		b.WriteByte('\n')
		b.WriteString(s)
	}
	return b.String()
}

// estimateTotalRows extrapolates the eventual row count from the
// average bytes-per-row seen in the prefix indexed so far against the
// source's current total size, so the loading screen and status line
// can show an approximate total before indexing completes.
func (c *Coordinator) estimateTotalRows() (model.RowId, bool) {
	n := c.idx.Len()
	if n < 16 {
		return 0, false
	}
	last := c.idx.Offset(n - 1)
	if last.NotYet || last.OutOfRange || last.Offset <= 0 {
		return 0, false
	}
	total := c.src.Size()
	if total <= int64(last.Offset) {
		return 0, false
	}
	avg := float64(last.Offset) / float64(n)
	if avg <= 0 {
		return 0, false
	}
	return model.RowId(float64(total) / avg), true
}

func (c *Coordinator) renderLoading() string {
	n := c.idx.Len()
	if est, ok := c.estimateTotalRows(); ok {
		return fmt.Sprintf("Loading… %d of ~%d rows indexed", n, est)
	}
	return fmt.Sprintf("Loading… ~%d rows indexed so far", n)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle  = lipgloss.NewStyle().Reverse(true)
	frozenDivider  = lipgloss.NewStyle().Faint(true)
	gutterStyle    = lipgloss.NewStyle().Faint(true)
	altColumnStyle = lipgloss.NewStyle().Background(lipgloss.Color("235"))
	matchStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
)

// padLineNumber right-aligns a physical row's 1-based line number within
// width, leaving the trailing column lineNumberGutterWidth reserves for
// a space before the mark column.
func padLineNumber(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	pad := width - 1 - len(s)
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + s + " "
}

func (c *Coordinator) renderHeaderLine() string {
	parts := []string{strings.Repeat(" ", c.gutterWidth)}
	for _, col := range c.layoutOut.Columns {
		cell := layout.Truncate(col.Header, col.Width)
		parts = append(parts, headerStyle.Render(padTo(cell, col.Width)))
		if col.Frozen {
			parts = append(parts, frozenDivider.Render("|"))
		}
	}
	return strings.Join(parts, " ")
}

func (c *Coordinator) renderRows() string {
	cur := c.vm.Cursor()
	visCols := c.vm.VisibleColumns()
	wrap := c.vm.Wrap()
	h := c.visibleRows()
	top := 0
	if !cur.Empty {
		top = cur.LogicalIndex - h/2
		if top < 0 {
			top = 0
		}
	}

	// Finder matches in the window, keyed by (logical row, source
	// column); a matched cell is styled whole.
	highlighted := make(map[[2]int]bool)
	if f := c.vm.Finder(); f != nil {
		for _, m := range f.HighlightsInWindow(top, top+h) {
			highlighted[[2]int{m.LogicalIndex, m.ColumnIndex}] = true
		}
	}

	var lines []string
	for idx := top; idx < c.vm.Len() && len(lines) < h; idx++ {
		id, ok := c.vm.RowAt(idx)
		if !ok {
			break
		}
		cells, err := c.vm.Fetch(id)
		if err != nil {
			continue
		}

		rowHeight := 1
		if c.layoutOut.RowHeight != nil {
			visCells := make([]string, len(visCols))
			for vi, si := range visCols {
				if si < len(cells) {
					visCells[vi] = cells[si]
				}
			}
			rowHeight = c.layoutOut.RowHeight(visCells)
		}
		if rowHeight > h-len(lines) {
			rowHeight = h - len(lines)
		}

		colLines := make([][]string, len(c.layoutOut.Columns))
		srcIdxs := make([]int, len(c.layoutOut.Columns))
		for ci, col := range c.layoutOut.Columns {
			text := ""
			srcIdxs[ci] = -1
			if col.VisibleIndex < len(visCols) {
				srcIdxs[ci] = visCols[col.VisibleIndex]
				if srcIdxs[ci] < len(cells) {
					text = cells[srcIdxs[ci]]
				}
			}
			colLines[ci] = layout.WrapCell(text, col.Width, wrap)
		}

		mark := " "
		if c.vm.IsMarked(id) {
			mark = "*"
		}

		for li := 0; li < rowHeight; li++ {
			var b strings.Builder
			if li == 0 {
				b.WriteString(gutterStyle.Render(padLineNumber(int64(id)+1, c.gutterWidth)))
				b.WriteString(mark)
			} else {
				b.WriteString(strings.Repeat(" ", c.gutterWidth+1))
			}
			var parts []string
			for ci, col := range c.layoutOut.Columns {
				seg := ""
				if li < len(colLines[ci]) {
					seg = colLines[ci][li]
				}
				seg = layout.Truncate(seg, col.Width)
				seg = padTo(seg, col.Width)
				selected := !cur.Empty && idx == cur.LogicalIndex && ci == cur.ColumnIndex
				switch {
				case selected:
					seg = selectedStyle.Render(seg)
				case highlighted[[2]int{idx, srcIdxs[ci]}]:
					seg = matchStyle.Render(seg)
				case c.opts.ColorColumns && col.VisibleIndex%2 == 1:
					seg = altColumnStyle.Render(seg)
				}
				parts = append(parts, seg)
			}
			b.WriteString(strings.Join(parts, " "))
			lines = append(lines, b.String())
		}
	}
	return strings.Join(lines, "\n")
}

func padTo(s string, width int) string {
	w := layout.DisplayWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func (c *Coordinator) renderStatusLine() string {
	prompt := c.opts.Prompt
	mode := c.vm.SelectionMode().String()
	sortNote := ""
	if c.vm.SortPending() {
		sortNote = " sorting…"
	}
	loadNote := ""
	if !c.rows.IndexedComplete() {
		if est, ok := c.estimateTotalRows(); ok {
			loadNote = fmt.Sprintf(" indexing… ~%d total", est)
		} else {
			loadNote = " indexing…"
		}
	}
	msg := c.statusMsg
	if msg != "" {
		msg = " " + msg
	}
	return fmt.Sprintf("%s%d rows [%s]%s%s%s", prompt, c.vm.Len(), mode, sortNote, loadNote, msg)
}

func (c *Coordinator) renderInputLine() string {
	switch c.cmd.State() {
	case command.StateFindInput:
		return "/" + c.cmd.InputView()
	case command.StateFilterInput:
		return "&" + c.cmd.InputView()
	case command.StateColumnFilterInput:
		return "*" + c.cmd.InputView()
	case command.StateJumpInput:
		return ":" + c.cmd.InputView()
	case command.StateFreezeInput:
		return "f" + c.cmd.InputView()
	}
	return ""
}

func (c *Coordinator) renderHelp() string {
	return "csvlens — keys: / find  & filter  * columns  : jump  NG jump  v select-mode  w/W wrap  f freeze  y/Y/ctrl+y copy  space mark  ctrl+e echo marks  q quit  (any key to close)"
}

// Run starts the bubbletea program. It blocks until the user exits.
func Run(opts Options, src source.Adapter) error {
	c := New(opts, src)
	p := tea.NewProgram(c, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
