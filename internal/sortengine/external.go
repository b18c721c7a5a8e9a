package sortengine

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/csvquery/csvlens/internal/model"
	"github.com/pierrec/lz4/v4"
)

// ExternalThreshold is the filtered-sequence length above which the
// View Model sorts with ApplyExternal (spilling runs to disk) instead
// of the in-memory Apply, for inputs too big to hold comfortably as a
// single []keyed slice.
const ExternalThreshold = 500_000

// chunkRows bounds one in-memory run before it's flushed to a spill
// file. A var, not a const, so tests can shrink it to exercise the
// multi-run merge path without generating huge fixtures.
var chunkRows = 100_000

// ApplyExternal computes the same result as Apply but via an external
// merge sort: sorted runs of chunkRows are spilled to LZ4-compressed
// temp files, then merged with a min-heap keyed the same way Apply's
// in-memory comparator works. Used when len(seq) > ExternalThreshold.
func ApplyExternal(seq []model.RowId, seqComplete bool, rows RowSource, spec Spec) (Result, error) {
	if spec.Column < 0 {
		order := make([]model.RowId, len(seq))
		copy(order, seq)
		return Result{Order: order, Partial: !seqComplete}, nil
	}

	var runFiles []string
	defer func() {
		for _, p := range runFiles {
			os.Remove(p)
		}
	}()

	for start := 0; start < len(seq); start += chunkRows {
		end := start + chunkRows
		if end > len(seq) {
			end = len(seq)
		}
		path, err := spillSortedRun(seq[start:end], rows, spec)
		if err != nil {
			return Result{}, fmt.Errorf("sortengine: spill run: %w", err)
		}
		runFiles = append(runFiles, path)
	}

	order, err := mergeRuns(runFiles, spec)
	if err != nil {
		return Result{}, fmt.Errorf("sortengine: merge runs: %w", err)
	}
	return Result{Order: order, Partial: !seqComplete}, nil
}

type runEntry struct {
	id  model.RowId
	key string
}

func spillSortedRun(chunk []model.RowId, rows RowSource, spec Spec) (string, error) {
	entries := make([]runEntry, 0, len(chunk))
	for _, id := range chunk {
		cells, err := rows.Fetch(id)
		key := ""
		if err == nil && spec.Column < len(cells) {
			key = cells[spec.Column]
		}
		entries = append(entries, runEntry{id: id, key: key})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return lessEntries(entries[i], entries[j], spec)
	})

	f, err := os.CreateTemp("", "csvlens-sort-run-*.bin")
	if err != nil {
		return "", err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	lzw := lz4.NewWriter(bw)
	for _, e := range entries {
		writeEntry(lzw, e)
	}
	if err := lzw.Close(); err != nil {
		return "", err
	}
	if err := bw.Flush(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func lessEntries(a, b runEntry, spec Spec) bool {
	var c int
	if spec.Mode == model.SortNatural {
		c = compareNatural(a.key, b.key)
	} else {
		c = compareLex(a.key, b.key)
	}
	if c == 0 {
		return a.id < b.id
	}
	if spec.Direction == model.Desc {
		return c > 0
	}
	return c < 0
}

func writeEntry(w *lz4.Writer, e runEntry) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(e.key)))
	w.Write(lenBuf[:])
	w.Write([]byte(e.key))
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], uint64(e.id))
	w.Write(idBuf[:])
}

func readEntry(r *lz4.Reader) (runEntry, bool) {
	var lenBuf [4]byte
	if _, err := readFullLZ4(r, lenBuf[:]); err != nil {
		return runEntry{}, false
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	key := make([]byte, n)
	if _, err := readFullLZ4(r, key); err != nil {
		return runEntry{}, false
	}
	var idBuf [8]byte
	if _, err := readFullLZ4(r, idBuf[:]); err != nil {
		return runEntry{}, false
	}
	id := model.RowId(binary.LittleEndian.Uint64(idBuf[:]))
	return runEntry{id: id, key: string(key)}, true
}

func readFullLZ4(r *lz4.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}

// mergeHeapItem is one run's current head entry, tracked by a min-heap
// ordered the same way the in-memory comparator works.
type mergeHeapItem struct {
	entry   runEntry
	runIdx  int
}

type mergeHeap struct {
	items []mergeHeapItem
	spec  Spec
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	return lessEntries(h.items[i].entry, h.items[j].entry, h.spec)
}
func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x interface{}) { h.items = append(h.items, x.(mergeHeapItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

func mergeRuns(runFiles []string, spec Spec) ([]model.RowId, error) {
	readers := make([]*lz4.Reader, len(runFiles))
	files := make([]*os.File, len(runFiles))
	for i, p := range runFiles {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		files[i] = f
		readers[i] = lz4.NewReader(bufio.NewReader(f))
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	h := &mergeHeap{spec: spec}
	heap.Init(h)
	for i, r := range readers {
		if e, ok := readEntry(r); ok {
			heap.Push(h, mergeHeapItem{entry: e, runIdx: i})
		}
	}

	var order []model.RowId
	for h.Len() > 0 {
		top := heap.Pop(h).(mergeHeapItem)
		order = append(order, top.entry.id)
		if e, ok := readEntry(readers[top.runIdx]); ok {
			heap.Push(h, mergeHeapItem{entry: e, runIdx: top.runIdx})
		}
	}
	return order, nil
}
