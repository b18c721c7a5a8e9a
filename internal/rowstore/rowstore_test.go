package rowstore

import (
	"io"
	"testing"
	"time"

	"github.com/csvquery/csvlens/internal/index"
	"github.com/csvquery/csvlens/internal/model"
)

type memSource struct{ data []byte }

func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
func (m *memSource) Size() int64              { return int64(len(m.data)) }
func (m *memSource) OnChange() <-chan struct{} { return nil }
func (m *memSource) IsFinalized() bool         { return true }
func (m *memSource) Close() error              { return nil }

func buildIndex(t *testing.T, csv string) (*index.ByteIndex, *memSource) {
	t.Helper()
	idx := index.New(1)
	src := &memSource{data: []byte(csv)}
	progress := make(chan index.Progress, 256)
	cancel := make(chan struct{})
	w := index.NewWorker(idx, src, ',', progress, cancel)
	done := make(chan struct{})
	go func() { w.Run(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("indexer did not finish")
	}
	return idx, src
}

func TestFetchDecodesRegularRows(t *testing.T) {
	idx, src := buildIndex(t, "a,b\n1,x\n2,y\n")
	s := New(src, idx, ',', 16)

	cells, err := s.Fetch(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 2 || cells[0] != "1" || cells[1] != "x" {
		t.Fatalf("got %v", cells)
	}
}

func TestFetchHandlesIrregularArity(t *testing.T) {
	idx, src := buildIndex(t, "a,b,c\n1,2\n3,4,5,6\n")
	s := New(src, idx, ',', 16)

	short, err := s.Fetch(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(short) != 2 {
		t.Fatalf("short row: got %v", short)
	}
	if Cell(short, 2) != "" {
		t.Fatalf("missing cell should read empty, got %q", Cell(short, 2))
	}

	long, err := s.Fetch(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(long) != 4 {
		t.Fatalf("long row: got %v", long)
	}
}

func TestFetchPendingBeforeIndexed(t *testing.T) {
	idx := index.New(1)
	src := &memSource{data: []byte("a,b\n")}
	s := New(src, idx, ',', 16)
	_, err := s.Fetch(5)
	if err != Pending {
		t.Fatalf("expected Pending, got %v", err)
	}
}

func TestFetchUsesCache(t *testing.T) {
	idx, src := buildIndex(t, "a,b\n1,x\n2,y\n")
	s := New(src, idx, ',', 16)
	if _, err := s.Fetch(0); err != nil {
		t.Fatal(err)
	}
	if entries, _ := cacheStats(s); entries != 1 {
		t.Fatalf("expected 1 cached entry, got %d", entries)
	}
	s.Invalidate()
	if entries, _ := cacheStats(s); entries != 0 {
		t.Fatalf("expected cache cleared, got %d", entries)
	}
}

func cacheStats(s *Store) (int, int) { return s.cache.Stats() }

var _ = model.RowId(0)
