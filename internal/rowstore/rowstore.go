// Package rowstore decodes single records on demand given a RowId,
// backed by the byte index for offset lookup and a small LRU so
// repeated renders and finder passes don't re-parse the same rows.
package rowstore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/csvquery/csvlens/internal/common"
	"github.com/csvquery/csvlens/internal/index"
	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/source"
)

// Pending is returned by Fetch when the Byte Index hasn't reached
// rowID yet; the caller should retry once more rows are indexed.
var Pending = fmt.Errorf("rowstore: row not yet indexed")

// Store decodes records on demand from src, using idx to locate each
// record's byte range.
type Store struct {
	src       source.Adapter
	idx       *index.ByteIndex
	separator rune
	cache     *common.RowCache
}

// New creates a Store. cacheSize should be at least one viewport's
// worth of rows.
func New(src source.Adapter, idx *index.ByteIndex, separator rune, cacheSize int) *Store {
	return &Store{src: src, idx: idx, separator: separator, cache: common.NewRowCache(cacheSize)}
}

// Fetch returns rowID's decoded cells, using the cache when possible.
func (s *Store) Fetch(rowID model.RowId) ([]string, error) {
	if cells, ok := s.cache.Get(int64(rowID)); ok {
		return cells, nil
	}

	startLk := s.idx.Offset(rowID)
	if startLk.NotYet {
		return nil, Pending
	}
	if startLk.OutOfRange {
		return nil, fmt.Errorf("rowstore: row %d out of range", rowID)
	}
	endLk := s.idx.End(rowID)
	var length int64
	switch {
	case endLk.NotYet:
		// The row's terminating boundary hasn't been committed yet;
		// refusing to decode here is what keeps a mid-record write from
		// ever rendering as a partial row under streaming.
		return nil, Pending
	case endLk.OutOfRange:
		length = s.src.Size() - int64(startLk.Offset)
	default:
		length = int64(endLk.Offset) - int64(startLk.Offset)
	}

	buf := make([]byte, length)
	n, err := s.src.ReadAt(buf, int64(startLk.Offset))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("rowstore: read row %d: %w", rowID, err)
	}
	cells, err := decodeRecord(buf[:n], s.separator)
	if err != nil {
		return nil, fmt.Errorf("rowstore: decode row %d: %w", rowID, err)
	}
	s.cache.Put(int64(rowID), cells)
	return cells, nil
}

// decodeRecord parses exactly one CSV record from a buffer, accepting
// irregular arity (encoding/csv's FieldsPerRecord = -1) and decoding
// cells as lossy UTF-8.
func decodeRecord(buf []byte, separator rune) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(buf))
	r.Comma = separator
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rec, err := r.Read()
	if err != nil && err != io.EOF {
		return nil, err
	}
	out := make([]string, len(rec))
	for i, c := range rec {
		if utf8.ValidString(c) {
			out[i] = c
		} else {
			out[i] = toValidUTF8(c)
		}
	}
	return out, nil
}

func toValidUTF8(s string) string {
	var b bytes.Buffer
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		b.WriteRune(r) // utf8.RuneError decodes to the replacement char
		i += size
	}
	return b.String()
}

// Cell returns a single cell, reading as empty string if the record
// has fewer cells than columnIndex (a missing cell in an irregular
// record).
func Cell(cells []string, columnIndex int) string {
	if columnIndex < 0 || columnIndex >= len(cells) {
		return ""
	}
	return cells[columnIndex]
}

// Invalidate drops the whole cache, called on source epoch change.
func (s *Store) Invalidate() { s.cache.Invalidate() }
