// Package index maintains an append-only map from row id to byte
// offset, built incrementally by a background worker so the UI never
// blocks on indexing, and rebuilt from scratch whenever the source's
// epoch changes.
package index

import (
	"sync"

	"github.com/csvquery/csvlens/internal/model"
)

// Lookup is the result of Offset: either a known byte offset, or one
// of the two sentinels below, mirrored as a typed result rather than
// an error so hot-path callers don't pay for error wrapping.
type Lookup struct {
	Offset     model.Offset
	NotYet     bool // row hasn't been indexed yet, may still exist
	OutOfRange bool // row is known not to exist in this epoch
}

// ByteIndex maps RowId -> Offset for one source epoch. It is safe for
// concurrent use: one background worker appends while the UI thread
// reads.
type ByteIndex struct {
	mu       sync.RWMutex
	epoch    model.Epoch
	offsets  []int64 // offsets[i] is the start of row i; strictly increasing
	complete bool
	warnings []model.ParseWarning
	stalled  error
}

// New creates an empty index for the given epoch. Row 0's offset (0)
// is recorded immediately per the invariant offsets[0] = 0.
func New(epoch model.Epoch) *ByteIndex {
	return &ByteIndex{epoch: epoch, offsets: []int64{0}}
}

// Epoch returns the source epoch this index was built for.
func (b *ByteIndex) Epoch() model.Epoch {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.epoch
}

// Len returns the number of rows indexed so far. Monotonically
// non-decreasing within an epoch.
func (b *ByteIndex) Len() model.RowId {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return model.RowId(len(b.offsets) - 1)
}

// Offset returns the byte offset of rowID's first byte, or a typed
// NotYet/OutOfRange result.
func (b *ByteIndex) Offset(rowID model.RowId) Lookup {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rowID < 0 {
		return Lookup{OutOfRange: true}
	}
	if int(rowID) >= len(b.offsets)-1 {
		if b.complete {
			return Lookup{OutOfRange: true}
		}
		return Lookup{NotYet: true}
	}
	return Lookup{Offset: model.Offset(b.offsets[rowID])}
}

// End returns the offset one past rowID's last byte, used to bound a
// single record's read. Every indexed row has a committed end: the
// offsets slice always holds one more entry than Len(), the boundary
// where the next record starts (or end-of-input for the last row), so
// a row is only ever addressable once its terminating newline has
// been seen. NotYet/OutOfRange follow Offset's semantics for rows not
// present yet.
func (b *ByteIndex) End(rowID model.RowId) Lookup {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rowID < 0 || int(rowID) >= len(b.offsets)-1 {
		if b.complete {
			return Lookup{OutOfRange: true}
		}
		return Lookup{NotYet: true}
	}
	return Lookup{Offset: model.Offset(b.offsets[rowID+1])}
}

// IndexedComplete reports whether indexing has reached end-of-input
// for the current epoch.
func (b *ByteIndex) IndexedComplete() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.complete
}

// Stalled returns the last IndexerStalled error, if the background
// worker hit a transient read error and is waiting to retry.
func (b *ByteIndex) Stalled() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stalled
}

// appendOffsets is called by the worker with newly discovered record
// start offsets, in increasing RowId order. Returns the new Len().
func (b *ByteIndex) appendOffsets(starts []int64) model.RowId {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offsets = append(b.offsets, starts...)
	return model.RowId(len(b.offsets) - 1)
}

func (b *ByteIndex) markComplete() {
	b.mu.Lock()
	b.complete = true
	b.mu.Unlock()
}

func (b *ByteIndex) setStalled(err error) {
	b.mu.Lock()
	b.stalled = err
	b.mu.Unlock()
}

func (b *ByteIndex) clearStalled() {
	b.mu.Lock()
	b.stalled = nil
	b.mu.Unlock()
}

func (b *ByteIndex) addWarning(w model.ParseWarning) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.warnings) < 64 { // cap: the status line only ever shows the first
		b.warnings = append(b.warnings, w)
	}
}

// Warnings returns parse warnings recorded so far (unterminated quotes
// at EOF, etc.), oldest first.
func (b *ByteIndex) Warnings() []model.ParseWarning {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.ParseWarning, len(b.warnings))
	copy(out, b.warnings)
	return out
}

// snapshotTail returns the last recorded offset, used by the worker to
// resume scanning after the last committed record boundary.
func (b *ByteIndex) snapshotTail() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.offsets[len(b.offsets)-1]
}
