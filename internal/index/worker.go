package index

import (
	"fmt"
	"io"
	"time"

	"github.com/csvquery/csvlens/internal/model"
	"github.com/csvquery/csvlens/internal/simd"
	"github.com/csvquery/csvlens/internal/source"
)

// Progress is published on the notifier channel after each batch, and
// consumed by the Coordinator to drive the status line and decide
// when to wake the view model.
type Progress struct {
	Epoch    model.Epoch
	Len      model.RowId
	Complete bool
	Err      error // set once, non-nil only on a fatal (non-stall) failure
}

// chunkSize is the read window. A var, not a const, so tests can
// shrink it to exercise records that span multiple chunks.
var chunkSize = 1 << 20

const (
	batchRows     = 2000 // publish progress at least this often
	batchInterval = 150 * time.Millisecond
	pollBackoff   = 40 * time.Millisecond
)

// Worker scans src from its current epoch's last committed offset
// forward, appending record boundaries to idx. It runs on its own
// goroutine; Run blocks until the source is exhausted, cancelled, or
// restarted by the caller constructing a new Worker for a new epoch.
type Worker struct {
	idx       *ByteIndex
	src       source.Adapter
	separator byte
	progress  chan<- Progress
	cancel    <-chan struct{}
}

// NewWorker builds a worker that indexes src into idx, reporting to
// progress. cancel is closed to stop the worker early (epoch bump or
// shutdown); the worker checks it at batch boundaries.
func NewWorker(idx *ByteIndex, src source.Adapter, separator byte, progress chan<- Progress, cancel <-chan struct{}) *Worker {
	return &Worker{idx: idx, src: src, separator: separator, progress: progress, cancel: cancel}
}

// Run is the worker's entry point; call it in its own goroutine.
func (w *Worker) Run() {
	pos := w.idx.snapshotTail()
	buf := make([]byte, chunkSize)
	quoteOpen := false
	pendingStarts := make([]int64, 0, batchRows)
	lastPublish := time.Now()

	notify := func(p Progress) {
		select {
		case w.progress <- p:
		default:
		}
	}
	publish := func() {
		w.idx.appendOffsets(pendingStarts)
		pendingStarts = pendingStarts[:0]
		notify(Progress{Epoch: w.idx.epoch, Len: w.idx.Len()})
		lastPublish = time.Now()
	}

	for {
		select {
		case <-w.cancel:
			return
		default:
		}

		n, err := w.src.ReadAt(buf, pos)
		atEnd := err == io.EOF && w.src.IsFinalized()
		if n > 0 {
			w.idx.clearStalled()
			consumed := w.scanChunk(buf[:n], pos, &quoteOpen, &pendingStarts, atEnd)
			pos += int64(consumed)
			if len(pendingStarts) >= batchRows || time.Since(lastPublish) > batchInterval {
				publish()
			}
		}

		if err == nil {
			continue
		}

		switch {
		case err == io.EOF:
			if w.src.IsFinalized() {
				if quoteOpen {
					w.idx.addWarning(model.ParseWarning{RowId: w.idx.Len(), Msg: "unterminated quote at EOF"})
				}
				// A final record with no trailing newline still needs its
				// end committed: append pos as the terminating boundary so
				// the row counts and its byte range is bounded.
				tail := w.idx.snapshotTail()
				if len(pendingStarts) > 0 {
					tail = pendingStarts[len(pendingStarts)-1]
				}
				if pos > tail {
					pendingStarts = append(pendingStarts, pos)
				}
				w.idx.appendOffsets(pendingStarts)
				pendingStarts = pendingStarts[:0]
				w.idx.markComplete()
				notify(Progress{Epoch: w.idx.epoch, Len: w.idx.Len(), Complete: true})
				return
			}
			// Streaming source: commit what we have, then wait for more
			// bytes so the visible row count keeps up with the producer.
			if len(pendingStarts) > 0 {
				publish()
			}
			select {
			case <-w.cancel:
				return
			case <-time.After(pollBackoff):
			case <-w.src.OnChange():
			}
		case isNotYetAvailable(err):
			if len(pendingStarts) > 0 {
				publish()
			}
			select {
			case <-w.cancel:
				return
			case <-time.After(pollBackoff):
			case <-w.src.OnChange():
			}
		default:
			w.idx.setStalled(fmt.Errorf("indexer stalled: %w", err))
			select {
			case <-w.cancel:
				return
			case <-time.After(pollBackoff * 5):
			}
		}
	}
}

func isNotYetAvailable(err error) bool {
	_, ok := err.(source.ErrNotYetAvailable)
	return ok
}

// scanChunk walks chunk looking for unquoted newlines, using the SIMD
// bitmap scan to locate quote/newline/separator bytes in one pass,
// then resolving quote state sequentially since a record boundary
// depends on the parity of quotes seen so far, not just position.
//
// The whole chunk is consumed and quoteOpen carries across calls, so a
// record larger than one chunk just keeps scanning; the one byte that
// can be deferred is a quote in the chunk's final position while a
// field is open, because a closing quote and the first half of an
// escaped pair ("") are indistinguishable without the next byte. atEnd
// resolves that case at true end-of-input, where no next byte exists.
func (w *Worker) scanChunk(chunk []byte, chunkBase int64, quoteOpen *bool, starts *[]int64, atEnd bool) int {
	words := (len(chunk) + 63) / 64
	quotes := make([]uint64, words)
	seps := make([]uint64, words)
	newlines := make([]uint64, words)
	simd.ScanWithSeparator(chunk, w.separator, quotes, seps, newlines)

	for i := 0; i < len(chunk); i++ {
		word, bit := i/64, uint(i%64)
		if quotes[word]&(1<<bit) != 0 {
			if *quoteOpen {
				if i+1 < len(chunk) {
					if chunk[i+1] == '"' {
						i++ // escaped pair, still inside the field
						continue
					}
					*quoteOpen = false
				} else if atEnd {
					*quoteOpen = false
				} else {
					return i // re-scan this quote once its neighbor arrives
				}
			} else {
				*quoteOpen = true
			}
			continue
		}
		if newlines[word]&(1<<bit) != 0 && !*quoteOpen {
			*starts = append(*starts, chunkBase+int64(i)+1)
		}
	}
	return len(chunk)
}
