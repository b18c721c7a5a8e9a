package source

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// StreamedStdin spills stdin to a temp file as bytes arrive so the
// Byte Index can do position-independent reads against it like any
// other file, instead of the indexer having to special-case a
// forward-only reader. The temp file is removed on Close.
type StreamedStdin struct {
	tmp        *os.File
	mu         sync.RWMutex
	size       int64 // bytes committed to disk so far
	finalized  int32
	changeCh   chan struct{}
	copyErr    error
	copyErrMu  sync.Mutex
	noStream   bool // --no-streaming-stdin: block until fully spilled
	readerDone chan struct{}
}

// NewStreamedStdin begins copying r (normally os.Stdin) into a temp
// file in the background. If noStream is true, the caller should wait
// on Wait() before constructing the Byte Index, disabling incremental
// reads per --no-streaming-stdin.
func NewStreamedStdin(r io.Reader, noStream bool) (*StreamedStdin, error) {
	tmp, err := os.CreateTemp("", "csvlens-stdin-*.csv")
	if err != nil {
		return nil, fmt.Errorf("spill stdin: %w", err)
	}
	s := &StreamedStdin{
		tmp:        tmp,
		changeCh:   make(chan struct{}, 1),
		noStream:   noStream,
		readerDone: make(chan struct{}),
	}
	go s.copyLoop(r)
	return s, nil
}

func (s *StreamedStdin) copyLoop(r io.Reader) {
	defer close(s.readerDone)
	buf := make([]byte, 64*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := s.tmp.Write(buf[:n]); werr != nil {
				s.setErr(fmt.Errorf("spill stdin: %w", werr))
				return
			}
			s.mu.Lock()
			s.size += int64(n)
			s.mu.Unlock()
			s.notify()
		}
		if rerr != nil {
			if rerr != io.EOF {
				s.setErr(fmt.Errorf("read stdin: %w", rerr))
			}
			atomic.StoreInt32(&s.finalized, 1)
			s.notify()
			return
		}
	}
}

func (s *StreamedStdin) setErr(err error) {
	s.copyErrMu.Lock()
	s.copyErr = err
	s.copyErrMu.Unlock()
}

func (s *StreamedStdin) notify() {
	select {
	case s.changeCh <- struct{}{}:
	default:
	}
}

// Wait blocks until stdin has reached EOF. Used by --no-streaming-stdin.
func (s *StreamedStdin) Wait() { <-s.readerDone }

func (s *StreamedStdin) ReadAt(p []byte, off int64) (int, error) {
	s.mu.RLock()
	size := s.size
	s.mu.RUnlock()
	if off >= size {
		if s.IsFinalized() {
			return 0, io.EOF
		}
		return 0, ErrNotYetAvailable{}
	}
	n, err := s.tmp.ReadAt(p, off)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (s *StreamedStdin) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *StreamedStdin) OnChange() <-chan struct{} { return s.changeCh }

func (s *StreamedStdin) IsFinalized() bool { return atomic.LoadInt32(&s.finalized) == 1 }

// Err returns any error encountered while copying stdin.
func (s *StreamedStdin) Err() error {
	s.copyErrMu.Lock()
	defer s.copyErrMu.Unlock()
	return s.copyErr
}

func (s *StreamedStdin) Close() error {
	name := s.tmp.Name()
	err := s.tmp.Close()
	os.Remove(name)
	return err
}
