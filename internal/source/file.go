package source

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/csvquery/csvlens/internal/common"
)

// File is the plain-file adapter variant: it mmaps the file
// read-only, so row fetches and index scans never copy through an
// intermediate buffer.
type File struct {
	mu   sync.RWMutex
	f    *os.File
	data []byte
	size int64
}

// OpenFile mmaps path for reading. The mapping is held for the
// lifetime of the adapter; Close unmaps and closes the handle.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &fileOpenError{path: path, err: err}
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &fileOpenError{path: path, err: err}
	}
	data, err := common.MmapFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &File{f: f, data: data, size: stat.Size()}, nil
}

type fileOpenError struct {
	path string
	err  error
}

func (e *fileOpenError) Error() string { return fmt.Sprintf("open %s: %v", e.path, e.err) }
func (e *fileOpenError) Unwrap() error { return e.err }

func (a *File) ReadAt(p []byte, off int64) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if off >= a.size {
		return 0, io.EOF
	}
	n := copy(p, a.data[off:a.size])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (a *File) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

// OnChange never fires for a plain File: the bytes underneath it are
// assumed stable for the adapter's lifetime. AutoReload wraps File to
// add that behavior.
func (a *File) OnChange() <-chan struct{} { return nil }

func (a *File) IsFinalized() bool { return true }

func (a *File) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.data) > 0 {
		common.MunmapFile(a.data)
		a.data = nil
	}
	return a.f.Close()
}
