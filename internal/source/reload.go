package source

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// AutoReload wraps File with an fsnotify watch on its path. On a
// write/rename/remove+recreate event it re-opens and re-mmaps the
// file and signals OnChange; the Coordinator is responsible for
// bumping the source epoch and discarding derived state in response.
type AutoReload struct {
	path string

	mu      sync.RWMutex
	current *File

	watcher  *fsnotify.Watcher
	changeCh chan struct{}
	closeCh  chan struct{}
}

// WatchFile opens path and starts watching it for rewrites.
func WatchFile(path string) (*AutoReload, error) {
	f, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		f.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	a := &AutoReload{
		path:     path,
		current:  f,
		watcher:  w,
		changeCh: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
	go a.watchLoop()
	return a, nil
}

func (a *AutoReload) watchLoop() {
	var debounce *time.Timer
	for {
		select {
		case ev, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(50*time.Millisecond, a.reload)
		case _, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
		case <-a.closeCh:
			return
		}
	}
}

func (a *AutoReload) reload() {
	newFile, err := OpenFile(a.path)
	if err != nil {
		// Transient (e.g. editor briefly unlinked the file); keep the
		// old mapping and try again on the next event.
		return
	}
	a.mu.Lock()
	old := a.current
	a.current = newFile
	a.mu.Unlock()
	old.Close()

	// A rename can drop the watch on some platforms (Linux inotify);
	// re-arm it against the new inode.
	a.watcher.Add(a.path)

	select {
	case a.changeCh <- struct{}{}:
	default:
	}
}

func (a *AutoReload) file() *File {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

func (a *AutoReload) ReadAt(p []byte, off int64) (int, error) { return a.file().ReadAt(p, off) }
func (a *AutoReload) Size() int64                             { return a.file().Size() }
func (a *AutoReload) OnChange() <-chan struct{}                { return a.changeCh }
func (a *AutoReload) IsFinalized() bool                        { return true }

func (a *AutoReload) Close() error {
	close(a.closeCh)
	a.watcher.Close()
	return a.file().Close()
}

var _ Adapter = (*AutoReload)(nil)
var _ Adapter = (*File)(nil)
var _ Adapter = (*StreamedStdin)(nil)
