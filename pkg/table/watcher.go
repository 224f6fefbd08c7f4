package table

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls OnChange after the watched table file is written, replaced or removed.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func()
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending bool
	started bool
	done    chan struct{}
}

// NewWatcher watches path. The parent directory is watched so that editors
// which save by renaming a temp file over the original are still seen.
func NewWatcher(path string, debounce time.Duration, onChange func()) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", path)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating file watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watching %s", filepath.Dir(abs))
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start processes events until ctx is done or Close is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.loop(ctx)
	klog.V(1).Infof("watching table %s", w.path)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			klog.Warningf("table watcher: %v", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	fire := w.pending
	w.pending = false
	w.mu.Unlock()
	if fire && w.onChange != nil {
		klog.V(1).Infof("table %s changed", w.path)
		w.onChange()
	}
}
