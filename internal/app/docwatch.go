package app

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/borrowscope/borrowscope/internal/lsp"
)

const saveCoalesce = 100 * time.Millisecond

// DocumentWatcher refreshes overlays when the displayed file is
// written by an external editor.
type DocumentWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	onSave  func(path, content string, pos lsp.Position)
	cursor  func() lsp.Position
	done    chan struct{}
	pending *time.Timer
}

// WatchDocument watches path and calls onSave with re-read content
// after each write settles. cursor supplies the position refreshed
// after the save.
func WatchDocument(path string, cursor func() lsp.Position, onSave func(path, content string, pos lsp.Position)) (*DocumentWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	w := &DocumentWatcher{
		path:    path,
		watcher: watcher,
		onSave:  onSave,
		cursor:  cursor,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *DocumentWatcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.watcher.Close()
}

func (w *DocumentWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.coalesce()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("document watcher", "error", err)
		}
	}
}

// coalesce folds the burst of events an editor emits per save into one
// refresh.
func (w *DocumentWatcher) coalesce() {
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(saveCoalesce, func() {
		content, err := ReadDocument(w.path)
		if err != nil {
			slog.Warn("re-reading saved document", "path", w.path, "error", err)
			return
		}
		w.onSave(w.path, content, w.cursor())
	})
}
