package watch

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"quill/internal/note"
)

// FSWatcher watches one directory for record-file changes using OS-native
// file notification. Only "*.enc" entries are reported; temp files from
// atomic writes are ignored.
type FSWatcher struct {
	inner  *fsnotify.Watcher
	events chan Event
	errs   chan error
	done   chan struct{}
	logger note.Logger
}

var _ Watcher = (*FSWatcher)(nil)

// NewFSWatcher starts watching dir. The directory must exist.
func NewFSWatcher(dir string, logger note.Logger) (*FSWatcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := inner.Add(dir); err != nil {
		inner.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	w := &FSWatcher{
		inner:  inner,
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.run()
	return w, nil
}

func (w *FSWatcher) Events() <-chan Event { return w.events }
func (w *FSWatcher) Errors() <-chan error { return w.errs }

// Close stops the watcher. Safe to call once.
func (w *FSWatcher) Close() error {
	err := w.inner.Close()
	<-w.done
	return err
}

func (w *FSWatcher) run() {
	defer close(w.done)
	defer close(w.events)
	defer close(w.errs)

	for {
		select {
		case ev, ok := <-w.inner.Events:
			if !ok {
				return
			}
			if mapped, ok := mapEvent(ev); ok {
				w.logger.Debug("record change", "path", mapped.Path, "op", mapped.Op)
				select {
				case w.events <- mapped:
				default:
					// Consumer is behind; drop. Delivery is best-effort and
					// the consumer reloads wholesale anyway.
				}
			}

		case err, ok := <-w.inner.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// mapEvent filters and translates an fsnotify event. Non-record files and
// atomic-write temp files return ok=false.
func mapEvent(ev fsnotify.Event) (Event, bool) {
	base := filepath.Base(ev.Name)
	if !strings.HasSuffix(base, ".enc") || strings.HasPrefix(base, ".tmp-") {
		return Event{}, false
	}

	switch {
	case ev.Has(fsnotify.Create):
		return Event{Path: ev.Name, Op: Added}, true
	case ev.Has(fsnotify.Write):
		return Event{Path: ev.Name, Op: Modified}, true
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return Event{Path: ev.Name, Op: Removed}, true
	default:
		return Event{}, false
	}
}
