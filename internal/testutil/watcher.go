package testutil

import "quill/internal/watch"

// ManualWatcher is a watch.Watcher driven by the test instead of the
// filesystem.
type ManualWatcher struct {
	events chan watch.Event
	errs   chan error
}

var _ watch.Watcher = (*ManualWatcher)(nil)

func NewManualWatcher() *ManualWatcher {
	return &ManualWatcher{
		events: make(chan watch.Event, 16),
		errs:   make(chan error, 1),
	}
}

// Emit delivers a change event to the consumer.
func (w *ManualWatcher) Emit(ev watch.Event) {
	w.events <- ev
}

func (w *ManualWatcher) Events() <-chan watch.Event { return w.events }
func (w *ManualWatcher) Errors() <-chan error       { return w.errs }

func (w *ManualWatcher) Close() error {
	close(w.events)
	close(w.errs)
	return nil
}
