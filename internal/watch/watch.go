package watch

// Op classifies what happened to a record file.
type Op int

const (
	Added Op = iota
	Modified
	Removed
)

func (o Op) String() string {
	switch o {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a best-effort change notification for one file. Rapid bursts
// may coalesce and events may be missed; consumers reconcile by reloading,
// not by replaying.
type Event struct {
	Path string
	Op   Op
}

// Watcher delivers change events for the note record directory. The sync
// engine consumes this interface; tests drive it with a manual
// implementation.
type Watcher interface {
	// Events returns the channel change notifications arrive on. The
	// channel is closed when the watcher shuts down.
	Events() <-chan Event

	// Errors returns the channel watch failures arrive on. Errors are
	// advisory; the watcher keeps running after reporting one.
	Errors() <-chan error

	// Close stops the watcher and closes both channels.
	Close() error
}
