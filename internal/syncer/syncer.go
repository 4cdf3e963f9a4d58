// Package syncer keeps an in-memory note collection and the encrypted
// on-disk store eventually consistent in both directions. The collection
// held here is the source of truth; the store is a disposable mirror that
// can always be rebuilt from it.
package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quill/internal/crypto"
	"quill/internal/note"
	"quill/internal/store"
	"quill/internal/watch"
)

// State is the engine's position in the sync cycle.
type State int

const (
	// Idle: memory and mirror agree as far as the engine knows.
	Idle State = iota
	// PendingWrite: local mutations are waiting out the debounce window.
	PendingWrite
	// PendingReload: an external change is waiting out the debounce window.
	PendingReload
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingWrite:
		return "pending-write"
	case PendingReload:
		return "pending-reload"
	default:
		return "unknown"
	}
}

// DefaultDebounce is the quiet period after a mutation before a flush.
// Rapid edits coalesce into one write cycle.
const DefaultDebounce = time.Second

// Config carries the engine's dependencies.
type Config struct {
	Store   *store.Store
	Key     crypto.Key
	Watcher watch.Watcher
	Logger  note.Logger
	Clock   note.Clock
	IDs     note.IDGenerator

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// EditorFocused reports whether the local editor currently has
	// unsaved keystroke focus. While it returns true, external-change
	// reloads are deferred so in-progress typing is not clobbered. Nil
	// means never focused. This is a soft guard, not a lock.
	EditorFocused func() bool
}

// snap records what the mirror last agreed to hold for one note.
type snap struct {
	content   string
	updatedAt time.Time
}

// Engine reconciles the collection against the store on a debounce timer.
// All mutations funnel through the engine; no two flush cycles overlap.
type Engine struct {
	st      *store.Store
	key     crypto.Key
	watcher watch.Watcher
	logger  note.Logger
	clock   note.Clock
	ids     note.IDGenerator
	quiet   time.Duration
	focused func() bool

	mu       sync.Mutex
	notes    map[string]note.Note
	snapshot map[string]snap
	state    State
	timer    *time.Timer
}

// New creates an Engine. Call Load to populate the collection from the
// store, then Start to begin watching for external changes.
func New(cfg Config) *Engine {
	quiet := cfg.Debounce
	if quiet <= 0 {
		quiet = DefaultDebounce
	}
	focused := cfg.EditorFocused
	if focused == nil {
		focused = func() bool { return false }
	}
	return &Engine{
		st:       cfg.Store,
		key:      cfg.Key,
		watcher:  cfg.Watcher,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		ids:      cfg.IDs,
		quiet:    quiet,
		focused:  focused,
		notes:    make(map[string]note.Note),
		snapshot: make(map[string]snap),
	}
}

// Load replaces the collection with the store's contents. Called once at
// startup, before Start.
func (e *Engine) Load() error {
	notes, _, err := e.st.LoadAll(e.key)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.notes = make(map[string]note.Note, len(notes))
	e.snapshot = make(map[string]snap, len(notes))
	for _, n := range notes {
		e.notes[n.ID] = n
		e.snapshot[n.ID] = snap{content: n.Content, updatedAt: n.UpdatedAt}
	}
	e.logger.Info("collection loaded", "count", len(notes))
	return nil
}

// Start consumes watcher events until ctx is cancelled or the watcher
// closes. It returns after draining; callers usually run it in a
// goroutine.
func (e *Engine) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-e.watcher.Events():
			if !ok {
				return
			}
			e.onExternalChange(ev)
		case err, ok := <-e.watcher.Errors():
			if !ok {
				return
			}
			e.logger.Warn("watch error", "error", err)
		}
	}
}

// State returns the engine's current cycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Notes returns a copy of the collection sorted by recency.
func (e *Engine) Notes() []note.Note {
	e.mu.Lock()
	out := make([]note.Note, 0, len(e.notes))
	for _, n := range e.notes {
		out = append(out, n)
	}
	e.mu.Unlock()
	note.SortByRecency(out)
	return out
}

// Get returns one note by id.
func (e *Engine) Get(id string) (note.Note, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.notes[id]
	return n, ok
}

// Create allocates a fresh note with the given content and schedules a
// flush. The returned note carries its new id.
func (e *Engine) Create(content string) note.Note {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	n := note.Note{
		ID:        e.ids.New(),
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.notes[n.ID] = n
	e.scheduleFlushLocked()
	return n
}

// Update replaces a note's content, bumps UpdatedAt, and schedules a
// flush. Unknown ids are rejected: ids are immutable and allocated only
// through Create.
func (e *Engine) Update(id, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.notes[id]
	if !ok {
		return fmt.Errorf("unknown note: %s", id)
	}
	n.Content = content
	n.UpdatedAt = e.clock.Now()
	e.notes[id] = n
	e.scheduleFlushLocked()
	return nil
}

// Touch bumps a note's recency without changing content.
func (e *Engine) Touch(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.notes[id]
	if !ok {
		return fmt.Errorf("unknown note: %s", id)
	}
	n.UpdatedAt = e.clock.Now()
	e.notes[id] = n
	e.scheduleFlushLocked()
	return nil
}

// SetAttributes applies an attribute mutation (pin, hide, workspace) to a
// note and schedules a flush. Timestamps are left to the mutation.
func (e *Engine) SetAttributes(id string, mutate func(*note.Note)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.notes[id]
	if !ok {
		return fmt.Errorf("unknown note: %s", id)
	}
	mutate(&n)
	n.ID = id // ids are immutable
	e.notes[id] = n
	e.scheduleFlushLocked()
	return nil
}

// Delete removes a note from the collection and schedules a flush, which
// removes its record and map entry from the store.
func (e *Engine) Delete(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.notes, id)
	e.scheduleFlushLocked()
}

// Flush reconciles memory to the store immediately: deleted notes are
// removed, notes whose content or UpdatedAt moved since the last sync are
// rewritten, and the metadata blob is replaced wholesale. A failed write
// leaves the dirty state in place and the next debounce trigger retries;
// the collection in memory stays authoritative throughout.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

// Stop cancels any pending timer and performs a final flush.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	return e.flushLocked()
}

// scheduleFlushLocked moves the cycle to PendingWrite and (re)arms the
// debounce timer. Callers hold e.mu.
func (e *Engine) scheduleFlushLocked() {
	e.state = PendingWrite
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.quiet, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.flushLocked(); err != nil {
			e.logger.Error("flush failed, will retry", "error", err)
			e.scheduleFlushLocked()
		}
	})
}

// flushLocked performs one write cycle. Callers hold e.mu, so cycles never
// overlap and mutations made during a flush wait for the next one.
func (e *Engine) flushLocked() error {
	var firstErr error

	// Notes gone from memory but still mirrored.
	for id := range e.snapshot {
		if _, ok := e.notes[id]; ok {
			continue
		}
		if err := e.st.DeleteNote(id, e.key); err != nil {
			e.logger.Warn("delete not mirrored", "id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(e.snapshot, id)
	}

	// Dirty bodies.
	wrote := 0
	for id, n := range e.notes {
		prev, ok := e.snapshot[id]
		if ok && prev.content == n.Content && prev.updatedAt.Equal(n.UpdatedAt) {
			continue
		}
		if err := e.st.WriteNote(id, n.Content, e.key); err != nil {
			e.logger.Warn("note not mirrored", "id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.snapshot[id] = snap{content: n.Content, updatedAt: n.UpdatedAt}
		wrote++
	}

	// Full metadata blob, carrying the collection's own timestamps.
	md := note.NewMetadata()
	for id, n := range e.notes {
		md.Notes[id] = n.Attributes()
	}
	if err := e.st.WriteMetadata(md, e.key); err != nil {
		e.logger.Warn("metadata not mirrored", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		e.state = Idle
		if wrote > 0 {
			e.logger.Debug("flush complete", "written", wrote)
		}
	}
	return firstErr
}

// onExternalChange debounces a reload in response to a record change made
// by another process.
func (e *Engine) onExternalChange(ev watch.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == PendingWrite {
		// Local edits are ahead of the mirror; flushing first, then the
		// usual last-write-wins merge on the next external event.
		return
	}

	e.state = PendingReload
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.quiet, e.reload)
	e.logger.Debug("external change", "path", ev.Path, "op", ev.Op)
}

// reload re-runs LoadAll and replaces the collection. Concurrent edits to
// the same note resolve by last write wins on UpdatedAt; there is no
// merge. Skipped while the local editor holds keystroke focus.
func (e *Engine) reload() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != PendingReload {
		return
	}
	if e.focused() {
		// Re-arm rather than clobber in-progress keystrokes.
		e.timer = time.AfterFunc(e.quiet, e.reload)
		return
	}

	loaded, _, err := e.st.LoadAll(e.key)
	if err != nil {
		e.logger.Error("reload failed", "error", err)
		e.state = Idle
		return
	}

	fresh := make(map[string]note.Note, len(loaded))
	snapshot := make(map[string]snap, len(loaded))
	localWins := 0
	for _, n := range loaded {
		// The snapshot records what the mirror holds. When the local copy
		// wins on UpdatedAt it stays ahead of the mirror, so the next
		// flush writes it back out.
		snapshot[n.ID] = snap{content: n.Content, updatedAt: n.UpdatedAt}
		if local, ok := e.notes[n.ID]; ok && local.UpdatedAt.After(n.UpdatedAt) {
			n = local
			localWins++
		}
		fresh[n.ID] = n
	}

	e.notes = fresh
	e.snapshot = snapshot
	e.state = Idle
	if localWins > 0 {
		e.scheduleFlushLocked()
	}
	e.logger.Info("collection reloaded", "count", len(fresh))
}
