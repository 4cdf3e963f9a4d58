package syncer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"quill/internal/crypto"
	"quill/internal/note"
	"quill/internal/store"
	"quill/internal/testutil"
	"quill/internal/watch"
)

const testDebounce = 20 * time.Millisecond

type fixture struct {
	engine  *Engine
	store   *store.Store
	key     crypto.Key
	clock   *testutil.StubClock
	watcher *testutil.ManualWatcher
	focused atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := testutil.FixedClock()
	st := store.New(t.TempDir(), note.NewNopLogger(), clock)
	salt, err := st.Initialize()
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	key := crypto.DeriveKey("correct-horse", salt)

	f := &fixture{
		store:   st,
		key:     key,
		clock:   clock,
		watcher: testutil.NewManualWatcher(),
	}
	f.engine = New(Config{
		Store:         st,
		Key:           key,
		Watcher:       f.watcher,
		Logger:        note.NewNopLogger(),
		Clock:         clock,
		IDs:           testutil.NewStubIDGenerator(),
		Debounce:      testDebounce,
		EditorFocused: func() bool { return f.focused.Load() },
	})
	if err := f.engine.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return f
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDebouncedFlushCoalesces(t *testing.T) {
	f := newFixture(t)

	n := f.engine.Create("draft 1")
	if f.engine.State() != PendingWrite {
		t.Errorf("state after mutation = %v, want PendingWrite", f.engine.State())
	}

	// Rapid edits within the quiet period coalesce into one cycle.
	f.clock.Advance(time.Second)
	if err := f.engine.Update(n.ID, "draft 2"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	f.clock.Advance(time.Second)
	if err := f.engine.Update(n.ID, "draft 3"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	waitFor(t, "flush", func() bool { return f.engine.State() == Idle })

	notes, _, err := f.store.LoadAll(f.key)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "draft 3" {
		t.Errorf("mirrored notes = %+v, want one note with final draft", notes)
	}
}

func TestFlushSkipsCleanNotes(t *testing.T) {
	f := newFixture(t)

	clean := f.engine.Create("untouched")
	if err := f.engine.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	recordPath := filepath.Join(f.store.NotesDir(), crypto.HashID(clean.ID)+".enc")
	before, err := os.ReadFile(recordPath)
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}

	// Encryption salts are random, so any rewrite changes the blob bytes.
	f.clock.Advance(time.Minute)
	other := f.engine.Create("other")
	if err := f.engine.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	after, err := os.ReadFile(recordPath)
	if err != nil {
		t.Fatalf("reading record: %v", err)
	}
	if string(before) != string(after) {
		t.Error("clean note was rewritten during flush")
	}
	if _, err := os.Stat(filepath.Join(f.store.NotesDir(), crypto.HashID(other.ID)+".enc")); err != nil {
		t.Errorf("dirty note not written: %v", err)
	}
}

func TestDeletePropagates(t *testing.T) {
	f := newFixture(t)

	n := f.engine.Create("doomed")
	if err := f.engine.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	f.engine.Delete(n.ID)
	if err := f.engine.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	notes, md, err := f.store.LoadAll(f.key)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("mirrored notes after delete = %+v", notes)
	}
	if _, ok := md.Notes[n.ID]; ok {
		t.Error("metadata entry survived deletion")
	}
}

func TestExternalChangeReloads(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.engine.Start(ctx)

	// Another process writes a note directly through the store contract.
	if err := f.store.WriteNote("ext-1", "from the terminal", f.key); err != nil {
		t.Fatalf("WriteNote() error = %v", err)
	}

	f.watcher.Emit(watch.Event{
		Path: filepath.Join(f.store.NotesDir(), crypto.HashID("ext-1")+".enc"),
		Op:   watch.Added,
	})

	waitFor(t, "reload", func() bool {
		_, ok := f.engine.Get("ext-1")
		return ok
	})

	n, _ := f.engine.Get("ext-1")
	if n.Content != "from the terminal" {
		t.Errorf("reloaded content = %q", n.Content)
	}
}

func TestFocusGuardDefersReload(t *testing.T) {
	f := newFixture(t)
	f.focused.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.engine.Start(ctx)

	if err := f.store.WriteNote("ext-1", "external", f.key); err != nil {
		t.Fatalf("WriteNote() error = %v", err)
	}
	f.watcher.Emit(watch.Event{Path: "ext-1.enc", Op: watch.Added})

	time.Sleep(5 * testDebounce)
	if _, ok := f.engine.Get("ext-1"); ok {
		t.Fatal("reload ran while editor was focused")
	}

	f.focused.Store(false)
	waitFor(t, "deferred reload", func() bool {
		_, ok := f.engine.Get("ext-1")
		return ok
	})
}

func TestLastWriteWins(t *testing.T) {
	f := newFixture(t)

	n := f.engine.Create("local v1")
	if err := f.engine.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	t.Run("newer local copy survives reload", func(t *testing.T) {
		// External edit lands, then a newer local edit. The local copy
		// must win the merge and be written back on the next flush.
		if err := f.store.WriteNote(n.ID, "external", f.key); err != nil {
			t.Fatalf("WriteNote() error = %v", err)
		}
		f.clock.Advance(time.Hour)
		if err := f.engine.Update(n.ID, "local v2"); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		waitFor(t, "flush", func() bool { return f.engine.State() == Idle })

		notes, _, err := f.store.LoadAll(f.key)
		if err != nil {
			t.Fatalf("LoadAll() error = %v", err)
		}
		if len(notes) != 1 || notes[0].Content != "local v2" {
			t.Errorf("mirror = %+v, want local v2", notes)
		}
	})

	t.Run("newer external copy replaces local", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go f.engine.Start(ctx)

		f.clock.Advance(time.Hour)
		if err := f.store.WriteNote(n.ID, "external v3", f.key); err != nil {
			t.Fatalf("WriteNote() error = %v", err)
		}
		md := note.NewMetadata()
		md.Notes[n.ID] = note.Attributes{CreatedAt: n.CreatedAt, UpdatedAt: f.clock.Now()}
		if err := f.store.WriteMetadata(md, f.key); err != nil {
			t.Fatalf("WriteMetadata() error = %v", err)
		}

		f.watcher.Emit(watch.Event{Path: crypto.HashID(n.ID) + ".enc", Op: watch.Modified})

		waitFor(t, "reload", func() bool {
			got, _ := f.engine.Get(n.ID)
			return got.Content == "external v3"
		})
	})
}

func TestFlushFailureRetains(t *testing.T) {
	f := newFixture(t)

	n := f.engine.Create("v1")
	if err := f.engine.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	// Break the store out from under the engine, mutate, and watch the
	// cycle fail without losing the in-memory edit.
	saltPath := filepath.Join(f.store.Root(), ".salt")
	salt, err := os.ReadFile(saltPath)
	if err != nil {
		t.Fatalf("reading salt: %v", err)
	}
	if err := os.Remove(saltPath); err != nil {
		t.Fatalf("removing salt: %v", err)
	}

	f.clock.Advance(time.Minute)
	if err := f.engine.Update(n.ID, "v2"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := f.engine.Flush(); err == nil {
		t.Fatal("Flush() succeeded against a broken store")
	}

	got, _ := f.engine.Get(n.ID)
	if got.Content != "v2" {
		t.Errorf("in-memory content = %q, want v2 preserved", got.Content)
	}

	// Repair the store; the retry succeeds.
	if err := os.WriteFile(saltPath, salt, 0600); err != nil {
		t.Fatalf("restoring salt: %v", err)
	}
	if err := f.engine.Flush(); err != nil {
		t.Fatalf("Flush() after repair error = %v", err)
	}

	notes, _, err := f.store.LoadAll(f.key)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "v2" {
		t.Errorf("mirror = %+v, want v2", notes)
	}
}

func TestStopFlushesPending(t *testing.T) {
	f := newFixture(t)

	f.engine.Create("pending")
	if err := f.engine.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	notes, _, err := f.store.LoadAll(f.key)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "pending" {
		t.Errorf("mirror = %+v, want pending note flushed", notes)
	}
}
