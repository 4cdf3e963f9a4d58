package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"quill/internal/note"
)

func TestMapEvent(t *testing.T) {
	tests := []struct {
		name   string
		ev     fsnotify.Event
		wantOp Op
		wantOK bool
	}{
		{"record created", fsnotify.Event{Name: "/s/notes/ab12.enc", Op: fsnotify.Create}, Added, true},
		{"record written", fsnotify.Event{Name: "/s/notes/ab12.enc", Op: fsnotify.Write}, Modified, true},
		{"record removed", fsnotify.Event{Name: "/s/notes/ab12.enc", Op: fsnotify.Remove}, Removed, true},
		{"record renamed away", fsnotify.Event{Name: "/s/notes/ab12.enc", Op: fsnotify.Rename}, Removed, true},
		{"chmod ignored", fsnotify.Event{Name: "/s/notes/ab12.enc", Op: fsnotify.Chmod}, 0, false},
		{"temp file ignored", fsnotify.Event{Name: "/s/notes/.tmp-123.enc", Op: fsnotify.Create}, 0, false},
		{"non-record ignored", fsnotify.Event{Name: "/s/notes/readme.txt", Op: fsnotify.Write}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := mapEvent(tt.ev)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Op != tt.wantOp {
				t.Errorf("op = %v, want %v", got.Op, tt.wantOp)
			}
		})
	}
}

func TestFSWatcherDeliversEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFSWatcher(dir, note.NewNopLogger())
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "ab12cd34ef56.enc")
	if err := os.WriteFile(path, []byte("blob"), 0600); err != nil {
		t.Fatalf("writing record: %v", err)
	}

	select {
	case ev := <-w.Events():
		if ev.Path != path {
			t.Errorf("event path = %s, want %s", ev.Path, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered within 2s")
	}
}

func TestFSWatcherCloseClosesChannels(t *testing.T) {
	w, err := NewFSWatcher(t.TempDir(), note.NewNopLogger())
	if err != nil {
		t.Fatalf("NewFSWatcher() error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Error("Events() delivered after Close")
		}
	case <-time.After(time.Second):
		t.Error("Events() not closed after Close")
	}
}
