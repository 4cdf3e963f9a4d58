// Package client implements the terminal access side of the store: open
// with a password, list and filter notes, and edit them through an
// external editor. Unlike the sync engine's continuous mirroring, the
// client reads once and writes only on explicit edits.
package client

import (
	"errors"
	"fmt"

	"quill/internal/crypto"
	"quill/internal/editor"
	"quill/internal/note"
	"quill/internal/search"
	"quill/internal/store"
)

// ErrNoStore indicates no encrypted store exists yet; the primary process
// creates it on first use.
var ErrNoStore = errors.New("no encrypted notes found")

// Config carries the session's dependencies.
type Config struct {
	Store  *store.Store
	Editor *editor.Editor
	Logger note.Logger
	Clock  note.Clock
	IDs    note.IDGenerator
}

// Session is one unlocked terminal session against a store. The derived
// key lives only in this struct, in memory, for the session's lifetime.
type Session struct {
	st     *store.Store
	editor *editor.Editor
	logger note.Logger
	clock  note.Clock
	ids    note.IDGenerator

	key   crypto.Key
	notes []note.Note
}

// NewSession creates a locked session. Call Open with the password before
// anything else.
func NewSession(cfg Config) *Session {
	return &Session{
		st:     cfg.Store,
		editor: cfg.Editor,
		logger: cfg.Logger,
		clock:  cfg.Clock,
		ids:    cfg.IDs,
	}
}

// Open derives the session key from the password and the store salt and
// loads the collection. A decrypt failure on the identifier map comes
// back as store.ErrWrongPassword — report it as an incorrect password,
// not a generic error.
func (s *Session) Open(password string) error {
	salt, err := s.st.Salt()
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			return ErrNoStore
		}
		return err
	}

	key := crypto.DeriveKey(password, salt)
	notes, _, err := s.st.LoadAll(key)
	if err != nil {
		return err
	}

	s.key = key
	s.notes = notes
	note.SortByRecency(s.notes)
	s.logger.Debug("session opened", "notes", len(s.notes))
	return nil
}

// Notes returns the collection sorted by UpdatedAt descending.
func (s *Session) Notes() []note.Note {
	out := make([]note.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Filter returns the notes visible for a query within a workspace scope,
// under the hidden-note match rule.
func (s *Session) Filter(query, workspace string) []note.Note {
	return search.Filter(search.InWorkspace(s.Notes(), workspace), query)
}

// Edit opens the note in the external editor and, if the content changed,
// writes it back through the store and bumps the note's recency. Returns
// whether a save happened.
func (s *Session) Edit(id string) (bool, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return false, fmt.Errorf("unknown note: %s", id)
	}
	n := s.notes[idx]

	content, changed, err := s.editor.Edit(n.Title(), n.Content)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	if err := s.st.WriteNote(id, content, s.key); err != nil {
		return false, fmt.Errorf("saving note: %w", err)
	}

	s.notes[idx].Content = content
	s.notes[idx].UpdatedAt = s.clock.Now()
	note.SortByRecency(s.notes)
	s.logger.Info("note saved", "id", id)
	return true, nil
}

// Create allocates a fresh id, opens an empty scratch file in the editor,
// and saves the result as a new note. The id exists before the editor
// launches, so the flow is identical to Edit from the store's point of
// view.
func (s *Session) Create() (note.Note, error) {
	id := s.ids.New()

	content, _, err := s.editor.Edit("untitled", "")
	if err != nil {
		return note.Note{}, err
	}

	if err := s.st.WriteNote(id, content, s.key); err != nil {
		return note.Note{}, fmt.Errorf("saving new note: %w", err)
	}

	now := s.clock.Now()
	n := note.Note{ID: id, Content: content, CreatedAt: now, UpdatedAt: now}
	s.notes = append(s.notes, n)
	note.SortByRecency(s.notes)
	s.logger.Info("note created", "id", id)
	return n, nil
}

// Delete removes a note from the store and the session.
func (s *Session) Delete(id string) error {
	if err := s.st.DeleteNote(id, s.key); err != nil {
		return err
	}
	if idx := s.indexOf(id); idx >= 0 {
		s.notes = append(s.notes[:idx], s.notes[idx+1:]...)
	}
	return nil
}

func (s *Session) indexOf(id string) int {
	for i, n := range s.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
