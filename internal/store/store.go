package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"quill/internal/crypto"
	"quill/internal/note"
)

// On-disk layout, shared bit-for-bit with every process that opens a store:
//
//	<root>/
//	  .salt                 raw salt string, not encrypted
//	  .id-map.enc           encrypted JSON: note id -> filename token
//	  .metadata.enc         encrypted JSON: note id -> attributes
//	  notes/
//	    <token>.enc         encrypted note content, one file per note
//	  editing/              scratch files for external editor sessions
const (
	saltFile     = ".salt"
	idMapFile    = ".id-map.enc"
	metadataFile = ".metadata.enc"
	notesDir     = "notes"
	editingDir   = "editing"
)

// ErrNotInitialized indicates the store directory or its salt does not
// exist yet.
var ErrNotInitialized = errors.New("store not initialized")

// ErrWrongPassword indicates the identifier map failed to decrypt. A wrong
// password and a corrupted store are indistinguishable here; the remediation
// (re-enter the password, or reset the mirror and let the primary process
// rebuild it) is reported under one message.
var ErrWrongPassword = errors.New("incorrect password or corrupted store")

// Store is the encrypted on-disk mirror of a note collection. It is the
// only component that touches the filesystem for note data. A Store is
// stateless between calls; the session key is passed into every operation
// and is never retained.
type Store struct {
	root   string
	logger note.Logger
	clock  note.Clock
}

// New creates a Store rooted at the given directory. The directory need
// not exist yet; Initialize creates it.
func New(root string, logger note.Logger, clock note.Clock) *Store {
	return &Store{root: root, logger: logger, clock: clock}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// NotesDir returns the directory holding per-note record files. The sync
// engine watches this directory for external changes.
func (s *Store) NotesDir() string { return filepath.Join(s.root, notesDir) }

// ScratchDir returns the directory used for external editor scratch files.
func (s *Store) ScratchDir() string { return filepath.Join(s.root, editingDir) }

// Initialize ensures the directory structure exists and returns the store
// salt, generating and persisting it on first use. Idempotent: calling it
// on an existing store returns the existing salt and touches nothing else.
// The salt is never regenerated for an existing store — doing so would make
// every existing record unrecoverable.
func (s *Store) Initialize() (string, error) {
	if err := os.MkdirAll(s.NotesDir(), 0700); err != nil {
		return "", fmt.Errorf("creating store directories: %w", err)
	}

	saltPath := filepath.Join(s.root, saltFile)
	if data, err := os.ReadFile(saltPath); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading salt: %w", err)
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	salt := hex.EncodeToString(raw)

	if err := writeFileAtomic(saltPath, []byte(salt)); err != nil {
		return "", fmt.Errorf("persisting salt: %w", err)
	}

	s.logger.Info("store initialized", "root", s.root)
	return salt, nil
}

// Salt returns the existing store salt, or ErrNotInitialized if the store
// has never been initialized.
func (s *Store) Salt() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, saltFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotInitialized
		}
		return "", fmt.Errorf("reading salt: %w", err)
	}
	return string(data), nil
}

// LoadAll reads and decrypts the whole collection. A note file that is
// missing or individually undecryptable is skipped and logged, never
// fatal: partial availability beats total failure. Failure to decrypt the
// identifier map is fatal and returned as ErrWrongPassword, since the map
// is the first and smallest artifact and a decrypt failure there is a
// strong wrong-key signal.
func (s *Store) LoadAll(key crypto.Key) ([]note.Note, note.Metadata, error) {
	if _, err := s.Salt(); err != nil {
		return nil, note.Metadata{}, err
	}

	idMap, err := s.readIDMap(key)
	if err != nil {
		return nil, note.Metadata{}, err
	}

	md := s.readMetadata(key)

	notes := make([]note.Note, 0, len(idMap))
	for id, token := range idMap {
		path := filepath.Join(s.NotesDir(), token+".enc")
		blob, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("note record unreadable, skipping", "id", id, "error", err)
			continue
		}

		content, err := crypto.Decrypt(blob, key)
		if err != nil {
			s.logger.Warn("note record undecryptable, skipping", "id", id, "error", err)
			continue
		}

		n := note.Note{ID: id, Content: content}
		n.Apply(md.Notes[id])
		notes = append(notes, n)
	}

	return notes, md, nil
}

// WriteNote encrypts and writes one note body. For a new id the identifier
// map gains an entry and is persisted before the body is written: a body
// without a map entry is unreachable garbage, while a map entry whose body
// write then fails is repaired by the next flush. The metadata entry's
// UpdatedAt is bumped (and the entry created for a new id).
func (s *Store) WriteNote(id, content string, key crypto.Key) error {
	if _, err := s.Salt(); err != nil {
		return err
	}

	idMap, err := s.readIDMap(key)
	if err != nil {
		return err
	}

	token, ok := idMap[id]
	if !ok {
		token = crypto.HashID(id)
		idMap[id] = token
		if err := s.writeIDMap(idMap, key); err != nil {
			return err
		}
		s.logger.Debug("identifier allocated", "id", id, "token", token)
	}

	blob, err := crypto.Encrypt(content, key)
	if err != nil {
		return fmt.Errorf("encrypting note %s: %w", id, err)
	}
	if err := writeFileAtomic(filepath.Join(s.NotesDir(), token+".enc"), []byte(blob)); err != nil {
		return fmt.Errorf("writing note %s: %w", id, err)
	}

	md := s.readMetadata(key)
	now := s.clock.Now()
	attrs, ok := md.Notes[id]
	if !ok {
		attrs.CreatedAt = now
	}
	attrs.UpdatedAt = now
	md.Notes[id] = attrs

	return s.WriteMetadata(md, key)
}

// WriteMetadata replaces the metadata blob wholesale. Every mutation to any
// note's attributes rewrites the entire blob.
func (s *Store) WriteMetadata(md note.Metadata, key crypto.Key) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	blob, err := crypto.Encrypt(string(data), key)
	if err != nil {
		return fmt.Errorf("encrypting metadata: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.root, metadataFile), []byte(blob)); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// DeleteNote removes a note's record file, its identifier-map entry, and
// its metadata entry. Deleting an id the store does not know is a no-op.
func (s *Store) DeleteNote(id string, key crypto.Key) error {
	if _, err := s.Salt(); err != nil {
		return err
	}

	idMap, err := s.readIDMap(key)
	if err != nil {
		return err
	}

	token, ok := idMap[id]
	if !ok {
		return nil
	}

	if err := os.Remove(filepath.Join(s.NotesDir(), token+".enc")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing note %s: %w", id, err)
	}

	delete(idMap, id)
	if err := s.writeIDMap(idMap, key); err != nil {
		return err
	}

	md := s.readMetadata(key)
	if _, ok := md.Notes[id]; ok {
		delete(md.Notes, id)
		if err := s.WriteMetadata(md, key); err != nil {
			return err
		}
	}

	s.logger.Info("note deleted", "id", id)
	return nil
}

// readIDMap loads the identifier map. A missing file is an empty map (the
// map is created lazily on first write); a decrypt failure is
// ErrWrongPassword.
func (s *Store) readIDMap(key crypto.Key) (map[string]string, error) {
	blob, err := os.ReadFile(filepath.Join(s.root, idMapFile))
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("reading identifier map: %w", err)
	}

	plaintext, err := crypto.Decrypt(blob, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}

	idMap := make(map[string]string)
	if err := json.Unmarshal([]byte(plaintext), &idMap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	return idMap, nil
}

func (s *Store) writeIDMap(idMap map[string]string, key crypto.Key) error {
	data, err := json.Marshal(idMap)
	if err != nil {
		return fmt.Errorf("encoding identifier map: %w", err)
	}
	blob, err := crypto.Encrypt(string(data), key)
	if err != nil {
		return fmt.Errorf("encrypting identifier map: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.root, idMapFile), []byte(blob)); err != nil {
		return fmt.Errorf("writing identifier map: %w", err)
	}
	return nil
}

// readMetadata loads the metadata blob, tolerating absence and corruption:
// attributes are reconstructible (timestamps degrade, content does not), so
// a bad blob logs a warning and yields empty metadata rather than failing
// the operation.
func (s *Store) readMetadata(key crypto.Key) note.Metadata {
	md := note.NewMetadata()

	blob, err := os.ReadFile(filepath.Join(s.root, metadataFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("metadata unreadable", "error", err)
		}
		return md
	}

	plaintext, err := crypto.Decrypt(blob, key)
	if err != nil {
		s.logger.Warn("metadata undecryptable", "error", err)
		return md
	}

	if err := json.Unmarshal([]byte(plaintext), &md); err != nil {
		s.logger.Warn("metadata malformed", "error", err)
		return note.NewMetadata()
	}
	if md.Notes == nil {
		md.Notes = make(map[string]note.Attributes)
	}
	return md
}
