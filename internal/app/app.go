// Package app wires the terminal client and the sync engine from
// configuration: store, logger, editor, watcher.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"quill/internal/client"
	"quill/internal/config"
	"quill/internal/crypto"
	"quill/internal/editor"
	"quill/internal/note"
	"quill/internal/store"
	"quill/internal/syncer"
	"quill/internal/watch"
)

// App is the application layer between the CLI and the session or sync
// engine. The caller must call Close when done.
type App struct {
	cfg     *config.Config
	store   *store.Store
	logger  note.Logger
	logFile *os.File
}

// New creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Browse", "Sync").
func New(cfg *config.Config, operation string) (*App, error) {
	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	logger := &slogAdapter{l: slogger}
	st := store.New(cfg.StoreDir, logger, note.RealClock{})

	return &App{
		cfg:     cfg,
		store:   st,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// Store returns the wired encrypted store.
func (a *App) Store() *store.Store { return a.store }

// Logger returns the structured logger.
func (a *App) Logger() note.Logger { return a.logger }

// Close releases the log file.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// NewSession builds a locked terminal session over the store.
func (a *App) NewSession() (*client.Session, error) {
	ed, err := editor.New(a.cfg.Editor, a.store.ScratchDir(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("configuring editor: %w", err)
	}

	return client.NewSession(client.Config{
		Store:  a.store,
		Editor: ed,
		Logger: a.logger,
		Clock:  note.RealClock{},
		IDs:    note.UUIDGenerator{},
	}), nil
}

// RunSync initializes the store if needed, unlocks it with the password,
// and mirrors it until ctx is cancelled. This is the primary-process
// role: the in-memory collection is authoritative and external edits are
// folded in as they land.
func (a *App) RunSync(ctx context.Context, password string) error {
	salt, err := a.store.Initialize()
	if err != nil {
		return err
	}
	key := crypto.DeriveKey(password, salt)

	watcher, err := watch.NewFSWatcher(a.store.NotesDir(), a.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	engine := syncer.New(syncer.Config{
		Store:    a.store,
		Key:      key,
		Watcher:  watcher,
		Logger:   a.logger,
		Clock:    note.RealClock{},
		IDs:      note.UUIDGenerator{},
		Debounce: a.cfg.Debounce(),
	})
	if err := engine.Load(); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		engine.Start(ctx)
		close(done)
	}()

	<-ctx.Done()
	<-done
	return engine.Stop()
}
