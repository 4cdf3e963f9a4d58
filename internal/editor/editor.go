// Package editor runs an external line editor over a scratch file. The
// scratch file lives inside the store root (never a world-readable temp
// dir), is owner-only, and is removed on every exit path: normal return,
// editor failure, or read failure.
package editor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"quill/internal/note"
)

// Editor launches a blocking external editor against scratch files.
type Editor struct {
	command    []string
	scratchDir string
	logger     note.Logger
}

// New creates an Editor. command is the editor invocation, split on
// whitespace ("vim", "code -w"); scratchDir holds the scratch files and
// is created on first use.
func New(command, scratchDir string, logger note.Logger) (*Editor, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty editor command")
	}
	return &Editor{command: fields, scratchDir: scratchDir, logger: logger}, nil
}

// Edit writes content to a scratch file named after title, runs the
// editor synchronously against it, and re-reads the file on exit.
// Returns the resulting content and whether it differs from the input.
func (e *Editor) Edit(title, content string) (result string, changed bool, err error) {
	if err := os.MkdirAll(e.scratchDir, 0700); err != nil {
		return "", false, fmt.Errorf("creating scratch directory: %w", err)
	}

	scratch := filepath.Join(e.scratchDir, scratchName(title))
	if err := os.WriteFile(scratch, []byte(content), 0600); err != nil {
		return "", false, fmt.Errorf("writing scratch file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(scratch); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Warn("scratch file not removed", "path", scratch, "error", rmErr)
		}
	}()

	// The editor owns the terminal until it exits. There is exactly one
	// interactive task at a time, so blocking the process is fine.
	cmd := exec.Command(e.command[0], append(e.command[1:], scratch)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", false, fmt.Errorf("running editor: %w", err)
	}

	edited, err := os.ReadFile(scratch)
	if err != nil {
		return "", false, fmt.Errorf("reading scratch file back: %w", err)
	}

	return string(edited), string(edited) != content, nil
}

// scratchName derives a filesystem-safe scratch filename from a note
// title. Reserved runes become dashes and the name is length-capped; the
// title is only a convenience for the editor's titlebar, so lossiness is
// fine.
func scratchName(title string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		default:
			return r
		}
	}, title)

	if clean == "" {
		clean = "untitled"
	}
	if runes := []rune(clean); len(runes) > 50 {
		clean = string(runes[:50])
	}
	return clean + ".md"
}
