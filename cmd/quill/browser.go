package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"quill/internal/client"
	"quill/internal/note"
)

// runBrowser is the interactive loop: type to filter, pick a number to
// edit, a few colon commands for the rest. One interactive task at a
// time; launching the editor blocks the whole process on purpose.
func runBrowser(session *client.Session) error {
	in := bufio.NewScanner(os.Stdin)
	query := ""
	workspace := ""

	for {
		notes := session.Filter(query, workspace)
		printNotes(notes)
		fmt.Printf("\n[number] open  [text] filter  :n new  :d N delete  :w NAME workspace  :q quit\n> ")

		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())

		switch {
		case line == ":q":
			return nil

		case line == ":n":
			n, err := session.Create()
			if err != nil {
				fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
				continue
			}
			fmt.Printf("created %q\n", n.Title())
			query = ""

		case strings.HasPrefix(line, ":d "):
			idx, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":d ")))
			if err != nil || idx < 1 || idx > len(notes) {
				fmt.Fprintln(os.Stderr, "no such note")
				continue
			}
			doomed := notes[idx-1]
			if err := session.Delete(doomed.ID); err != nil {
				fmt.Fprintf(os.Stderr, "delete failed: %v\n", err)
				continue
			}
			fmt.Printf("deleted %q\n", doomed.Title())

		case strings.HasPrefix(line, ":w"):
			workspace = strings.TrimSpace(strings.TrimPrefix(line, ":w"))

		case line == "":
			query = ""

		default:
			if idx, err := strconv.Atoi(line); err == nil {
				if idx < 1 || idx > len(notes) {
					fmt.Fprintln(os.Stderr, "no such note")
					continue
				}
				saved, err := session.Edit(notes[idx-1].ID)
				if err != nil {
					fmt.Fprintf(os.Stderr, "edit failed: %v\n", err)
					continue
				}
				if saved {
					fmt.Println("saved")
				}
				continue
			}
			query = line
		}
	}
}

func printNotes(notes []note.Note) {
	now := time.Now()
	for i, n := range notes {
		marker := " "
		if n.IsPinned {
			marker = "*"
		}
		fmt.Printf("%3d %s %-60s %s\n", i+1, marker, n.Title(), client.FormatRecency(n.UpdatedAt, now))
	}
	if len(notes) == 0 {
		fmt.Println("No notes found")
	}
}
