// Package search filters a note collection for listing. Ranking of
// visible notes is delegated to a fuzzy matcher over titles; hidden notes
// are held to a stricter rule so partial typing cannot reveal them.
package search

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"quill/internal/note"
)

// hiddenMatchLen is the minimum query length at which a hidden note
// surfaces on a prefix match. Below it the query must equal the full
// title: a short query has to express full confidence before a hidden
// note's existence is acknowledged.
const hiddenMatchLen = 5

// Filter returns the notes matching query, hidden-note rule applied.
// With an empty query only visible notes are returned, in input order.
// Otherwise matching hidden notes come first (the user typed enough to
// prove intent), followed by visible notes in fuzzy rank order.
func Filter(notes []note.Note, query string) []note.Note {
	visible := make([]note.Note, 0, len(notes))
	for _, n := range notes {
		if !n.IsHidden {
			visible = append(visible, n)
		}
	}

	if query == "" {
		return visible
	}

	matched := hiddenMatches(notes, query)

	titles := make([]string, len(visible))
	for i, n := range visible {
		titles[i] = n.Title()
	}
	for _, m := range fuzzy.Find(query, titles) {
		matched = append(matched, visible[m.Index])
	}
	return matched
}

// hiddenMatches applies the asymmetric hidden-note rule: a query of
// hiddenMatchLen or more characters matches as a case-insensitive title
// prefix; a shorter query matches only the exact full title,
// case-insensitively.
func hiddenMatches(notes []note.Note, query string) []note.Note {
	queryLower := strings.ToLower(query)

	var matched []note.Note
	for _, n := range notes {
		if !n.IsHidden {
			continue
		}
		titleLower := strings.ToLower(n.Title())
		if len(query) >= hiddenMatchLen {
			if strings.HasPrefix(titleLower, queryLower) {
				matched = append(matched, n)
			}
		} else if titleLower == queryLower {
			matched = append(matched, n)
		}
	}
	return matched
}

// InWorkspace scopes notes to one workspace. Pinned notes are visible
// across all workspaces; an empty workspace means no scoping at all.
func InWorkspace(notes []note.Note, workspace string) []note.Note {
	if workspace == "" {
		return notes
	}
	scoped := make([]note.Note, 0, len(notes))
	for _, n := range notes {
		if n.Workspace == workspace || n.IsPinned {
			scoped = append(scoped, n)
		}
	}
	return scoped
}
