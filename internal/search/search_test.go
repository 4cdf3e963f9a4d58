package search

import (
	"testing"

	"quill/internal/note"
)

func notesFixture() []note.Note {
	return []note.Note{
		{ID: "1", Content: "Groceries\nmilk, eggs"},
		{ID: "2", Content: "Meeting notes\nq3 planning"},
		{ID: "3", Content: "Secretsauce\nthe recipe", IsHidden: true},
	}
}

func ids(notes []note.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestFilterEmptyQueryExcludesHidden(t *testing.T) {
	got := Filter(notesFixture(), "")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 visible notes", len(got))
	}
	for _, n := range got {
		if n.IsHidden {
			t.Errorf("hidden note %s surfaced with empty query", n.ID)
		}
	}
}

func TestFilterFuzzyRanksVisible(t *testing.T) {
	got := Filter(notesFixture(), "groc")
	if len(got) == 0 || got[0].ID != "1" {
		t.Errorf("Filter(groc) = %v, want Groceries first", ids(got))
	}
}

func TestHiddenNoteThreshold(t *testing.T) {
	notes := notesFixture()

	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"four chars not exact", "secr", false},
		{"five chars prefix", "secre", true},
		{"five chars case-insensitive prefix", "SeCrE", true},
		{"full title under any case", "secretsauce", true},
		{"exact full title matches regardless of threshold", "Secretsauce", true},
		{"five chars non-prefix", "auces", false},
		{"long non-prefix", "sauce recipe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(notes, tt.query)
			found := false
			for _, n := range got {
				if n.ID == "3" {
					found = true
				}
			}
			if found != tt.want {
				t.Errorf("query %q surfaced hidden note = %v, want %v", tt.query, found, tt.want)
			}
		})
	}
}

func TestHiddenMatchesComeFirst(t *testing.T) {
	notes := []note.Note{
		{ID: "v", Content: "secret plans visible"},
		{ID: "h", Content: "secret", IsHidden: true},
	}

	got := Filter(notes, "secret")
	if len(got) < 2 || got[0].ID != "h" {
		t.Errorf("order = %v, want hidden match first", ids(got))
	}
}

func TestInWorkspace(t *testing.T) {
	notes := []note.Note{
		{ID: "1", Workspace: "work"},
		{ID: "2", Workspace: "home"},
		{ID: "3"},
		{ID: "4", Workspace: "home", IsPinned: true},
	}

	t.Run("unscoped returns everything", func(t *testing.T) {
		if got := InWorkspace(notes, ""); len(got) != 4 {
			t.Errorf("len = %d, want 4", len(got))
		}
	})

	t.Run("scoped keeps workspace and pinned", func(t *testing.T) {
		got := ids(InWorkspace(notes, "work"))
		want := []string{"1", "4"}
		if len(got) != len(want) {
			t.Fatalf("ids = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ids = %v, want %v", got, want)
			}
		}
	})
}
