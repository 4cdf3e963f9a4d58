package note

import (
	"sort"
	"strings"
	"time"
)

// Note is a single unit of user content together with its attributes.
// The ID is assigned at creation and never changes; content is arbitrary
// text whose first line serves as the display title.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsPinned  bool      `json:"isPinned"`
	IsHidden  bool      `json:"isHidden"`
	Workspace string    `json:"workspace,omitempty"`
}

// Title returns the display title of the note: the first non-empty line of
// the trimmed content, truncated to 80 runes with an ellipsis. Empty content
// titles as "New Note".
func (n Note) Title() string {
	return TitleOf(n.Content)
}

// TitleOf extracts a display title from raw note content.
func TitleOf(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "New Note"
	}
	line := trimmed
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		line = trimmed[:i]
	}
	runes := []rune(line)
	if len(runes) > 80 {
		return string(runes[:80]) + "..."
	}
	return line
}

// Metadata is the aggregate of all per-note attributes excluding content.
// It is persisted as a single encrypted record and always rewritten
// wholesale.
type Metadata struct {
	Notes map[string]Attributes `json:"notes"`
}

// Attributes holds the non-content fields of one note. Absent boolean
// fields decode as false and an absent workspace decodes as unscoped, so
// records written before a field existed load with sane defaults.
type Attributes struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsPinned  bool      `json:"isPinned"`
	IsHidden  bool      `json:"isHidden"`
	Workspace string    `json:"workspace,omitempty"`
}

// NewMetadata returns an empty metadata aggregate with an allocated map.
func NewMetadata() Metadata {
	return Metadata{Notes: make(map[string]Attributes)}
}

// Attributes returns the note's non-content fields.
func (n Note) Attributes() Attributes {
	return Attributes{
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		IsPinned:  n.IsPinned,
		IsHidden:  n.IsHidden,
		Workspace: n.Workspace,
	}
}

// Apply copies attributes onto the note, leaving ID and Content untouched.
func (n *Note) Apply(a Attributes) {
	n.CreatedAt = a.CreatedAt
	n.UpdatedAt = a.UpdatedAt
	n.IsPinned = a.IsPinned
	n.IsHidden = a.IsHidden
	n.Workspace = a.Workspace
}

// SortByRecency orders notes by UpdatedAt descending, in place.
func SortByRecency(notes []Note) {
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
}
