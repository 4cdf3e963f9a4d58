package note

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so timestamp logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts note ID allocation so tests are deterministic.
// IDs are opaque, stable and never derived from content.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
