package client

import (
	"fmt"
	"time"
)

// FormatRecency renders an update time compactly for listing: clock time
// today, "yesterday", day counts under a week, then a short date.
func FormatRecency(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return t.Format("3:04pm")
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("Jan2")
	}
}
