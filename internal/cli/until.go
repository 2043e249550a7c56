package cli

import (
	"fmt"
	"time"
)

// parseUntil turns user input into an absolute deferral time. A duration is
// taken relative to now; dates without a time of day mean start of that day
// in local time.
func parseUntil(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q: use a duration like 2h, a date like 2026-09-01, or an RFC 3339 timestamp", s)
}
