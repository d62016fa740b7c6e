package calendar

import (
	"regexp"
	"strings"
	"time"
)

var spaceSeparated = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2}(?::\d{2})?)$`)

// looseLayouts are other date forms accepted from callers and converted to UTC.
var looseLayouts = []string{
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"2006/01/02 15:04",
	"2006/01/02",
}

const wallClockLayout = "2006-01-02T15:04:05"

// NormalizeRFC3339 turns caller-supplied date-times into the form the
// Calendar API expects. Values already containing "T" are kept as is,
// "YYYY-MM-DD HH:MM[:SS]" gets a "T" separator, and other recognised dates
// become RFC3339 in UTC. Anything else is returned unchanged.
func NormalizeRFC3339(raw string) string {
	if raw == "" || strings.Contains(raw, "T") {
		return raw
	}
	if m := spaceSeparated.FindStringSubmatch(raw); m != nil {
		return m[1] + "T" + m[2]
	}
	for _, layout := range looseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return raw
}

// AddMinutes adds n minutes to an RFC3339 date-time. Input carrying a zone
// yields UTC RFC3339; zone-less input yields a zone-less wall-clock time.
// Unparseable input is returned unchanged.
func AddMinutes(iso string, n int) string {
	d := time.Duration(n) * time.Minute
	if t, err := time.Parse(time.RFC3339Nano, iso); err == nil {
		return t.Add(d).UTC().Format(time.RFC3339)
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, iso); err == nil {
			return t.Add(d).Format(wallClockLayout)
		}
	}
	return iso
}
