// Package timestamp handles GMSEC time strings.
//
// GMSEC messages carry times as text in the form YYYY-DDD-HH:MM:SS.sss,
// where DDD is the day of the year, always in UTC:
//
//	ts := timestamp.Format(time.Now())   // "2024-075-13:04:05.123"
//	t, err := timestamp.Parse(ts)
//
// Parse also accepts the form without milliseconds and RFC 3339, which
// older publishers emit.
package timestamp

import (
	"time"

	"github.com/nasa/GMSEC-API-sub012/errors"
)

// Layout is the GMSEC time layout for time.Format
const Layout = "2006-002-15:04:05.000"

var layouts = []string{Layout, "2006-002-15:04:05", time.RFC3339Nano}

// Now returns the current time as a GMSEC time string
func Now() string {
	return Format(time.Now())
}

// Format renders t in UTC. The zero time renders as "".
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// Parse reads a GMSEC time string
func Parse(s string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.WrapInvalid(
		errors.Newf(errors.ErrInvalidData, "%q is not a GMSEC time", s),
		"timestamp", "Parse", "parse time")
}

// Since returns the time elapsed since the GMSEC time s
func Since(s string) (time.Duration, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return time.Since(t), nil
}

// ToUnixMs converts t to Unix milliseconds. The zero time converts to 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time. 0 converts to the
// zero time.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
