package dataset

import (
	"strings"
	"time"

	"github.com/YuminosukeSato/bikecount/pkg/errors"
)

// Timestamp layouts accepted by ParseTimestamp, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses s with the first matching layout. Values without a
// zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.NewValueError("ParseTimestamp", "unrecognised timestamp "+`"`+s+`"`)
}

// TruncateToMicroseconds returns a copy of ts with sub-microsecond precision
// removed and whether any value changed.
func TruncateToMicroseconds(ts []time.Time) ([]time.Time, bool) {
	out := make([]time.Time, len(ts))
	changed := false
	for i, t := range ts {
		out[i] = t.Truncate(time.Microsecond)
		if !out[i].Equal(t) {
			changed = true
		}
	}
	return out, changed
}
