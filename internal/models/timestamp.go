package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// wireLayouts are tried in order when decoding. Layouts without a zone are UTC.
var wireLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123,
}

// Timestamp is a backend date/time that tolerates null and malformed values.
// Set is false for null or empty; Valid is false when the raw value could not be parsed.
type Timestamp struct {
	Time  time.Time
	Raw   string
	Set   bool
	Valid bool
}

// At builds a valid timestamp
func At(t time.Time) Timestamp {
	return Timestamp{Time: t, Raw: t.UTC().Format(time.RFC3339), Set: true, Valid: true}
}

// ParseTimestamp parses s using the wire layouts. It never fails;
// an unparseable value is returned with Valid=false.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range wireLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t, Raw: s, Set: true, Valid: true}
		}
	}
	return Timestamp{Raw: s, Set: true}
}

// UnmarshalJSON accepts null, strings in any wire layout, and unix seconds.
// Any other JSON value is kept verbatim as an invalid timestamp.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*ts = ParseTimestamp(s)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err == nil {
		*ts = At(time.Unix(int64(secs), 0).UTC())
		return nil
	}
	*ts = Timestamp{Raw: string(b), Set: true}
	return nil
}

// MarshalJSON writes RFC 3339 for valid values, the raw text for invalid ones
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Set {
		return []byte("null"), nil
	}
	if !ts.Valid {
		return json.Marshal(ts.Raw)
	}
	return json.Marshal(ts.Time.UTC().Format(time.RFC3339))
}

// SortKey is the time used for ordering. Missing and invalid values sort as the epoch.
func (ts Timestamp) SortKey() time.Time {
	if !ts.Set || !ts.Valid {
		return time.Unix(0, 0).UTC()
	}
	return ts.Time
}

var inputLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseInputDate parses a date typed into a form, interpreting it in loc.
// RFC 3339 input keeps its own offset.
func ParseInputDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or YYYY-MM-DD HH:MM", s)
}

// InputDate formats ts for editing in a form. Midnight values drop the clock.
func InputDate(ts Timestamp, loc *time.Location) string {
	if !ts.Set {
		return ""
	}
	if !ts.Valid {
		return ts.Raw
	}
	t := ts.Time.In(loc)
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}
