package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Timestamp is an optional point in time.
//
// Upstream sources use placeholder dates (Go's zero time, the unix epoch) to mean "unknown";
// those never become a valid Timestamp.
type Timestamp struct {
	t     time.Time
	valid bool
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Some wraps t, returning None for sentinel values.
func Some(t time.Time) Timestamp {
	if isSentinel(t) {
		return Timestamp{}
	}
	return Timestamp{t: t.UTC(), valid: true}
}

// None returns the unknown timestamp.
func None() Timestamp {
	return Timestamp{}
}

// ParseTimestamp parses s with the layouts seen in activity payloads.
// Unparseable input and sentinel dates yield None; it never fails.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return None()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Some(t)
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Some(time.Unix(secs, 0))
	}
	return None()
}

func isSentinel(t time.Time) bool {
	return t.IsZero() || t.Unix() <= 0
}

// Get returns the time and whether it is known.
func (ts Timestamp) Get() (time.Time, bool) {
	return ts.t, ts.valid
}

// Valid reports whether the timestamp is known.
func (ts Timestamp) Valid() bool {
	return ts.valid
}

// After reports whether ts is known and strictly later than o. Any known time is after an unknown one.
func (ts Timestamp) After(o Timestamp) bool {
	if !ts.valid {
		return false
	}
	if !o.valid {
		return true
	}
	return ts.t.After(o.t)
}

// String formats the timestamp as RFC 3339, or "unknown".
func (ts Timestamp) String() string {
	if !ts.valid {
		return "unknown"
	}
	return ts.t.Format(time.RFC3339)
}

// MarshalJSON encodes unknown timestamps as null.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.valid {
		return []byte("null"), nil
	}
	return json.Marshal(ts.t.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts strings, unix seconds and null. Anything it cannot read becomes None.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*ts = None()
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*ts = None()
			return nil
		}
		*ts = ParseTimestamp(s)
	default:
		*ts = ParseTimestamp(string(data))
	}
	return nil
}

// MarshalYAML encodes unknown timestamps as null.
func (ts Timestamp) MarshalYAML() (any, error) {
	if !ts.valid {
		return nil, nil
	}
	return ts.t.Format(time.RFC3339), nil
}
