// Package timestamp normalizes the timestamp formats IoT sensors put on
// the wire. Gateway-attached sensors send RFC3339 strings, embedded
// boards send epoch seconds, fleet agents send epoch milliseconds, and
// clockless devices send nothing at all. Everything funnels into int64
// Unix milliseconds (UTC); zero means "no clock", and the ingest path
// stamps those on arrival.
//
// Usage:
//
//	// Normalize whatever a payload carried
//	ms := timestamp.Parse(payload.Timestamp)
//
//	// Back to time.Time for the domain types
//	t := timestamp.ToTime(ms)
//
//	// RFC3339 for logs
//	s := timestamp.Format(ms)
package timestamp

import (
	"strconv"
	"time"
)

// msEpochFloor separates epoch seconds from epoch milliseconds: any
// millisecond value after Sep 2001 exceeds it, while no plausible
// second value does.
const msEpochFloor = 1e12

// Parse converts a wire timestamp to Unix milliseconds. It accepts
// RFC3339 strings, integer or float epoch values (seconds or
// milliseconds, disambiguated by magnitude), numeric strings, and
// time.Time. Absent, zero, or unparseable input yields 0.
func Parse(input any) int64 {
	if input == nil {
		return 0
	}

	switch v := input.(type) {
	case int64:
		return fromEpoch(v)
	case int:
		return fromEpoch(int64(v))
	case int32:
		return fromEpoch(int64(v))
	case float64:
		// encoding/json delivers all JSON numbers as float64.
		if v == 0 {
			return 0
		}
		if v > msEpochFloor {
			return int64(v)
		}
		return int64(v * 1000)
	case string:
		if v == "" {
			return 0
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return ToUnixMs(t)
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return fromEpoch(n)
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(f)
		}
		return 0
	case time.Time:
		return ToUnixMs(v)
	case *time.Time:
		if v == nil {
			return 0
		}
		return ToUnixMs(*v)
	default:
		return 0
	}
}

func fromEpoch(v int64) int64 {
	if v == 0 {
		return 0
	}
	if v > msEpochFloor {
		return v
	}
	return v * 1000
}

// ToTime converts Unix milliseconds to time.Time. Zero maps to the zero
// time so IsZero checks carry through.
func ToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// ToUnixMs converts a time.Time to Unix milliseconds. The zero time
// maps to 0.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// IsZero reports whether a timestamp is unset.
func IsZero(ms int64) bool {
	return ms == 0
}

// Format renders Unix milliseconds as RFC3339 UTC for display and logs.
// Zero renders as the empty string.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
