package timestamp

import (
	"testing"
	"time"
)

var (
	testTime   = time.Date(2023, 1, 15, 12, 30, 45, 123000000, time.UTC)
	testTimeMs = int64(1673785845123)
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int64
	}{
		{name: "nil", input: nil, expected: 0},
		{name: "epoch seconds int64", input: int64(1673785845), expected: 1673785845000},
		{name: "epoch milliseconds int64", input: testTimeMs, expected: testTimeMs},
		{name: "epoch seconds int", input: int(1673785845), expected: 1673785845000},
		{name: "epoch seconds int32", input: int32(1673785845), expected: 1673785845000},
		{name: "zero int64", input: int64(0), expected: 0},
		// JSON numbers arrive as float64 regardless of what the sensor sent.
		{name: "json number seconds", input: float64(1673785845), expected: 1673785845000},
		{name: "json number milliseconds", input: float64(1673785845123), expected: 1673785845123},
		{name: "json number zero", input: float64(0), expected: 0},
		{name: "rfc3339 string", input: "2023-01-15T12:30:45Z", expected: 1673785845000},
		{name: "rfc3339 with offset", input: "2023-01-15T13:30:45+01:00", expected: 1673785845000},
		{name: "numeric string seconds", input: "1673785845", expected: 1673785845000},
		{name: "numeric string milliseconds", input: "1673785845123", expected: 1673785845123},
		{name: "float string seconds", input: "1673785845.5", expected: 1673785845500},
		{name: "empty string", input: "", expected: 0},
		{name: "garbage string", input: "soon", expected: 0},
		{name: "time.Time", input: testTime, expected: testTimeMs},
		{name: "zero time.Time", input: time.Time{}, expected: 0},
		{name: "nil *time.Time", input: (*time.Time)(nil), expected: 0},
		{name: "*time.Time", input: &testTime, expected: testTimeMs},
		{name: "unsupported type", input: []byte("1673785845"), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.input); got != tt.expected {
				t.Errorf("Parse(%v) = %d, expected %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToTime(t *testing.T) {
	if got := ToTime(testTimeMs); !got.Equal(testTime) {
		t.Errorf("ToTime(%d) = %v, expected %v", testTimeMs, got, testTime)
	}
	if got := ToTime(0); !got.IsZero() {
		t.Errorf("ToTime(0) = %v, expected zero time", got)
	}
}

func TestToUnixMs(t *testing.T) {
	if got := ToUnixMs(testTime); got != testTimeMs {
		t.Errorf("ToUnixMs(%v) = %d, expected %d", testTime, got, testTimeMs)
	}
	if got := ToUnixMs(time.Time{}); got != 0 {
		t.Errorf("ToUnixMs(zero) = %d, expected 0", got)
	}
}

func TestRoundTrip(t *testing.T) {
	ms := Parse("2023-01-15T12:30:45Z")
	if got := ToUnixMs(ToTime(ms)); got != ms {
		t.Errorf("round trip changed value: %d != %d", got, ms)
	}
}

func TestIsZero(t *testing.T) {
	if !IsZero(0) {
		t.Error("IsZero(0) = false, expected true")
	}
	if IsZero(testTimeMs) {
		t.Errorf("IsZero(%d) = true, expected false", testTimeMs)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(testTimeMs); got != "2023-01-15T12:30:45Z" {
		t.Errorf("Format(%d) = %q, expected %q", testTimeMs, got, "2023-01-15T12:30:45Z")
	}
	if got := Format(0); got != "" {
		t.Errorf("Format(0) = %q, expected empty string", got)
	}
}
