package market

import (
	"errors"
	"fmt"
	"time"
)

// Timestamp layout used by market data files: 'YYYY-MM-DD HH:MM:SS.nnnnnnnnn'.
const timestampLayout = "2006-01-02 15:04:05.000000000"

var ErrBadTimestamp = errors.New("malformed timestamp")

// Timestamp is a calendar timestamp with nanosecond resolution. Ordering is
// total and consistent with calendar order through UnixNanos, which uses the
// proleptic Gregorian calendar (time.Date) rather than any fixed-length
// month approximation.
type Timestamp struct {
	Year       int
	Month      int
	Day        int
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// ParseTimestamp parses 'YYYY-MM-DD HH:MM:SS.nnnnnnnnn'.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	return Timestamp{
		Year:       t.Year(),
		Month:      int(t.Month()),
		Day:        t.Day(),
		Hour:       t.Hour(),
		Minute:     t.Minute(),
		Second:     t.Second(),
		Nanosecond: t.Nanosecond(),
	}, nil
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%09d",
		t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second, t.Nanosecond)
}

// UnixNanos converts to nanoseconds since the Unix epoch.
func (t Timestamp) UnixNanos() int64 {
	return time.Date(t.Year, time.Month(t.Month), t.Day,
		t.Hour, t.Minute, t.Second, t.Nanosecond, time.UTC).UnixNano()
}

// Before reports whether t precedes other.
func (t Timestamp) Before(other Timestamp) bool {
	return t.UnixNanos() < other.UnixNanos()
}
