package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2024-02-29 12:30:45.123456789")
	require.NoError(t, err)

	assert.Equal(t, 2024, ts.Year)
	assert.Equal(t, 2, ts.Month)
	assert.Equal(t, 29, ts.Day)
	assert.Equal(t, 12, ts.Hour)
	assert.Equal(t, 30, ts.Minute)
	assert.Equal(t, 45, ts.Second)
	assert.Equal(t, 123456789, ts.Nanosecond)
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "2024-02-29", "not a time", "2024-02-29T12:30:45.123456789"} {
		_, err := ParseTimestamp(input)
		assert.ErrorIs(t, err, ErrBadTimestamp, "input %q", input)
	}
}

func TestTimestampStringRoundTrip(t *testing.T) {
	const raw = "2023-12-31 23:59:59.999999999"
	ts, err := ParseTimestamp(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, ts.String())
}

func TestUnixNanosUsesRealCalendar(t *testing.T) {
	jan31, err := ParseTimestamp("2024-01-31 00:00:00.000000000")
	require.NoError(t, err)
	feb01, err := ParseTimestamp("2024-02-01 00:00:00.000000000")
	require.NoError(t, err)

	// Adjacent calendar days are exactly one day apart, regardless of the
	// month boundary.
	assert.Equal(t, int64(24*time.Hour), feb01.UnixNanos()-jan31.UnixNanos())

	want := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC).UnixNano()
	assert.Equal(t, want, jan31.UnixNanos())
}

func TestTimestampOrdering(t *testing.T) {
	early, err := ParseTimestamp("2024-03-01 00:00:00.000000100")
	require.NoError(t, err)
	late, err := ParseTimestamp("2024-03-01 00:00:00.000000700")
	require.NoError(t, err)

	assert.True(t, early.Before(late))
	assert.False(t, late.Before(early))
	assert.Equal(t, int64(600), late.UnixNanos()-early.UnixNanos())
}
