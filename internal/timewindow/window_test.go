package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/bounty-board/internal/models"
)

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts
}

func TestWindow_IsEnded(t *testing.T) {
	tests := []struct {
		name     string
		deadline string
		now      string
		want     bool
	}{
		{name: "bare date, last millisecond of the day", deadline: "2025-01-10", now: "2025-01-10T23:59:59.999Z", want: false},
		{name: "bare date, first millisecond after", deadline: "2025-01-10", now: "2025-01-11T00:00:00.001Z", want: true},
		{name: "bare date, evening of last day", deadline: "2025-01-10", now: "2025-01-10T20:00:00Z", want: false},
		{name: "bare date, next day", deadline: "2025-01-10", now: "2025-01-11T00:01:00Z", want: true},
		{name: "timestamp before", deadline: "2025-01-10T12:00:00Z", now: "2025-01-10T11:59:59Z", want: false},
		{name: "timestamp exactly", deadline: "2025-01-10T12:00:00Z", now: "2025-01-10T12:00:00Z", want: false},
		{name: "timestamp after", deadline: "2025-01-10T12:00:00Z", now: "2025-01-10T12:00:01Z", want: true},
		{name: "timestamp with offset", deadline: "2025-01-10T12:00:00+02:00", now: "2025-01-10T10:30:00Z", want: true},
		{name: "local timestamp without offset", deadline: "2025-01-10T12:00", now: "2025-01-10T12:00:30Z", want: true},
		{name: "missing deadline never ends", deadline: "", now: "2099-01-01T00:00:00Z", want: false},
		{name: "malformed deadline never ends", deadline: "next friday", now: "2099-01-01T00:00:00Z", want: false},
		{name: "impossible date never ends", deadline: "2025-02-30", now: "2099-01-01T00:00:00Z", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(fixedClock(mustTime(t, tt.now)), time.UTC)
			assert.Equal(t, tt.want, w.IsEnded(tt.deadline))
		})
	}
}

func TestWindow_BareDateUsesConfiguredCalendar(t *testing.T) {
	amsterdam, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Skip("tzdata not available")
	}

	// 23:30 UTC on the 10th is already the 11th in Amsterdam
	w := New(fixedClock(mustTime(t, "2025-01-10T23:30:00Z")), amsterdam)
	assert.True(t, w.IsEnded("2025-01-10"))

	w = New(fixedClock(mustTime(t, "2025-01-10T22:30:00Z")), amsterdam)
	assert.False(t, w.IsEnded("2025-01-10"))
}

func TestWindow_StatusIsNotCached(t *testing.T) {
	now := mustTime(t, "2025-01-10T23:59:59Z")
	w := New(ClockFunc(func() time.Time { return now }), nil)

	assert.Equal(t, models.StatusActive, w.Status("2025-01-10"))
	now = now.Add(2 * time.Second)
	assert.Equal(t, models.StatusEnded, w.Status("2025-01-10"))
}

func TestWindow_Deadline(t *testing.T) {
	w := New(nil, time.UTC)

	d, ok := w.Deadline("2025-01-10")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 10, 23, 59, 59, 999000000, time.UTC), d)

	_, ok = w.Deadline("  ")
	assert.False(t, ok)
}

func TestIsDateOnly(t *testing.T) {
	assert.True(t, IsDateOnly("2025-01-10"))
	assert.True(t, IsDateOnly(" 2025-01-10 "))
	assert.False(t, IsDateOnly("2025-01-10T00:00:00Z"))
	assert.False(t, IsDateOnly("10/01/2025"))
}

func TestWindow_Validate(t *testing.T) {
	w := New(nil, nil)
	assert.NoError(t, w.Validate("2025-01-10"))
	assert.NoError(t, w.Validate("2025-01-10T10:00:00Z"))
	assert.Error(t, w.Validate(""))
	assert.Error(t, w.Validate("tomorrow"))
}
