package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func TestWeeklySixOccurrences(t *testing.T) {
	got, err := Collect(day(2025, 1, 6), Weekly, Occurrences(6))
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		day(2025, 1, 13),
		day(2025, 1, 20),
		day(2025, 1, 27),
		day(2025, 2, 3),
		day(2025, 2, 10),
		day(2025, 2, 17),
	}, got)
}

func TestWeeklyStaysOnMonday(t *testing.T) {
	anchor := day(2025, 1, 6)
	got, err := Collect(anchor, Weekly, Days(anchor, 180))
	require.NoError(t, err)
	require.NotEmpty(t, got)

	prev := anchor
	for _, d := range got {
		assert.Equal(t, time.Monday, d.Weekday())
		assert.Equal(t, 7*24*time.Hour, d.Sub(prev))
		assert.True(t, d.Before(anchor.AddDate(0, 0, 180)))
		prev = d
	}
	assert.Len(t, got, 25)
}

func TestBiWeekly(t *testing.T) {
	got, err := Collect(day(2025, 1, 6), BiWeekly, Occurrences(3))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 1, 20), day(2025, 2, 3), day(2025, 2, 17)}, got)
}

func TestMonthlyClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name   string
		anchor time.Time
		want   []time.Time
	}{
		{
			name:   "non-leap year",
			anchor: day(2025, 1, 31),
			want:   []time.Time{day(2025, 2, 28), day(2025, 3, 31), day(2025, 4, 30), day(2025, 5, 31)},
		},
		{
			name:   "leap year",
			anchor: day(2024, 1, 31),
			want:   []time.Time{day(2024, 2, 29), day(2024, 3, 31), day(2024, 4, 30), day(2024, 5, 31)},
		},
		{
			name:   "30th across february",
			anchor: day(2025, 1, 30),
			want:   []time.Time{day(2025, 2, 28), day(2025, 3, 30), day(2025, 4, 30), day(2025, 5, 30)},
		},
		{
			name:   "year rollover",
			anchor: day(2025, 11, 30),
			want:   []time.Time{day(2025, 12, 30), day(2026, 1, 30), day(2026, 2, 28), day(2026, 3, 30)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Collect(tt.anchor, Monthly, Occurrences(4))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHorizonIsExclusive(t *testing.T) {
	anchor := day(2025, 1, 6)
	got, err := Collect(anchor, Weekly, Horizon{Until: day(2025, 1, 27)})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 1, 13), day(2025, 1, 20)}, got)
}

func TestHorizonCountAndUntil(t *testing.T) {
	anchor := day(2025, 1, 6)

	got, err := Collect(anchor, Weekly, Days(anchor, 365).WithCount(2))
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = Collect(anchor, Weekly, Days(anchor, 15).WithCount(10))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHorizonBeforeAnchorYieldsNothing(t *testing.T) {
	got, err := Collect(day(2025, 1, 6), Monthly, Horizon{Until: day(2025, 1, 1)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDatesIsRestartable(t *testing.T) {
	seq, err := Dates(day(2025, 1, 6), Weekly, Occurrences(3))
	require.NoError(t, err)

	var first, second []time.Time
	for d := range seq {
		first = append(first, d)
	}
	for d := range seq {
		second = append(second, d)
	}
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestDatesStopsEarly(t *testing.T) {
	seq, err := Dates(day(2025, 1, 6), Weekly, Occurrences(100))
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestDatesKeepsClockTime(t *testing.T) {
	anchor := time.Date(2025, 1, 31, 14, 30, 0, 0, time.UTC)
	got, err := Collect(anchor, Monthly, Occurrences(1))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 14, 30, 0, 0, time.UTC), got[0])
}

func TestDatesRejectsBadInput(t *testing.T) {
	_, err := Dates(day(2025, 1, 6), Pattern("daily"), Occurrences(1))
	assert.ErrorIs(t, err, ErrUnknownPattern)

	_, err = Dates(day(2025, 1, 6), Weekly, Horizon{})
	assert.ErrorIs(t, err, ErrUnboundedHorizon)

	_, err = Dates(day(2025, 1, 6), Weekly, Horizon{Count: -1})
	assert.Error(t, err)
}

func TestParsePattern(t *testing.T) {
	tests := map[string]Pattern{
		"Weekly":    Weekly,
		"Bi-Weekly": BiWeekly,
		"biweekly":  BiWeekly,
		" monthly ": Monthly,
	}
	for in, want := range tests {
		got, err := ParsePattern(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParsePattern("yearly")
	assert.ErrorIs(t, err, ErrUnknownPattern)
}
