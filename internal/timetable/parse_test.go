package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayAndRange(t *testing.T) {
	slot := Parse("Monday 09:00-10:30")
	require.NotNil(t, slot)
	assert.Equal(t, 1, slot.DayOfWeek)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.Equal(t, "10:30", slot.EndTime)
}

func TestParseAbbreviatedAndFullDaysAgree(t *testing.T) {
	cases := map[string]int{
		"sun": 0, "sunday": 0,
		"mon": 1, "monday": 1,
		"tue": 2, "tuesday": 2,
		"wed": 3, "wednesday": 3,
		"thu": 4, "thursday": 4,
		"fri": 5, "friday": 5,
		"sat": 6, "saturday": 6,
	}
	for token, want := range cases {
		slot := Parse(token + " 10:00-11:00")
		require.NotNil(t, slot, token)
		assert.Equal(t, want, slot.DayOfWeek, token)
	}
}

func TestParseCaseInsensitiveDay(t *testing.T) {
	upper := Parse("MONDAY 09:00-10:00")
	lower := Parse("monday 09:00-10:00")
	require.NotNil(t, upper)
	require.NotNil(t, lower)
	assert.Equal(t, *lower, *upper)
}

func TestParseRangeWithoutDayDefaultsToMonday(t *testing.T) {
	slot := Parse("09:00-10:30")
	require.NotNil(t, slot)
	assert.Equal(t, DefaultDay, slot.DayOfWeek)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.Equal(t, "10:30", slot.EndTime)
}

func TestParseCompactRange(t *testing.T) {
	slot := Parse("900-1030")
	require.NotNil(t, slot)
	assert.Equal(t, "09:00", slot.StartTime)
	assert.Equal(t, "10:30", slot.EndTime)
}

func TestParseSingleTimeAddsOneHour(t *testing.T) {
	slot := Parse("Fri 14:00")
	require.NotNil(t, slot)
	assert.Equal(t, 5, slot.DayOfWeek)
	assert.Equal(t, "14:00", slot.StartTime)
	assert.Equal(t, "15:00", slot.EndTime)
}

func TestParseSingleTimeWrapsMidnight(t *testing.T) {
	slot := Parse("23:30")
	require.NotNil(t, slot)
	assert.Equal(t, DefaultDay, slot.DayOfWeek)
	assert.Equal(t, "23:30", slot.StartTime)
	assert.Equal(t, "00:30", slot.EndTime)
}

func TestParseSingleDigitHourIsPadded(t *testing.T) {
	slot := Parse("Tue 9:00-10:30")
	require.NotNil(t, slot)
	assert.Equal(t, "09:00", slot.StartTime)
}

func TestParseThreeDigitCompact(t *testing.T) {
	slot := Parse("930")
	require.NotNil(t, slot)
	assert.Equal(t, "09:30", slot.StartTime)
	assert.Equal(t, "10:30", slot.EndTime)
}

func TestParseMidStringDayIsIgnored(t *testing.T) {
	slot := Parse("Lecture Monday 09:00-10:00")
	require.NotNil(t, slot)
	// "Lecture" is the leading word, so no day is recognized.
	assert.Equal(t, DefaultDay, slot.DayOfWeek)
	assert.Equal(t, "09:00", slot.StartTime)
}

func TestParseUnusableInput(t *testing.T) {
	for _, expr := range []string{"", "   ", "gibberish text", "Mon", "Monday "} {
		assert.Nil(t, Parse(expr), "%q", expr)
	}
}

func TestParseRoundTrip(t *testing.T) {
	inputs := []struct {
		expr       string
		day        int
		start, end string
	}{
		{"Sunday 08:00-09:15", 0, "08:00", "09:15"},
		{"Wed 13:30-15:00", 3, "13:30", "15:00"},
		{"Saturday 07:45-08:45", 6, "07:45", "08:45"},
	}
	for _, tc := range inputs {
		slot := Parse(tc.expr)
		require.NotNil(t, slot, tc.expr)
		assert.Equal(t, tc.day, slot.DayOfWeek, tc.expr)
		assert.Equal(t, tc.start, slot.StartTime, tc.expr)
		assert.Equal(t, tc.end, slot.EndTime, tc.expr)
	}
}
