package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializeUnparseableGetsDefaultSlot(t *testing.T) {
	entries := Materialize([]CourseMeeting{
		{Title: "X", CourseTime: "", Room: ""},
	})
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "X", e.CourseTitle)
	assert.Equal(t, DefaultDay, e.DayOfWeek)
	assert.Equal(t, DefaultStart, e.StartTime)
	assert.Equal(t, DefaultEnd, e.EndTime)
	assert.Equal(t, RoomTBA, e.Room)
	assert.False(t, e.Parsed)
}

func TestMaterializeSortsByDayThenStart(t *testing.T) {
	entries := Materialize([]CourseMeeting{
		{Title: "C", CourseTime: "Wed 08:00-09:00"},
		{Title: "A", CourseTime: "Mon 10:00-11:00"},
		{Title: "B", CourseTime: "Mon 08:00-09:00"},
		{Title: "D", CourseTime: "Sunday 15:00-16:00"},
	})
	require.Len(t, entries, 4)
	titles := []string{entries[0].CourseTitle, entries[1].CourseTitle, entries[2].CourseTitle, entries[3].CourseTitle}
	assert.Equal(t, []string{"D", "B", "A", "C"}, titles)
}

func TestMaterializeStableOnTies(t *testing.T) {
	entries := Materialize([]CourseMeeting{
		{CourseID: "c1", Title: "First", CourseTime: "Mon 09:00-10:00"},
		{CourseID: "c2", Title: "Second", CourseTime: "Mon 09:00-10:00"},
		{CourseID: "c3", Title: "Third", CourseTime: "Mon 09:00-10:00"},
	})
	require.Len(t, entries, 3)
	assert.Equal(t, "c1", entries[0].CourseID)
	assert.Equal(t, "c2", entries[1].CourseID)
	assert.Equal(t, "c3", entries[2].CourseID)
}

func TestMaterializeNeverDropsRows(t *testing.T) {
	meetings := []CourseMeeting{
		{Title: "OK", CourseTime: "Tue 10:00-11:00", Room: "B101"},
		{Title: "Broken", CourseTime: "see syllabus"},
		{Title: "Empty"},
	}
	entries := Materialize(meetings)
	require.Len(t, entries, len(meetings))

	parsed := 0
	for _, e := range entries {
		if e.Parsed {
			parsed++
		}
	}
	assert.Equal(t, 1, parsed)
}

func TestMaterializeIdempotent(t *testing.T) {
	meetings := []CourseMeeting{
		{Title: "B", CourseTime: "Fri 14:00"},
		{Title: "A", CourseTime: "invalid"},
		{Title: "C", CourseTime: "Mon 08:00-09:30", Room: "A1"},
	}
	first := Materialize(meetings)
	second := Materialize(meetings)
	assert.Equal(t, first, second)
}

func TestMaterializeKeepsRoomAndDayIndexContract(t *testing.T) {
	entries := Materialize([]CourseMeeting{
		{Title: "Sat class", CourseTime: "Saturday 09:00-10:00", Room: "Lab 2"},
	})
	require.Len(t, entries, 1)
	assert.Equal(t, 6, entries[0].DayOfWeek)
	assert.Equal(t, "Saturday", DayNames[entries[0].DayOfWeek])
	assert.Equal(t, "Lab 2", entries[0].Room)
}
