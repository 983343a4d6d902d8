package timetable

import "sort"

// Defaults applied when an expression cannot be parsed at all. A course with
// unusable scheduling text still has to appear somewhere on the grid, so the
// materializer pins it to Monday morning instead of dropping it.
const (
	DefaultStart = "09:00"
	DefaultEnd   = "10:00"
	RoomTBA      = "TBA"
)

// CourseMeeting is one raw course row feeding the materializer: a display
// title, the free-text meeting expression and an optional room.
type CourseMeeting struct {
	CourseID   string
	Title      string
	CourseTime string
	Room       string
}

// Entry is one materialized timetable row.
type Entry struct {
	CourseID    string `json:"course_id,omitempty"`
	CourseTitle string `json:"course_title"`
	Slot
	Room string `json:"room"`
	// Parsed distinguishes a genuinely parsed slot from the default
	// placement; consumers use it to flag effectively-unscheduled courses.
	Parsed bool `json:"parsed"`
}

// Materialize converts raw course meetings into a sorted weekly timetable.
// Every input yields exactly one output entry; nothing is merged or dropped.
// The result is ordered by (day, start time) ascending, ties preserving
// input order.
func Materialize(meetings []CourseMeeting) []Entry {
	entries := make([]Entry, 0, len(meetings))
	for _, m := range meetings {
		entry := Entry{
			CourseID:    m.CourseID,
			CourseTitle: m.Title,
			Room:        m.Room,
		}
		if entry.Room == "" {
			entry.Room = RoomTBA
		}
		if slot := Parse(m.CourseTime); slot != nil {
			entry.Slot = *slot
			entry.Parsed = true
		} else {
			entry.Slot = Slot{DayOfWeek: DefaultDay, StartTime: DefaultStart, EndTime: DefaultEnd}
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DayOfWeek != entries[j].DayOfWeek {
			return entries[i].DayOfWeek < entries[j].DayOfWeek
		}
		return entries[i].StartTime < entries[j].StartTime
	})

	return entries
}
