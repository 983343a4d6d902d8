package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance represents a single per-meeting attendance row.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the model with student metadata.
type AttendanceRecord struct {
	Attendance
	StudentName string `db:"student_name" json:"student_name"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	CourseID  string
	StudentID string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// AttendanceRate summarises presence for one student in a course.
type AttendanceRate struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	Total       int     `db:"total" json:"total"`
	Present     int     `db:"present" json:"present"`
	Rate        float64 `db:"rate" json:"rate"`
}
