package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive  EnrollmentStatus = "ACTIVE"
	EnrollmentStatusDropped EnrollmentStatus = "DROPPED"
)

// Enrollment captures a student's registration to a course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DroppedAt  *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
	CourseCode  string `db:"course_code" json:"course_code"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
