package models

import "time"

// Course represents a university course taught by an instructor.
// CourseTime carries the free-text meeting expression (e.g. "Mon 09:00-10:30")
// consumed by the timetable parser.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Code         string    `db:"code" json:"code"`
	Title        string    `db:"title" json:"title"`
	Description  *string   `db:"description" json:"description,omitempty"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	CourseTime   *string   `db:"course_time" json:"course_time,omitempty"`
	Location     *string   `db:"location" json:"location,omitempty"`
	ImageURL     *string   `db:"image_url" json:"image_url,omitempty"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with instructor metadata and counts.
type CourseDetail struct {
	Course
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	EnrolledCount  int    `db:"enrolled_count" json:"enrolled_count"`
}

// CourseFilter describes query params for listing courses.
type CourseFilter struct {
	InstructorID string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CourseMeetingRow is the minimal projection consumed by the timetable
// materializer: title, free-text meeting time and room.
type CourseMeetingRow struct {
	CourseID   string  `db:"course_id" json:"course_id"`
	Title      string  `db:"title" json:"title"`
	CourseTime *string `db:"course_time" json:"course_time,omitempty"`
	Location   *string `db:"location" json:"location,omitempty"`
}
