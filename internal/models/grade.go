package models

import "time"

// Grade is a scored component recorded for a student within a course
// (assignment, midterm, participation, ...).
type Grade struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Component string    `db:"component" json:"component"`
	Score     float64   `db:"score" json:"score"`
	MaxScore  float64   `db:"max_score" json:"max_score"`
	Remarks   *string   `db:"remarks" json:"remarks,omitempty"`
	GradedBy  string    `db:"graded_by" json:"graded_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GradeDetail extends Grade with student and course labels.
type GradeDetail struct {
	Grade
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// GradeFilter captures listing criteria for grades.
type GradeFilter struct {
	CourseID  string
	StudentID string
	Component string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentGradeSummary aggregates a student's standing within a course.
type StudentGradeSummary struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentName string  `db:"student_name" json:"student_name"`
	TotalScore  float64 `db:"total_score" json:"total_score"`
	TotalMax    float64 `db:"total_max" json:"total_max"`
	Percentage  float64 `db:"percentage" json:"percentage"`
	Components  int     `db:"components" json:"components"`
}
