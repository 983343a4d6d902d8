package models

import "time"

// Exam represents a scheduled examination for a course.
type Exam struct {
	ID              string    `db:"id" json:"id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	Title           string    `db:"title" json:"title"`
	ExamDate        time.Time `db:"exam_date" json:"exam_date"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Room            *string   `db:"room" json:"room,omitempty"`
	MaxScore        float64   `db:"max_score" json:"max_score"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ExamResult records a student's score for an exam.
type ExamResult struct {
	ID         string    `db:"id" json:"id"`
	ExamID     string    `db:"exam_id" json:"exam_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Score      float64   `db:"score" json:"score"`
	GradeLabel *string   `db:"grade_label" json:"grade_label,omitempty"`
	RecordedBy string    `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ExamResultDetail extends ExamResult with exam/student labels.
type ExamResultDetail struct {
	ExamResult
	ExamTitle   string `db:"exam_title" json:"exam_title"`
	StudentName string `db:"student_name" json:"student_name"`
	CourseID    string `db:"course_id" json:"course_id"`
}
