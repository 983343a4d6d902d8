package models

import "time"

// Assignment represents coursework published for a course.
type Assignment struct {
	ID          string     `db:"id" json:"id"`
	CourseID    string     `db:"course_id" json:"course_id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	MaxScore    float64    `db:"max_score" json:"max_score"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// SubmissionStatus tracks grading state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionStatusGraded    SubmissionStatus = "GRADED"
)

// Submission is a student's answer to an assignment. One submission per
// student per assignment; re-submitting replaces the previous one.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Content      *string          `db:"content" json:"content,omitempty"`
	FilePath     *string          `db:"file_path" json:"file_path,omitempty"`
	FileName     *string          `db:"file_name" json:"file_name,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Score        *float64         `db:"score" json:"score,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
}

// SubmissionDetail extends Submission with student metadata.
type SubmissionDetail struct {
	Submission
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}
