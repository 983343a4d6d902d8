package models

import "time"

// Announcement is a notice posted campus-wide or scoped to one course.
// A nil CourseID means the announcement is visible to everyone.
type Announcement struct {
	ID        string    `db:"id" json:"id"`
	CourseID  *string   `db:"course_id" json:"course_id,omitempty"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	PostedBy  string    `db:"posted_by" json:"posted_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AnnouncementDetail adds author metadata.
type AnnouncementDetail struct {
	Announcement
	AuthorName  string  `db:"author_name" json:"author_name"`
	CourseTitle *string `db:"course_title" json:"course_title,omitempty"`
}

// AnnouncementFilter captures listing criteria.
type AnnouncementFilter struct {
	CourseID  string
	Campus    bool
	Page      int
	PageSize  int
	SortOrder string
}
