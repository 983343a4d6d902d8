package models

import "time"

// StudentDashboard summarises a student's standing for the landing view.
type StudentDashboard struct {
	EnrolledCourses    int                  `json:"enrolled_courses"`
	PendingAssignments int                  `json:"pending_assignments"`
	UpcomingExams      []Exam               `json:"upcoming_exams"`
	RecentGrades       []GradeDetail        `json:"recent_grades"`
	Announcements      []AnnouncementDetail `json:"announcements"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// InstructorDashboard summarises an instructor's teaching load.
type InstructorDashboard struct {
	Courses             int                  `json:"courses"`
	TotalStudents       int                  `json:"total_students"`
	UngradedSubmissions int                  `json:"ungraded_submissions"`
	UpcomingExams       []Exam               `json:"upcoming_exams"`
	Announcements       []AnnouncementDetail `json:"announcements"`
	GeneratedAt         time.Time            `json:"generated_at"`
}

// AdminDashboard aggregates campus-wide totals.
type AdminDashboard struct {
	TotalUsers       int       `json:"total_users"`
	TotalStudents    int       `json:"total_students"`
	TotalInstructors int       `json:"total_instructors"`
	TotalCourses     int       `json:"total_courses"`
	TotalEnrollments int       `json:"total_enrollments"`
	RecentUsers      []User    `json:"recent_users"`
	GeneratedAt      time.Time `json:"generated_at"`
}
