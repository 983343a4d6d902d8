package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/ucms-api/internal/models"
)

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	courseTime := "Mon 10:00-11:30"
	rows := sqlmock.NewRows([]string{"id", "code", "title", "description", "instructor_id", "course_time", "location", "image_url", "capacity", "created_at", "updated_at"}).
		AddRow("course-1", "CS101", "Intro to CS", nil, "inst-1", courseTime, "B-204", nil, 30, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, code, title, description, instructor_id, course_time, location, image_url, capacity, created_at, updated_at FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, "CS101", course.Code)
	require.NotNil(t, course.CourseTime)
	require.Equal(t, courseTime, *course.CourseTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM courses WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	course, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.Nil(t, course)
}

func TestCourseRepositoryListMeetingsByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"course_id", "title", "course_time", "location"}).
		AddRow("course-1", "Algorithms", "Tue 09:00-10:30", "A-101").
		AddRow("course-2", "Databases", nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.id AS course_id, c.title, c.course_time, c.location FROM courses c JOIN enrollments e ON e.course_id = c.id WHERE e.student_id = $1 AND e.status = 'ACTIVE'")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	meetings, err := repo.ListMeetingsByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, meetings, 2)
	require.Nil(t, meetings[1].CourseTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{"submissions", "assignments", "materials", "grades", "attendance", "exam_results", "exams", "announcements", "enrollments", "courses"} {
		mock.ExpectExec("DELETE FROM " + table).
			WithArgs("course-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.DeleteCascade(context.Background(), "course-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteCascadeRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM submissions").
		WithArgs("course-1").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.DeleteCascade(context.Background(), "course-1")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WillReturnResult(sqlmock.NewResult(0, 1))

	course := &models.Course{Code: "CS101", Title: "Intro to CS", InstructorID: "inst-1", Capacity: 30}
	err := repo.Create(context.Background(), course)
	require.NoError(t, err)
	require.NotEmpty(t, course.ID)
	require.False(t, course.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
