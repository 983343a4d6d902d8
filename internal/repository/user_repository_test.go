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

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "department", "avatar_url", "active", "last_login", "created_at", "updated_at"}).
		AddRow("user-1", "dean@campus.edu", "$2a$10$hash", "Dean Winters", models.RoleAdmin, nil, nil, true, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, role, department, avatar_url, active, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("dean@campus.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "dean@campus.edu")
	require.NoError(t, err)
	require.Equal(t, "Dean Winters", user.FullName)
	require.Equal(t, models.RoleAdmin, user.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("nobody@campus.edu").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.FindByEmail(context.Background(), "nobody@campus.edu")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.Nil(t, user)
}

func TestUserRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Email: "new@campus.edu", PasswordHash: "hash", FullName: "New User", Role: models.RoleStudent, Active: true}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := repo.RevokeUserRefreshTokens(context.Background(), "user-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateAuditLogDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &models.AuditLog{Action: "LOGIN", Resource: "auth"}
	err := repo.CreateAuditLog(context.Background(), log)
	require.NoError(t, err)
	require.NotEmpty(t, log.ID)
	require.False(t, log.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
