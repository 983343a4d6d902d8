package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/opencampus/ucms-api/internal/models"
	appErrors "github.com/opencampus/ucms-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail       *models.User
	userByID          *models.User
	findByEmailErr    error
	findByIDErr       error
	refreshTokens     map[string]*models.RefreshToken
	revokedIDs        []string
	updatePasswordErr error
	auditLogs         []*models.AuditLog
	lastLoginUpdated  bool
	userTokensRevoked bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.userTokensRevoked = true
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedIDs = append(m.revokedIDs, id)
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "ucms-api",
	}
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:           "user-1",
		Email:        "jordan@example.edu",
		PasswordHash: string(hash),
		FullName:     "Jordan Lee",
		Role:         models.RoleStudent,
		Active:       true,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "secret-pass")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "jordan@example.edu", Password: "secret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "user-1", resp.User.ID)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "secret-pass")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "jordan@example.edu", Password: "wrong"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.edu", Password: "whatever"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	user := activeUser(t, "secret-pass")
	user.Active = false
	repo := &mockAuthRepo{userByEmail: user}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "jordan@example.edu", Password: "secret-pass"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "secret-pass")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "jordan@example.edu", Password: "secret-pass"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// Old token is revoked; replaying it must fail.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceRefreshExpiredToken(t *testing.T) {
	repo := &mockAuthRepo{
		userByID: activeUser(t, "secret-pass"),
		refreshTokens: map[string]*models.RefreshToken{
			"stale": {ID: "rt-1", UserID: "user-1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceLogoutOtherUsersToken(t *testing.T) {
	repo := &mockAuthRepo{
		refreshTokens: map[string]*models.RefreshToken{
			"tok": {ID: "rt-1", UserID: "user-1", Token: "tok", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.Logout(context.Background(), "tok", "someone-else")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "old-password")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "brand-new-password",
	})
	require.NoError(t, err)
	assert.True(t, repo.userTokensRevoked)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.userByEmail.PasswordHash), []byte("brand-new-password")))
}

func TestAuthServiceChangePasswordTooShort(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "old-password")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		OldPassword: "old-password",
		NewPassword: "short",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: activeUser(t, "secret-pass")}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "jordan@example.edu", Password: "secret-pass"})
	require.NoError(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
