package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/qerbie/qerbie-backend/internal/auth/jwt"
	"github.com/qerbie/qerbie-backend/internal/auth/password"
	"github.com/qerbie/qerbie-backend/internal/auth/repository"
	"github.com/qerbie/qerbie-backend/internal/auth/service"
	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Create(ctx context.Context, email, passwordHash, fullName string) (*repository.User, error) {
	args := m.Called(ctx, email, passwordHash, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*repository.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *mockUsers) TouchLogin(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) CreateWithID(ctx context.Context, id, userID, refreshToken string, expiresAt time.Time, userAgent, ipAddress string) (*repository.Session, error) {
	args := m.Called(ctx, id, userID, refreshToken, expiresAt, userAgent, ipAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Session), args.Error(1)
}

func (m *mockSessions) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*repository.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Session), args.Error(1)
}

func (m *mockSessions) Rotate(ctx context.Context, id, newRefreshToken string, expiresAt time.Time) error {
	return m.Called(ctx, id, newRefreshToken, expiresAt).Error(0)
}

func (m *mockSessions) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockSessions) CleanExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newService(t *testing.T) (*service.AuthService, *mockUsers, *mockSessions, *jwt.Manager) {
	t.Helper()
	users := &mockUsers{}
	sessions := &mockSessions{}
	manager := jwt.NewManager(&config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "qerbie",
	})
	return service.NewAuthService(users, sessions, manager, logger.Nop()), users, sessions, manager
}

func activeUser(t *testing.T, pw string) *repository.User {
	t.Helper()
	hash, err := password.Hash(pw)
	require.NoError(t, err)
	return &repository.User{ID: "u-1", Email: "ana@example.com", PasswordHash: hash, FullName: "Ana", IsActive: true}
}

func TestSignup_HashesPassword(t *testing.T) {
	svc, users, _, _ := newService(t)

	users.On("Create", mock.Anything, "ana@example.com", mock.MatchedBy(func(hash string) bool {
		ok, err := password.Verify("s3cret-pass", hash)
		return err == nil && ok
	}), "Ana").Return(&repository.User{ID: "u-1", Email: "ana@example.com", FullName: "Ana"}, nil)

	info, err := svc.Signup(context.Background(), &service.SignupRequest{
		Email: "ana@example.com", Password: "s3cret-pass", FullName: "Ana",
	})

	require.NoError(t, err)
	assert.Equal(t, "u-1", info.ID)
	users.AssertExpectations(t)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, users, _, _ := newService(t)
	users.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.Conflict("an account with this email already exists"))

	_, err := svc.Signup(context.Background(), &service.SignupRequest{Email: "a@b.co", Password: "password1", FullName: "A"})

	assert.Equal(t, "CONFLICT", errors.CodeOf(err))
}

func TestLogin_Success(t *testing.T) {
	svc, users, sessions, manager := newService(t)
	user := activeUser(t, "s3cret-pass")

	users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)
	users.On("TouchLogin", mock.Anything, "u-1").Return(nil)
	sessions.On("CreateWithID", mock.Anything, mock.AnythingOfType("string"), "u-1", mock.AnythingOfType("string"),
		mock.AnythingOfType("time.Time"), "curl/8", "10.0.0.1").Return(&repository.Session{}, nil)

	resp, err := svc.Login(context.Background(), &service.LoginRequest{Email: "ana@example.com", Password: "s3cret-pass"}, "curl/8", "10.0.0.1")

	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", resp.User.Email)
	claims, err := manager.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	sessions.AssertExpectations(t)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	svc, users, _, _ := newService(t)
	users.On("GetByEmail", mock.Anything, "ana@example.com").Return(activeUser(t, "right"), nil)
	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, sql.ErrNoRows)

	_, err := svc.Login(context.Background(), &service.LoginRequest{Email: "ana@example.com", Password: "wrong"}, "", "")
	assert.Equal(t, "INVALID_CREDENTIALS", errors.CodeOf(err))

	_, err = svc.Login(context.Background(), &service.LoginRequest{Email: "ghost@example.com", Password: "wrong"}, "", "")
	assert.Equal(t, "INVALID_CREDENTIALS", errors.CodeOf(err))
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, users, _, _ := newService(t)
	user := activeUser(t, "pw-123456")
	user.IsActive = false
	users.On("GetByEmail", mock.Anything, "ana@example.com").Return(user, nil)

	_, err := svc.Login(context.Background(), &service.LoginRequest{Email: "ana@example.com", Password: "pw-123456"}, "", "")

	assert.Equal(t, "INVALID_CREDENTIALS", errors.CodeOf(err))
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, users, sessions, manager := newService(t)
	pair, err := manager.GenerateTokenPair(&jwt.UserInfo{ID: "u-1"}, "s-1")
	require.NoError(t, err)

	sessions.On("GetActiveByRefreshToken", mock.Anything, pair.RefreshToken).
		Return(&repository.Session{ID: "s-1", UserID: "u-1"}, nil)
	users.On("GetByID", mock.Anything, "u-1").Return(activeUser(t, "x"), nil)
	sessions.On("Rotate", mock.Anything, "s-1", mock.MatchedBy(func(tok string) bool { return tok != pair.RefreshToken }),
		mock.AnythingOfType("time.Time")).Return(nil)

	next, err := svc.Refresh(context.Background(), pair.RefreshToken)

	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	sessions.AssertExpectations(t)
}

func TestRefresh_RevokedSession(t *testing.T) {
	svc, _, sessions, manager := newService(t)
	pair, err := manager.GenerateTokenPair(&jwt.UserInfo{ID: "u-1"}, "s-1")
	require.NoError(t, err)
	sessions.On("GetActiveByRefreshToken", mock.Anything, pair.RefreshToken).Return(nil, sql.ErrNoRows)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)

	assert.Equal(t, "UNAUTHORIZED", errors.CodeOf(err))
}

func TestRefresh_SessionMismatch(t *testing.T) {
	svc, _, sessions, manager := newService(t)
	pair, err := manager.GenerateTokenPair(&jwt.UserInfo{ID: "u-1"}, "s-1")
	require.NoError(t, err)
	sessions.On("GetActiveByRefreshToken", mock.Anything, pair.RefreshToken).
		Return(&repository.Session{ID: "s-other", UserID: "u-1"}, nil)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)

	assert.Equal(t, "UNAUTHORIZED", errors.CodeOf(err))
}

func TestLogout_IgnoresEmptyToken(t *testing.T) {
	svc, _, sessions, _ := newService(t)

	require.NoError(t, svc.Logout(context.Background(), ""))
	sessions.AssertNotCalled(t, "RevokeByRefreshToken", mock.Anything, mock.Anything)
}

func TestMe_NotFound(t *testing.T) {
	svc, users, _, _ := newService(t)
	users.On("GetByID", mock.Anything, "u-404").Return(nil, sql.ErrNoRows)

	_, err := svc.Me(context.Background(), "u-404")

	assert.Equal(t, "NOT_FOUND", errors.CodeOf(err))
}
