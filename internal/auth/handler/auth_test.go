package handler

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/qerbie/qerbie-backend/internal/auth/jwt"
	"github.com/qerbie/qerbie-backend/internal/auth/service"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Signup(ctx context.Context, req *service.SignupRequest) (*service.UserInfo, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UserInfo), args.Error(1)
}

func (m *mockService) Login(ctx context.Context, req *service.LoginRequest, userAgent, ipAddress string) (*service.LoginResponse, error) {
	args := m.Called(ctx, req, userAgent, ipAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResponse), args.Error(1)
}

func (m *mockService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwt.TokenPair), args.Error(1)
}

func (m *mockService) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockService) Me(ctx context.Context, userID string) (*service.UserInfo, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UserInfo), args.Error(1)
}

func newHandler() (*AuthHandler, *mockService) {
	svc := &mockService{}
	return NewAuthHandler(svc, Options{PublicBaseURL: "https://app.qerbie.test", RefreshExpiry: time.Hour}, logger.Nop()), svc
}

func TestSignup_ValidationError(t *testing.T) {
	h, svc := newHandler()

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/signup", map[string]string{"email": "nope"})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Signup), req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "VALIDATION_ERROR")
	svc.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
}

func TestLogin_JSONSetsCookies(t *testing.T) {
	h, svc := newHandler()
	svc.On("Login", mock.Anything, &service.LoginRequest{Email: "ana@example.com", Password: "pw"}, mock.Anything, mock.Anything).
		Return(&service.LoginResponse{AccessToken: "acc", RefreshToken: "ref", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Minute)}, nil)

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ana@example.com", "password": "pw"})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Login), req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"access_token":"acc"`)
	cookies := rr.Result().Cookies()
	names := []string{}
	for _, c := range cookies {
		names = append(names, c.Name)
		assert.True(t, c.HttpOnly)
	}
	assert.ElementsMatch(t, []string{"qerbie_access", "qerbie_refresh"}, names)
}

func TestLogin_FormFailureRedirectsWithCode(t *testing.T) {
	h, svc := newHandler()
	svc.On("Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.InvalidCredentials())

	req := testutil.NewFormRequest("/api/v1/auth/login", url.Values{"email": {"ana@example.com"}, "password": {"bad"}})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Login), req)

	testutil.AssertStatus(t, rr, http.StatusSeeOther)
	assert.Equal(t, "https://app.qerbie.test/login?error=INVALID_CREDENTIALS", rr.Header().Get("Location"))
}

func TestRefresh_FromCookie(t *testing.T) {
	h, svc := newHandler()
	svc.On("Refresh", mock.Anything, "cookie-token").Return(&jwt.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil)

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: "cookie-token"})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Refresh), req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	svc.AssertExpectations(t)
}

func TestRefresh_MissingToken(t *testing.T) {
	h, _ := newHandler()

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Refresh), req)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "VALIDATION_ERROR")
}

func TestLogout_ClearsCookies(t *testing.T) {
	h, svc := newHandler()
	svc.On("Logout", mock.Anything, "ref").Return(nil)

	req := testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/logout", map[string]string{"refresh_token": "ref"})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Logout), req)

	testutil.AssertStatus(t, rr, http.StatusNoContent)
	for _, c := range rr.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge)
	}
	svc.AssertExpectations(t)
}

func TestMe(t *testing.T) {
	h, svc := newHandler()
	svc.On("Me", mock.Anything, "u-1").Return(&service.UserInfo{ID: "u-1", Email: "ana@example.com"}, nil)

	req := testutil.WithActor(testutil.NewHTTPRequest(http.MethodGet, "/api/v1/auth/me", nil), &actor.Actor{ID: "u-1"})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Me), req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, "ana@example.com")
}
