package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/auth/jwt"
	"github.com/qerbie/qerbie-backend/internal/auth/password"
	"github.com/qerbie/qerbie-backend/internal/auth/repository"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// UserStore is the user persistence the auth service needs
type UserStore interface {
	Create(ctx context.Context, email, passwordHash, fullName string) (*repository.User, error)
	GetByEmail(ctx context.Context, email string) (*repository.User, error)
	GetByID(ctx context.Context, id string) (*repository.User, error)
	TouchLogin(ctx context.Context, id string) error
}

// SessionStore is the refresh session persistence the auth service needs
type SessionStore interface {
	CreateWithID(ctx context.Context, id, userID, refreshToken string, expiresAt time.Time, userAgent, ipAddress string) (*repository.Session, error)
	GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*repository.Session, error)
	Rotate(ctx context.Context, id, newRefreshToken string, expiresAt time.Time) error
	RevokeByRefreshToken(ctx context.Context, refreshToken string) error
	CleanExpired(ctx context.Context) (int64, error)
}

// AuthService handles authentication logic
type AuthService struct {
	users      UserStore
	sessions   SessionStore
	jwtManager *jwt.Manager
	logger     *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, sessions SessionStore, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		jwtManager: jwtManager,
		logger:     log,
	}
}

// SignupRequest represents a signup request
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
	User         *UserInfo `json:"user"`
}

// UserInfo represents user information
type UserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func toUserInfo(u *repository.User) *UserInfo {
	return &UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

// Signup creates a staff account
func (s *AuthService) Signup(ctx context.Context, req *SignupRequest) (*UserInfo, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	user, err := s.users.Create(ctx, req.Email, hash, req.FullName)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user signed up")
	return toUserInfo(user), nil
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, userAgent, ipAddress string) (*LoginResponse, error) {
	user, err := s.validateCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	tokens, err := s.jwtManager.GenerateTokenPair(&jwt.UserInfo{ID: user.ID, Email: user.Email, Name: user.FullName}, sessionID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	expiresAt := time.Now().Add(s.jwtManager.GetRefreshExpiry())
	log := s.logger.WithUserID(user.ID)
	if _, err := s.sessions.CreateWithID(ctx, sessionID, user.ID, tokens.RefreshToken, expiresAt, userAgent, ipAddress); err != nil {
		log.Error().Err(err).Msg("failed to create session")
		return nil, errors.Internal("failed to create session")
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Msg("failed to record login")
	}

	return &LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		TokenType:    tokens.TokenType,
		User:         toUserInfo(user),
	}, nil
}

// Logout invalidates a session. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.sessions.RevokeByRefreshToken(ctx, refreshToken); err != nil {
		s.logger.Warn().Err(err).Msg("failed to revoke session")
	}
	return nil
}

// Refresh issues a new token pair and rotates the session's refresh token
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetActiveByRefreshToken(ctx, refreshToken)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.Unauthorized("invalid session")
		}
		return nil, err
	}
	if session.ID != claims.SessionID || session.UserID != claims.UserID {
		return nil, errors.Unauthorized("invalid session")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.Unauthorized("invalid session")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.Unauthorized("account disabled")
	}

	tokens, err := s.jwtManager.GenerateTokenPair(&jwt.UserInfo{ID: user.ID, Email: user.Email, Name: user.FullName}, session.ID)
	if err != nil {
		return nil, errors.Internal("failed to generate tokens")
	}

	if err := s.sessions.Rotate(ctx, session.ID, tokens.RefreshToken, time.Now().Add(s.jwtManager.GetRefreshExpiry())); err != nil {
		return nil, err
	}

	return tokens, nil
}

// Me returns the current user
func (s *AuthService) Me(ctx context.Context, userID string) (*UserInfo, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.NotFoundWithKey("user")
		}
		return nil, err
	}
	return toUserInfo(user), nil
}

// CleanupExpiredSessions deletes expired and revoked refresh sessions
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.CleanExpired(ctx)
}

// validateCredentials checks the password against the stored hash.
// Unknown emails and wrong passwords produce the same error.
func (s *AuthService) validateCredentials(ctx context.Context, email, pw string) (*repository.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}

	ok, err := password.Verify(pw, user.PasswordHash)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash is malformed")
		return nil, errors.InvalidCredentials()
	}
	if !ok || !user.IsActive {
		return nil, errors.InvalidCredentials()
	}
	return user, nil
}
