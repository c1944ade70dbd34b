package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qerbie/qerbie-backend/pkg/database"
)

// Session represents a refresh session of a user
type Session struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	RefreshTokenHash string     `db:"refresh_token_hash"`
	UserAgent        *string    `db:"user_agent"`
	IPAddress        *string    `db:"ip_address"`
	ExpiresAt        time.Time  `db:"expires_at"`
	CreatedAt        time.Time  `db:"created_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
}

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at, revoked_at`

// SessionRepository handles session persistence
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateWithID creates a new session with a specific ID.
// Only the sha256 of the refresh token is stored.
func (r *SessionRepository) CreateWithID(ctx context.Context, id, userID, refreshToken string, expiresAt time.Time, userAgent, ipAddress string) (*Session, error) {
	session := &Session{
		ID:               id,
		UserID:           userID,
		RefreshTokenHash: HashToken(refreshToken),
		UserAgent:        nullable(userAgent),
		IPAddress:        nullable(ipAddress),
		ExpiresAt:        expiresAt,
		CreatedAt:        time.Now().UTC(),
	}

	query := `
		INSERT INTO auth_sessions (id, user_id, refresh_token_hash, user_agent, ip_address, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Conn(ctx).ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// GetActiveByRefreshToken gets an unrevoked, unexpired session by refresh token
func (r *SessionRepository) GetActiveByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	var session Session
	query := `
		SELECT ` + sessionColumns + `
		FROM auth_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > NOW()
	`
	if err := sqlx.GetContext(ctx, r.db.Conn(ctx), &session, query, HashToken(refreshToken)); err != nil {
		return nil, err
	}
	return &session, nil
}

// Rotate swaps the refresh token of a session (used on refresh so old tokens stop working)
func (r *SessionRepository) Rotate(ctx context.Context, id, newRefreshToken string, expiresAt time.Time) error {
	query := `UPDATE auth_sessions SET refresh_token_hash = $1, expires_at = $2 WHERE id = $3 AND revoked_at IS NULL`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, HashToken(newRefreshToken), expiresAt, id)
	return err
}

// RevokeByRefreshToken revokes a session by refresh token
func (r *SessionRepository) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	query := `UPDATE auth_sessions SET revoked_at = NOW() WHERE refresh_token_hash = $1 AND revoked_at IS NULL`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, HashToken(refreshToken))
	return err
}

// RevokeAllForUser revokes all sessions for a user
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `UPDATE auth_sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := r.db.Conn(ctx).ExecContext(ctx, query, userID)
	return err
}

// CleanExpired removes expired and revoked sessions and returns how many were deleted
func (r *SessionRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at < NOW() OR revoked_at IS NOT NULL`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HashToken returns the hex sha256 of a token
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
