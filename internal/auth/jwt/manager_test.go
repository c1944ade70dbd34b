package jwt

import (
	"testing"
	"time"

	"github.com/qerbie/qerbie-backend/pkg/config"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		Secret:        "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "qerbie",
	}
}

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager(testConfig())
	user := &UserInfo{ID: "u-1", Email: "ana@example.com", Name: "Ana"}

	pair, err := m.GenerateTokenPair(user, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)

	refresh, err := m.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "s-1", refresh.SessionID)
}

func TestValidate_Expired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessExpiry = -time.Minute
	m := NewManager(cfg)

	pair, err := m.GenerateTokenPair(&UserInfo{ID: "u-1"}, "s-1")
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.AccessToken)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TOKEN_EXPIRED", appErr.Code)
}

func TestValidate_WrongSecretOrIssuer(t *testing.T) {
	pair, err := NewManager(testConfig()).GenerateTokenPair(&UserInfo{ID: "u-1"}, "s-1")
	require.NoError(t, err)

	other := testConfig()
	other.Secret = "another-secret"
	_, err = NewManager(other).ValidateAccessToken(pair.AccessToken)
	assert.Equal(t, "TOKEN_INVALID", errors.CodeOf(err))

	other = testConfig()
	other.Issuer = "someone-else"
	_, err = NewManager(other).ValidateAccessToken(pair.AccessToken)
	assert.Equal(t, "TOKEN_INVALID", errors.CodeOf(err))
}

func TestValidateRefreshToken_RejectsAccessToken(t *testing.T) {
	m := NewManager(testConfig())
	pair, err := m.GenerateTokenPair(&UserInfo{ID: "u-1"}, "s-1")
	require.NoError(t, err)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.Equal(t, "TOKEN_INVALID", errors.CodeOf(err))
}
