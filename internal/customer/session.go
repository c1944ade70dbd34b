// Package customer identifies anonymous customers across requests with a random cookie.
// The cookie is a correlation key for "my ticket", "my order" and "my booking", not an identity.
package customer

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"regexp"
	"time"

	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
)

// DefaultCookieName is the customer session cookie
const DefaultCookieName = "qerbie_cs"

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

type contextKey string

const sessionKey contextKey = "customer_session"

// Session is the customer session of the current request
type Session struct {
	// Token is the raw cookie value; it never leaves the customer's browser otherwise
	Token string
	// Hash is the sha256 of Token and is what rows store in customer_session
	Hash string
	// Issued is true when the cookie was created by this request
	Issued bool
}

// Options configures the session cookie
type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// NewToken returns a fresh session token: 32 random bytes in unpadded base64url
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the stored form of a session token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Middleware makes sure every request carries a customer session, issuing the cookie when it
// is missing or malformed
func Middleware(opts Options) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 365 * 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var s Session
			if c, err := r.Cookie(opts.CookieName); err == nil && tokenRe.MatchString(c.Value) {
				s.Token = c.Value
			} else {
				token, err := NewToken()
				if err != nil {
					httputil.ErrorLocalized(w, r, errors.Internal("failed to create customer session"))
					return
				}
				s.Token = token
				s.Issued = true
				http.SetCookie(w, &http.Cookie{
					Name:     opts.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(opts.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			s.Hash = HashToken(s.Token)

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), &s)))
		})
	}
}

// WithSession stores a session in ctx
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session of the request, or nil outside Middleware
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// HashFromContext returns the stored form of the request's session, or "" outside Middleware
func HashFromContext(ctx context.Context) string {
	if s := FromContext(ctx); s != nil {
		return s.Hash
	}
	return ""
}
