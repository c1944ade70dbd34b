// Package middleware authenticates merchant staff requests.
package middleware

import (
	"net/http"
	"strings"

	"github.com/qerbie/qerbie-backend/internal/auth/jwt"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// AccessCookie carries the access token for browser sessions
const AccessCookie = "qerbie_access"

// Authenticate validates the access token from the Authorization header
// (or the access cookie) and puts the user into the request context as the actor.
func Authenticate(manager *jwt.Manager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				httputil.ErrorLocalized(w, r, err)
				return
			}

			claims, err := manager.ValidateAccessToken(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				httputil.ErrorLocalized(w, r, err)
				return
			}

			ctx := actor.WithActor(r.Context(), &actor.Actor{
				ID:       claims.UserID,
				FullName: claims.Name,
				Email:    claims.Email,
			})
			httputil.Annotate(ctx, "user_id", claims.UserID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.Unauthorized("invalid authorization header format")
		}
		return parts[1], nil
	}

	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}

	return "", errors.Unauthorized("missing authorization header")
}
