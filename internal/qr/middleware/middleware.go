// Package middleware scopes public customer routes to the merchant behind a scanned QR token.
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qerbie/qerbie-backend/internal/qr/domain"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

type contextKey string

const resolutionKey contextKey = "qr_resolution"

// Resolver resolves tokens
type Resolver interface {
	Resolve(ctx context.Context, token string) (*domain.Resolution, error)
}

// Token resolves the {token} path parameter and scopes the request to its merchant
func Token(resolver Resolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := resolver.Resolve(r.Context(), chi.URLParam(r, "token"))
			if err != nil {
				if !errors.Is(err, errors.ErrQRTokenInvalid) {
					log.Error().Err(err).Msg("failed to resolve qr token")
				}
				httputil.ErrorLocalized(w, r, err)
				return
			}

			ctx := tenant.WithMerchant(r.Context(), tenant.Merchant{
				ID:           res.Merchant.ID,
				Slug:         res.Merchant.Slug,
				Name:         res.Merchant.Name,
				BusinessType: res.Merchant.BusinessType,
				Timezone:     res.Merchant.Timezone,
			})
			ctx = WithResolution(ctx, res)
			httputil.Annotate(ctx, "merchant_id", res.Merchant.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireKind rejects tokens of any other kind as if they did not exist
func RequireKind(kind string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := FromContext(r.Context())
			if res == nil || res.Kind != kind {
				httputil.ErrorLocalized(w, r, errors.QRTokenInvalid())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the resolution stored by Token, or nil
func FromContext(ctx context.Context) *domain.Resolution {
	res, _ := ctx.Value(resolutionKey).(*domain.Resolution)
	return res
}

// WithResolution stores a resolution in ctx
func WithResolution(ctx context.Context, res *domain.Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, res)
}
