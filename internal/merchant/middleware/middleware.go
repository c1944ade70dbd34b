// Package middleware scopes merchant routes to the authenticated member.
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/permissions"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// MembershipLoader resolves the membership of a user in a merchant
type MembershipLoader interface {
	Membership(ctx context.Context, merchantID, userID string) (*domain.Membership, error)
}

// Member resolves {merchantID} from the path, loads the actor's membership and
// stores the merchant and effective permissions in the request context.
// Non-members get 403.
func Member(loader MembershipLoader, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := actor.FromContext(r.Context())
			if a == nil {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("not authenticated"))
				return
			}

			merchantID := chi.URLParam(r, "merchantID")
			if _, err := uuid.Parse(merchantID); err != nil {
				httputil.ErrorLocalized(w, r, errors.NotFoundWithKey("merchant"))
				return
			}

			ms, err := loader.Membership(r.Context(), merchantID, a.ID)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					httputil.ErrorLocalized(w, r, errors.Forbidden("not a member of this merchant"))
					return
				}
				log.Error().Err(err).Str("merchant_id", merchantID).Msg("failed to load membership")
				httputil.ErrorLocalized(w, r, err)
				return
			}

			ctx := tenant.WithMerchant(r.Context(), tenant.Merchant{
				ID:           ms.Merchant.ID,
				Slug:         ms.Merchant.Slug,
				Name:         ms.Merchant.Name,
				BusinessType: ms.Merchant.BusinessType,
				Timezone:     ms.Merchant.Timezone,
			})
			ctx = tenant.WithPermissions(ctx, ms.Permissions)
			httputil.Annotate(ctx, "merchant_id", ms.Merchant.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission rejects members lacking the permission with 403
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !permissions.HasPermission(tenant.Permissions(r.Context()), permission) {
				httputil.ErrorLocalized(w, r, errors.Forbidden("missing permission "+permission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
