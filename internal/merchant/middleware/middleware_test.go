package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/permissions"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
	"github.com/qerbie/qerbie-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

const merchantID = "8a4f2f51-8c3e-4d55-9a43-3c1f0f1b2a10"

type loaderFunc func(ctx context.Context, merchantID, userID string) (*domain.Membership, error)

func (f loaderFunc) Membership(ctx context.Context, merchantID, userID string) (*domain.Membership, error) {
	return f(ctx, merchantID, userID)
}

func request(merchant string, a *actor.Actor) *http.Request {
	req := testutil.NewHTTPRequest(http.MethodGet, "/api/v1/merchants/"+merchant+"/queues", nil)
	req = testutil.WithURLParams(req, map[string]string{"merchantID": merchant})
	if a != nil {
		req = testutil.WithActor(req, a)
	}
	return req
}

func TestMember_StoresScope(t *testing.T) {
	loader := loaderFunc(func(ctx context.Context, mID, userID string) (*domain.Membership, error) {
		return &domain.Membership{
			Merchant:    domain.Merchant{ID: mID, Slug: "cafe", BusinessType: domain.BusinessRestaurant, Timezone: "America/Sao_Paulo"},
			Role:        permissions.RoleStaff,
			Permissions: permissions.Effective(permissions.RoleStaff, nil),
		}, nil
	})

	var scoped tenant.Merchant
	var perms []string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped, _ = tenant.FromContext(r.Context())
		perms = tenant.Permissions(r.Context())
	})

	rr := testutil.ExecuteRequest(Member(loader, logger.Nop())(next), request(merchantID, &actor.Actor{ID: "u-1"}))

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "cafe", scoped.Slug)
	assert.Equal(t, "America/Sao_Paulo", scoped.Timezone)
	assert.Contains(t, perms, "queues.operate")
}

func TestMember_NonMemberForbidden(t *testing.T) {
	loader := loaderFunc(func(ctx context.Context, mID, userID string) (*domain.Membership, error) {
		return nil, errors.NotFoundWithKey("member")
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("must not be called") })

	rr := testutil.ExecuteRequest(Member(loader, logger.Nop())(next), request(merchantID, &actor.Actor{ID: "u-1"}))

	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertErrorCode(t, rr, "FORBIDDEN")
}

func TestMember_InvalidIDAndAnonymous(t *testing.T) {
	loader := loaderFunc(func(ctx context.Context, mID, userID string) (*domain.Membership, error) {
		t.Fatal("loader must not be called")
		return nil, nil
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := Member(loader, logger.Nop())(next)

	rr := testutil.ExecuteRequest(h, request("not-a-uuid", &actor.Actor{ID: "u-1"}))
	testutil.AssertStatus(t, rr, http.StatusNotFound)

	rr = testutil.ExecuteRequest(h, request(merchantID, nil))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestRequirePermission(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequirePermission("orders.cancel")(next)
	m := tenant.Merchant{ID: merchantID}

	rr := testutil.ExecuteRequest(h, testutil.WithMerchant(request(merchantID, nil), m, permissions.Effective(permissions.RoleStaff, nil)...))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = testutil.ExecuteRequest(h, testutil.WithMerchant(request(merchantID, nil), m, "orders.*"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}
