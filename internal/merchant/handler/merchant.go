package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/internal/merchant/service"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Service is the merchant behaviour the handler exposes
type Service interface {
	Create(ctx context.Context, ownerID string, req *service.CreateMerchantRequest) (*domain.Merchant, error)
	ListForUser(ctx context.Context, userID string) ([]domain.MerchantWithRole, error)
	Get(ctx context.Context, merchantID string) (*domain.Merchant, error)
	Update(ctx context.Context, merchantID string, req *service.UpdateMerchantRequest) (*domain.Merchant, error)
	ListMembers(ctx context.Context, merchantID string) ([]domain.Member, error)
	AddMember(ctx context.Context, merchantID, actorID string, req *service.AddMemberRequest) (*domain.Member, error)
	UpdateMember(ctx context.Context, merchantID, memberID string, req *service.UpdateMemberRequest) (*domain.Member, error)
	RemoveMember(ctx context.Context, merchantID, memberID, actorID string) error
}

// MerchantHandler handles merchant and member endpoints
type MerchantHandler struct {
	service Service
	baseURL string
	logger  *logger.Logger
}

// NewMerchantHandler creates a new merchant handler
func NewMerchantHandler(svc Service, publicBaseURL string, log *logger.Logger) *MerchantHandler {
	return &MerchantHandler{
		service: svc,
		baseURL: publicBaseURL,
		logger:  log,
	}
}

func (h *MerchantHandler) target(returnPath string) httputil.ActionTarget {
	return httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: returnPath}
}

// List lists the caller's merchants
func (h *MerchantHandler) List(w http.ResponseWriter, r *http.Request) {
	a := actor.MustFromContext(r.Context())

	merchants, err := h.service.ListForUser(r.Context(), a.ID)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, merchants)
}

// Create creates a merchant owned by the caller
func (h *MerchantHandler) Create(w http.ResponseWriter, r *http.Request) {
	a := actor.MustFromContext(r.Context())
	target := h.target("/merchants/new")

	var req service.CreateMerchantRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	m, err := h.service.Create(r.Context(), a.ID, &req)
	if err == nil {
		target.SuccessPath = "/merchants/" + m.ID
	}
	httputil.RespondAction(w, r, target, http.StatusCreated, m, err)
}

// Get returns the scoped merchant
func (h *MerchantHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), tenant.MustMerchantID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, m)
}

// Update updates the scoped merchant's settings
func (h *MerchantHandler) Update(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.target("/merchants/" + merchantID + "/settings")

	var req service.UpdateMerchantRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	m, err := h.service.Update(r.Context(), merchantID, &req)
	httputil.RespondAction(w, r, target, http.StatusOK, m, err)
}

// ListMembers lists the members of the scoped merchant
func (h *MerchantHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context(), tenant.MustMerchantID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, members)
}

// AddMember adds an existing account to the scoped merchant
func (h *MerchantHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.target("/merchants/" + merchantID + "/members")

	var req service.AddMemberRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	member, err := h.service.AddMember(r.Context(), merchantID, actor.MustFromContext(r.Context()).ID, &req)
	httputil.RespondAction(w, r, target, http.StatusCreated, member, err)
}

// UpdateMember changes a member's role and extra permissions
func (h *MerchantHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.target("/merchants/" + merchantID + "/members")

	var req service.UpdateMemberRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	member, err := h.service.UpdateMember(r.Context(), merchantID, chi.URLParam(r, "memberID"), &req)
	httputil.RespondAction(w, r, target, http.StatusOK, member, err)
}

// RemoveMember removes a member
func (h *MerchantHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	a := actor.MustFromContext(r.Context())

	memberID := chi.URLParam(r, "memberID")
	if memberID == "" {
		httputil.ErrorLocalized(w, r, errors.NotFoundWithKey("member"))
		return
	}

	err := h.service.RemoveMember(r.Context(), merchantID, memberID, a.ID)
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, h.target("/merchants/"+merchantID+"/members"), http.StatusNoContent, nil, err)
}
