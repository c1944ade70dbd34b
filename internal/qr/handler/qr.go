package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qerbie/qerbie-backend/internal/qr/domain"
	"github.com/qerbie/qerbie-backend/internal/qr/middleware"
	"github.com/qerbie/qerbie-backend/internal/qr/service"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Service is the QR behaviour the handler exposes
type Service interface {
	IssueBookingToken(ctx context.Context, merchantID, businessType string, req *service.IssueBookingTokenRequest) (*domain.BookingToken, error)
	ListBookingTokens(ctx context.Context, merchantID, businessType string) ([]domain.BookingToken, error)
	RevokeBookingToken(ctx context.Context, merchantID, businessType, tokenID string) error
	RotateTableToken(ctx context.Context, merchantID, tableID string) (string, error)
	RotateQueueToken(ctx context.Context, merchantID, queueID string) (string, error)
}

// QRHandler handles token resolution and QR management endpoints
type QRHandler struct {
	service Service
	baseURL string
	logger  *logger.Logger
}

// NewQRHandler creates a new QR handler
func NewQRHandler(svc Service, publicBaseURL string, log *logger.Logger) *QRHandler {
	return &QRHandler{
		service: svc,
		baseURL: publicBaseURL,
		logger:  log,
	}
}

type rotateResponse struct {
	QRToken string `json:"qr_token"`
}

// Resolve returns what the scanned token points at
func (h *QRHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	res := middleware.FromContext(r.Context())
	if res == nil {
		httputil.ErrorLocalized(w, r, errors.QRTokenInvalid())
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

// ListBookingTokens lists the merchant's booking QR codes
func (h *QRHandler) ListBookingTokens(w http.ResponseWriter, r *http.Request) {
	m, _ := tenant.FromContext(r.Context())

	tokens, err := h.service.ListBookingTokens(r.Context(), m.ID, m.BusinessType)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tokens)
}

// IssueBookingToken creates a booking QR code
func (h *QRHandler) IssueBookingToken(w http.ResponseWriter, r *http.Request) {
	m, _ := tenant.FromContext(r.Context())
	target := httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/merchants/" + m.ID + "/qr"}

	var req service.IssueBookingTokenRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeRequest(r, &req); err != nil {
			httputil.RespondAction(w, r, target, 0, nil, err)
			return
		}
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	t, err := h.service.IssueBookingToken(r.Context(), m.ID, m.BusinessType, &req)
	httputil.RespondAction(w, r, target, http.StatusCreated, t, err)
}

// RevokeBookingToken deactivates a booking QR code
func (h *QRHandler) RevokeBookingToken(w http.ResponseWriter, r *http.Request) {
	m, _ := tenant.FromContext(r.Context())

	err := h.service.RevokeBookingToken(r.Context(), m.ID, m.BusinessType, chi.URLParam(r, "tokenID"))
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/merchants/" + m.ID + "/qr"}, http.StatusNoContent, nil, err)
}

// RotateTableToken issues a new token for a table
func (h *QRHandler) RotateTableToken(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	token, err := h.service.RotateTableToken(r.Context(), merchantID, chi.URLParam(r, "tableID"))
	target := httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/merchants/" + merchantID + "/tables"}
	httputil.RespondAction(w, r, target, http.StatusOK, rotateResponse{QRToken: token}, err)
}

// RotateQueueToken issues a new token for a queue
func (h *QRHandler) RotateQueueToken(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	token, err := h.service.RotateQueueToken(r.Context(), merchantID, chi.URLParam(r, "queueID"))
	target := httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/merchants/" + merchantID + "/queues"}
	httputil.RespondAction(w, r, target, http.StatusOK, rotateResponse{QRToken: token}, err)
}
