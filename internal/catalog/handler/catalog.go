package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qerbie/qerbie-backend/internal/catalog/domain"
	"github.com/qerbie/qerbie-backend/internal/catalog/service"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Service is the catalog behaviour the handler exposes
type Service interface {
	Create(ctx context.Context, merchantID string, req *service.CreateProductRequest) (*domain.Product, error)
	Get(ctx context.Context, merchantID, productID string) (*domain.Product, error)
	List(ctx context.Context, merchantID, category string) ([]domain.Product, error)
	Update(ctx context.Context, merchantID, productID string, req *service.UpdateProductRequest) (*domain.Product, error)
	Delete(ctx context.Context, merchantID, productID string) error
	Menu(ctx context.Context, merchantID string) ([]domain.MenuCategory, error)
}

// CatalogHandler handles product and menu endpoints
type CatalogHandler struct {
	service Service
	baseURL string
	logger  *logger.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(svc Service, publicBaseURL string, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		baseURL: publicBaseURL,
		logger:  log,
	}
}

func (h *CatalogHandler) target(merchantID string) httputil.ActionTarget {
	return httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/merchants/" + merchantID + "/products"}
}

// List lists products
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context(), tenant.MustMerchantID(r.Context()), r.URL.Query().Get("category"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, products)
}

// Create creates a product
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.target(merchantID)

	var req service.CreateProductRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	p, err := h.service.Create(r.Context(), merchantID, &req)
	httputil.RespondAction(w, r, target, http.StatusCreated, p, err)
}

// Get returns a product
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "productID"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// Update updates a product
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.target(merchantID)

	var req service.UpdateProductRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	p, err := h.service.Update(r.Context(), merchantID, chi.URLParam(r, "productID"), &req)
	httputil.RespondAction(w, r, target, http.StatusOK, p, err)
}

// Delete deletes a product
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	err := h.service.Delete(r.Context(), merchantID, chi.URLParam(r, "productID"))
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, h.target(merchantID), http.StatusNoContent, nil, err)
}

// Menu returns the public menu of the merchant behind the scanned QR code
func (h *CatalogHandler) Menu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.service.Menu(r.Context(), tenant.MustMerchantID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, menu)
}
