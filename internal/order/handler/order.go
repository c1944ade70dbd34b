package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/qerbie/qerbie-backend/internal/customer"
	"github.com/qerbie/qerbie-backend/internal/order/domain"
	"github.com/qerbie/qerbie-backend/internal/order/repository"
	"github.com/qerbie/qerbie-backend/internal/order/service"
	qrmw "github.com/qerbie/qerbie-backend/internal/qr/middleware"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Service is the order behaviour the handler exposes
type Service interface {
	CreateTable(ctx context.Context, merchantID string, req *service.CreateTableRequest) (*domain.Table, error)
	ListTables(ctx context.Context, merchantID string) ([]domain.Table, error)
	GetTable(ctx context.Context, merchantID, tableID string) (*domain.Table, error)
	UpdateTable(ctx context.Context, merchantID, tableID string, req *service.UpdateTableRequest) (*domain.Table, error)
	DeleteTable(ctx context.Context, merchantID, tableID string) error
	Place(ctx context.Context, merchantID, tableID, session string, req *service.PlaceOrderRequest) (*domain.Order, error)
	GetForCustomer(ctx context.Context, merchantID, orderID, session string) (*domain.Order, error)
	ListMine(ctx context.Context, merchantID, session string) ([]domain.Order, error)
	CancelOwn(ctx context.Context, merchantID, orderID, session string) (*domain.Order, error)
	List(ctx context.Context, merchantID string, f repository.ListFilter, page, perPage int) ([]domain.Order, int64, error)
	Get(ctx context.Context, merchantID, orderID string) (*domain.Order, error)
	Transition(ctx context.Context, merchantID, orderID, actorID string, perms []string, req *service.TransitionRequest) (*domain.Order, error)
}

// OrderHandler handles tables, merchant order management and customer ordering
type OrderHandler struct {
	service Service
	baseURL string
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc Service, publicBaseURL string, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		baseURL: publicBaseURL,
		logger:  log,
	}
}

func (h *OrderHandler) merchantTarget(merchantID, section string) httputil.ActionTarget {
	return httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/merchants/" + merchantID + "/" + section}
}

func (h *OrderHandler) publicTarget(r *http.Request, rest string) httputil.ActionTarget {
	return httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/p/" + chi.URLParam(r, "token") + rest}
}

// ListTables lists tables
func (h *OrderHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.service.ListTables(r.Context(), tenant.MustMerchantID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tables)
}

// CreateTable creates a table
func (h *OrderHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.merchantTarget(merchantID, "tables")

	var req service.CreateTableRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	t, err := h.service.CreateTable(r.Context(), merchantID, &req)
	httputil.RespondAction(w, r, target, http.StatusCreated, t, err)
}

// GetTable returns a table
func (h *OrderHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTable(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "tableID"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, t)
}

// UpdateTable updates a table
func (h *OrderHandler) UpdateTable(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.merchantTarget(merchantID, "tables")

	var req service.UpdateTableRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	t, err := h.service.UpdateTable(r.Context(), merchantID, chi.URLParam(r, "tableID"), &req)
	httputil.RespondAction(w, r, target, http.StatusOK, t, err)
}

// DeleteTable deletes a table
func (h *OrderHandler) DeleteTable(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	err := h.service.DeleteTable(r.Context(), merchantID, chi.URLParam(r, "tableID"))
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, h.merchantTarget(merchantID, "tables"), http.StatusNoContent, nil, err)
}

// List lists orders; ?status=, ?table_id= filter and ?page=&per_page= paginate
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)
	f := repository.ListFilter{
		Status:  r.URL.Query().Get("status"),
		TableID: r.URL.Query().Get("table_id"),
	}

	orders, total, err := h.service.List(r.Context(), tenant.MustMerchantID(r.Context()), f, page, perPage)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, httputil.NewMeta(page, perPage, total))
}

// Get returns an order with items and history
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// Transition changes an order's status
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	orderID := chi.URLParam(r, "orderID")
	target := h.merchantTarget(merchantID, "orders/"+orderID)

	var req service.TransitionRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	o, err := h.service.Transition(r.Context(), merchantID, orderID, actor.MustFromContext(r.Context()).ID, tenant.Permissions(r.Context()), &req)
	httputil.RespondAction(w, r, target, http.StatusOK, o, err)
}

// Place places an order at the table behind the scanned QR code
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	target := h.publicTarget(r, "/menu")
	res := qrmw.FromContext(r.Context())
	if res == nil {
		httputil.RespondAction(w, r, target, 0, nil, errors.QRTokenInvalid())
		return
	}

	var req service.PlaceOrderRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	o, err := h.service.Place(r.Context(), res.Merchant.ID, res.Target.ID, customer.HashFromContext(r.Context()), &req)
	if err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	target.SuccessPath = "/p/" + chi.URLParam(r, "token") + "/orders/" + o.ID
	httputil.RespondAction(w, r, target, http.StatusCreated, o, nil)
}

// MyOrders lists the customer's orders at this merchant
func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListMine(r.Context(), tenant.MustMerchantID(r.Context()), customer.HashFromContext(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, orders)
}

// MyOrder returns one of the customer's orders
func (h *OrderHandler) MyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetForCustomer(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "orderID"), customer.HashFromContext(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, o)
}

// CancelMyOrder cancels the customer's pending order
func (h *OrderHandler) CancelMyOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	o, err := h.service.CancelOwn(r.Context(), tenant.MustMerchantID(r.Context()), orderID, customer.HashFromContext(r.Context()))
	httputil.RespondAction(w, r, h.publicTarget(r, "/orders/"+orderID), http.StatusOK, o, err)
}
