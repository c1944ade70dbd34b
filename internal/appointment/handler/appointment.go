package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/qerbie/qerbie-backend/internal/appointment/domain"
	"github.com/qerbie/qerbie-backend/internal/appointment/service"
	"github.com/qerbie/qerbie-backend/internal/customer"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Service is the appointment behaviour the handler exposes
type Service interface {
	CreateSlots(ctx context.Context, merchantID string, req *service.CreateSlotsRequest) ([]domain.Slot, error)
	ListSlots(ctx context.Context, merchantID string, from, to time.Time) ([]domain.Slot, error)
	Block(ctx context.Context, merchantID, slotID string) (*domain.Slot, error)
	Unblock(ctx context.Context, merchantID, slotID string) (*domain.Slot, error)
	DeleteSlot(ctx context.Context, merchantID, slotID string) error
	ListAvailable(ctx context.Context, merchantID string, from, to time.Time) ([]domain.PublicSlot, error)
	Book(ctx context.Context, merchantID, slotID, session string, req *service.BookRequest) (*domain.Slot, error)
	CancelBooking(ctx context.Context, merchantID, slotID, session string) error
	Submit(ctx context.Context, merchantID, businessType, session string, req *service.SubmitRequest) (*domain.Request, error)
	CancelOwnRequest(ctx context.Context, merchantID, requestID, session string) (*domain.Request, error)
	ListRequests(ctx context.Context, merchantID, status string, page, perPage int) ([]domain.Request, int64, error)
	GetRequest(ctx context.Context, merchantID, requestID string) (*domain.Request, error)
	Decide(ctx context.Context, merchantID, requestID, actorID string, req *service.DecideRequest) (*domain.Request, error)
}

// AppointmentHandler handles slots and appointment requests for merchants and customers
type AppointmentHandler struct {
	service Service
	baseURL string
	logger  *logger.Logger
}

// NewAppointmentHandler creates a new appointment handler
func NewAppointmentHandler(svc Service, publicBaseURL string, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: svc,
		baseURL: publicBaseURL,
		logger:  log,
	}
}

func (h *AppointmentHandler) merchantTarget(merchantID, section string) httputil.ActionTarget {
	return httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/merchants/" + merchantID + "/" + section}
}

func (h *AppointmentHandler) publicTarget(r *http.Request, rest string) httputil.ActionTarget {
	return httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: "/p/" + chi.URLParam(r, "token") + rest}
}

func timeRange(r *http.Request) (from, to time.Time, err error) {
	if from, err = httputil.QueryTime(r, "from"); err != nil {
		return
	}
	to, err = httputil.QueryTime(r, "to")
	return
}

// ListSlots lists the merchant's slots in ?from=&to= (default: the next seven days)
func (h *AppointmentHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if from.IsZero() {
		now := time.Now().UTC()
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 7)
	}

	slots, err := h.service.ListSlots(r.Context(), tenant.MustMerchantID(r.Context()), from, to)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, slots)
}

// CreateSlots creates a slot or a series of slots
func (h *AppointmentHandler) CreateSlots(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.merchantTarget(merchantID, "slots")

	var req service.CreateSlotsRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	slots, err := h.service.CreateSlots(r.Context(), merchantID, &req)
	httputil.RespondAction(w, r, target, http.StatusCreated, slots, err)
}

// Block blocks a slot
func (h *AppointmentHandler) Block(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	slot, err := h.service.Block(r.Context(), merchantID, chi.URLParam(r, "slotID"))
	httputil.RespondAction(w, r, h.merchantTarget(merchantID, "slots"), http.StatusOK, slot, err)
}

// Unblock unblocks a slot
func (h *AppointmentHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	slot, err := h.service.Unblock(r.Context(), merchantID, chi.URLParam(r, "slotID"))
	httputil.RespondAction(w, r, h.merchantTarget(merchantID, "slots"), http.StatusOK, slot, err)
}

// DeleteSlot deletes a slot
func (h *AppointmentHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	err := h.service.DeleteSlot(r.Context(), merchantID, chi.URLParam(r, "slotID"))
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, h.merchantTarget(merchantID, "slots"), http.StatusNoContent, nil, err)
}

// ListRequests lists appointment requests; ?status= filters and ?page=&per_page= paginate
func (h *AppointmentHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	requests, total, err := h.service.ListRequests(r.Context(), tenant.MustMerchantID(r.Context()), r.URL.Query().Get("status"), page, perPage)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, requests, httputil.NewMeta(page, perPage, total))
}

// GetRequest returns an appointment request
func (h *AppointmentHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.GetRequest(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, req)
}

// Decide accepts or declines a request
func (h *AppointmentHandler) Decide(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.merchantTarget(merchantID, "requests")

	var req service.DecideRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	decided, err := h.service.Decide(r.Context(), merchantID, chi.URLParam(r, "requestID"), actor.MustFromContext(r.Context()).ID, &req)
	httputil.RespondAction(w, r, target, http.StatusOK, decided, err)
}

// AvailableSlots lists bookable slots of the merchant behind the booking QR code
func (h *AppointmentHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	from, to, err := timeRange(r)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	slots, err := h.service.ListAvailable(r.Context(), tenant.MustMerchantID(r.Context()), from, to)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, slots)
}

// Book reserves a slot for the customer
func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	target := h.publicTarget(r, "")

	var req service.BookRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	slot, err := h.service.Book(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "slotID"), customer.HashFromContext(r.Context()), &req)
	if err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	target.SuccessPath = target.ReturnPath + "?booked=" + slot.ID
	httputil.RespondAction(w, r, target, http.StatusOK, slot, nil)
}

// CancelBooking frees the customer's slot
func (h *AppointmentHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	err := h.service.CancelBooking(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "slotID"), customer.HashFromContext(r.Context()))
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, h.publicTarget(r, ""), http.StatusNoContent, nil, err)
}

// SubmitRequest records a customer's appointment request
func (h *AppointmentHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	target := h.publicTarget(r, "")

	var req service.SubmitRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	m, _ := tenant.FromContext(r.Context())
	created, err := h.service.Submit(r.Context(), m.ID, m.BusinessType, customer.HashFromContext(r.Context()), &req)
	if err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	target.SuccessPath = target.ReturnPath + "?request=" + created.ID
	httputil.RespondAction(w, r, target, http.StatusCreated, created, nil)
}

// CancelRequest withdraws the customer's request
func (h *AppointmentHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.service.CancelOwnRequest(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "requestID"), customer.HashFromContext(r.Context()))
	httputil.RespondAction(w, r, h.publicTarget(r, ""), http.StatusOK, req, err)
}
