package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/qerbie/qerbie-backend/internal/customer"
	qrmw "github.com/qerbie/qerbie-backend/internal/qr/middleware"
	"github.com/qerbie/qerbie-backend/internal/queue/domain"
	"github.com/qerbie/qerbie-backend/internal/queue/service"
	"github.com/qerbie/qerbie-backend/pkg/actor"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Service is the queue behaviour the handler exposes
type Service interface {
	CreateQueue(ctx context.Context, merchantID string, req *service.CreateQueueRequest) (*domain.Queue, error)
	ListQueues(ctx context.Context, merchantID string) ([]domain.Queue, error)
	GetQueue(ctx context.Context, merchantID, queueID string) (*domain.Queue, error)
	UpdateQueue(ctx context.Context, merchantID, queueID string, req *service.UpdateQueueRequest) (*domain.Queue, error)
	SetOpen(ctx context.Context, merchantID, queueID string, open bool) (*domain.Queue, error)
	DeleteQueue(ctx context.Context, merchantID, queueID string) error
	ResetNumbering(ctx context.Context, merchantID, queueID string) error
	Join(ctx context.Context, merchantID, queueID, session string, req *service.JoinRequest) (*domain.TicketStatus, bool, error)
	Status(ctx context.Context, merchantID, ticketID, session string) (*domain.TicketStatus, error)
	CancelOwn(ctx context.Context, merchantID, ticketID, session string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, merchantID, queueID string, statuses []string) ([]domain.Ticket, error)
	CallNext(ctx context.Context, merchantID, queueID, actorID string) (*domain.Ticket, error)
	Transition(ctx context.Context, merchantID, ticketID, actorID string, req *service.TransitionRequest) (*domain.Ticket, error)
}

// QueueHandler handles queue management and the customer side of walk-in queues
type QueueHandler struct {
	service Service
	baseURL string
	logger  *logger.Logger
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(svc Service, publicBaseURL string, log *logger.Logger) *QueueHandler {
	return &QueueHandler{
		service: svc,
		baseURL: publicBaseURL,
		logger:  log,
	}
}

func (h *QueueHandler) target(merchantID, queueID string) httputil.ActionTarget {
	path := "/merchants/" + merchantID + "/queues"
	if queueID != "" {
		path += "/" + queueID
	}
	return httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: path}
}

func publicPath(r *http.Request, rest string) string {
	return "/p/" + chi.URLParam(r, "token") + rest
}

// ListQueues lists the merchant's queues
func (h *QueueHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.service.ListQueues(r.Context(), tenant.MustMerchantID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, queues)
}

// CreateQueue creates a queue
func (h *QueueHandler) CreateQueue(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.target(merchantID, "")

	var req service.CreateQueueRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	q, err := h.service.CreateQueue(r.Context(), merchantID, &req)
	if err == nil {
		target.SuccessPath = h.target(merchantID, q.ID).ReturnPath
	}
	httputil.RespondAction(w, r, target, http.StatusCreated, q, err)
}

// GetQueue returns a queue
func (h *QueueHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.GetQueue(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "queueID"))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, q)
}

// UpdateQueue updates a queue's name or service time
func (h *QueueHandler) UpdateQueue(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	queueID := chi.URLParam(r, "queueID")
	target := h.target(merchantID, queueID)

	var req service.UpdateQueueRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	q, err := h.service.UpdateQueue(r.Context(), merchantID, queueID, &req)
	httputil.RespondAction(w, r, target, http.StatusOK, q, err)
}

// Open lets customers join the queue
func (h *QueueHandler) Open(w http.ResponseWriter, r *http.Request) {
	h.setOpen(w, r, true)
}

// Close stops new customers from joining
func (h *QueueHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.setOpen(w, r, false)
}

func (h *QueueHandler) setOpen(w http.ResponseWriter, r *http.Request, open bool) {
	merchantID := tenant.MustMerchantID(r.Context())
	queueID := chi.URLParam(r, "queueID")

	q, err := h.service.SetOpen(r.Context(), merchantID, queueID, open)
	httputil.RespondAction(w, r, h.target(merchantID, queueID), http.StatusOK, q, err)
}

// DeleteQueue deletes a queue
func (h *QueueHandler) DeleteQueue(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())

	err := h.service.DeleteQueue(r.Context(), merchantID, chi.URLParam(r, "queueID"))
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, h.target(merchantID, ""), http.StatusNoContent, nil, err)
}

// Reset restarts ticket numbering
func (h *QueueHandler) Reset(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	queueID := chi.URLParam(r, "queueID")

	err := h.service.ResetNumbering(r.Context(), merchantID, queueID)
	if err == nil && !httputil.IsFormRequest(r) {
		httputil.NoContent(w)
		return
	}
	httputil.RespondAction(w, r, h.target(merchantID, queueID), http.StatusNoContent, nil, err)
}

// ListTickets lists a queue's tickets; ?status=waiting,called filters by status
func (h *QueueHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	var statuses []string
	for _, v := range r.URL.Query()["status"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, s)
			}
		}
	}

	tickets, err := h.service.ListTickets(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "queueID"), statuses)
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, tickets)
}

// CallNext calls the next waiting customer
func (h *QueueHandler) CallNext(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	queueID := chi.URLParam(r, "queueID")

	t, err := h.service.CallNext(r.Context(), merchantID, queueID, actor.MustFromContext(r.Context()).ID)
	httputil.RespondAction(w, r, h.target(merchantID, queueID), http.StatusOK, t, err)
}

// Transition changes a ticket's status
func (h *QueueHandler) Transition(w http.ResponseWriter, r *http.Request) {
	merchantID := tenant.MustMerchantID(r.Context())
	target := h.target(merchantID, chi.URLParam(r, "queueID"))

	var req service.TransitionRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	t, err := h.service.Transition(r.Context(), merchantID, chi.URLParam(r, "ticketID"), actor.MustFromContext(r.Context()).ID, &req)
	httputil.RespondAction(w, r, target, http.StatusOK, t, err)
}

// Join puts the customer in the queue behind the scanned QR code
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	res := qrmw.FromContext(r.Context())
	target := httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: publicPath(r, "")}
	if res == nil {
		httputil.RespondAction(w, r, target, 0, nil, errors.QRTokenInvalid())
		return
	}

	var req service.JoinRequest
	if err := httputil.DecodeRequest(r, &req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	status, created, err := h.service.Join(r.Context(), res.Merchant.ID, res.Target.ID, customer.HashFromContext(r.Context()), &req)
	if err != nil {
		httputil.RespondAction(w, r, target, 0, nil, err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	target.SuccessPath = publicPath(r, "/queue/tickets/"+status.Ticket.ID)
	httputil.RespondAction(w, r, target, code, status, nil)
}

// TicketStatus shows the customer's ticket with position and estimated wait
func (h *QueueHandler) TicketStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context(), tenant.MustMerchantID(r.Context()), chi.URLParam(r, "ticketID"), customer.HashFromContext(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, status)
}

// CancelTicket lets the customer leave the queue
func (h *QueueHandler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	target := httputil.ActionTarget{BaseURL: h.baseURL, ReturnPath: publicPath(r, "/queue/tickets/"+ticketID)}

	t, err := h.service.CancelOwn(r.Context(), tenant.MustMerchantID(r.Context()), ticketID, customer.HashFromContext(r.Context()))
	httputil.RespondAction(w, r, target, http.StatusOK, t, err)
}
