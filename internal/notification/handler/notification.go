package handler

import (
	"context"
	"net/http"

	"github.com/qerbie/qerbie-backend/internal/notification/domain"
	"github.com/qerbie/qerbie-backend/pkg/httputil"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
)

// Service lists delivered notifications
type Service interface {
	ListRecent(ctx context.Context, merchantID string) ([]domain.Notification, error)
}

// NotificationHandler exposes the merchant's notification log
type NotificationHandler struct {
	service Service
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(svc Service, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, logger: log}
}

// List returns the latest notifications sent on the merchant's behalf
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListRecent(r.Context(), tenant.MustMerchantID(r.Context()))
	if err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, out)
}
