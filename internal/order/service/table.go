package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/order/domain"
	qrdomain "github.com/qerbie/qerbie-backend/internal/qr/domain"
	"github.com/qerbie/qerbie-backend/pkg/errors"
)

// TableStore is the table persistence the service needs
type TableStore interface {
	Create(ctx context.Context, t *domain.Table) error
	GetByID(ctx context.Context, merchantID, id string) (*domain.Table, error)
	List(ctx context.Context, merchantID string) ([]domain.Table, error)
	Update(ctx context.Context, t *domain.Table) error
	Delete(ctx context.Context, merchantID, id string) error
}

// CreateTableRequest represents a table creation request
type CreateTableRequest struct {
	Label string `json:"label" validate:"required,min=1,max=40"`
}

// UpdateTableRequest represents a partial table update
type UpdateTableRequest struct {
	Label    *string `json:"label" validate:"omitempty,min=1,max=40"`
	IsActive *bool   `json:"is_active"`
}

// CreateTable creates an active table with a fresh QR token
func (s *OrderService) CreateTable(ctx context.Context, merchantID string, req *CreateTableRequest) (*domain.Table, error) {
	token, err := qrdomain.NewToken()
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	now := s.now()
	t := &domain.Table{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		Label:      strings.TrimSpace(req.Label),
		QRToken:    token,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.tables.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTables lists the merchant's tables
func (s *OrderService) ListTables(ctx context.Context, merchantID string) ([]domain.Table, error) {
	var out []domain.Table
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.tables.List(ctx, merchantID)
		return err
	})
	return out, err
}

// GetTable returns a table
func (s *OrderService) GetTable(ctx context.Context, merchantID, tableID string) (*domain.Table, error) {
	var t *domain.Table
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		t, err = s.tables.GetByID(ctx, merchantID, tableID)
		return err
	})
	return t, err
}

// UpdateTable renames a table or turns its QR code on or off
func (s *OrderService) UpdateTable(ctx context.Context, merchantID, tableID string, req *UpdateTableRequest) (*domain.Table, error) {
	var t *domain.Table
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		if t, err = s.tables.GetByID(ctx, merchantID, tableID); err != nil {
			return err
		}
		if req.Label != nil {
			t.Label = strings.TrimSpace(*req.Label)
		}
		if req.IsActive != nil {
			t.IsActive = *req.IsActive
		}
		t.UpdatedAt = s.now()
		return s.tables.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTable deletes a table
func (s *OrderService) DeleteTable(ctx context.Context, merchantID, tableID string) error {
	return s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.tables.Delete(ctx, merchantID, tableID)
	})
}
