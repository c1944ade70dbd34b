package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/qr/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// Store is the QR persistence the service needs
type Store interface {
	FindTable(ctx context.Context, token string) (*domain.Resolution, error)
	FindQueue(ctx context.Context, token string) (*domain.Resolution, error)
	FindBooking(ctx context.Context, businessType, token string) (*domain.Resolution, error)
	CreateBookingToken(ctx context.Context, businessType string, t *domain.BookingToken) error
	ListBookingTokens(ctx context.Context, businessType, merchantID string) ([]domain.BookingToken, error)
	RevokeBookingToken(ctx context.Context, businessType, merchantID, id string) error
	SetTableToken(ctx context.Context, merchantID, tableID, token string) error
	SetQueueToken(ctx context.Context, merchantID, queueID, token string) error
}

// QRService resolves scanned tokens and manages them for merchants
type QRService struct {
	tx     database.Transactor
	store  Store
	logger *logger.Logger
}

// NewQRService creates a new QR service
func NewQRService(tx database.Transactor, store Store, log *logger.Logger) *QRService {
	return &QRService{
		tx:     tx,
		store:  store,
		logger: log,
	}
}

// IssueBookingTokenRequest represents a booking QR code creation request
type IssueBookingTokenRequest struct {
	Label string `json:"label" validate:"max=80"`
}

// Resolve finds what a token points at. Tables are tried first, then queues,
// then the booking token table of each vertical.
func (s *QRService) Resolve(ctx context.Context, token string) (*domain.Resolution, error) {
	if !domain.ValidFormat(token) {
		return nil, errors.QRTokenInvalid()
	}

	res, err := s.store.FindTable(ctx, token)
	if err != nil || res != nil {
		return res, err
	}
	res, err = s.store.FindQueue(ctx, token)
	if err != nil || res != nil {
		return res, err
	}
	for _, v := range domain.VerticalTables() {
		res, err = s.store.FindBooking(ctx, v[0], token)
		if err != nil || res != nil {
			return res, err
		}
	}
	return nil, errors.QRTokenInvalid()
}

// IssueBookingToken creates a booking QR code for a barbershop, pet shop or salon
func (s *QRService) IssueBookingToken(ctx context.Context, merchantID, businessType string, req *IssueBookingTokenRequest) (*domain.BookingToken, error) {
	if _, ok := domain.VerticalTable(businessType); !ok {
		return nil, errors.BadRequest("this business type has no booking QR codes")
	}

	token, err := domain.NewToken()
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}
	t := &domain.BookingToken{
		ID:         uuid.New().String(),
		MerchantID: merchantID,
		Token:      token,
		Label:      strings.TrimSpace(req.Label),
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.store.CreateBookingToken(ctx, businessType, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("merchant_id", merchantID).Str("token_id", t.ID).Msg("booking qr token issued")
	return t, nil
}

// ListBookingTokens lists a merchant's booking QR codes
func (s *QRService) ListBookingTokens(ctx context.Context, merchantID, businessType string) ([]domain.BookingToken, error) {
	var out []domain.BookingToken
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.store.ListBookingTokens(ctx, businessType, merchantID)
		return err
	})
	return out, err
}

// RevokeBookingToken deactivates a booking QR code
func (s *QRService) RevokeBookingToken(ctx context.Context, merchantID, businessType, tokenID string) error {
	return s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.store.RevokeBookingToken(ctx, businessType, merchantID, tokenID)
	})
}

// RotateTableToken gives a table a new token and returns it
func (s *QRService) RotateTableToken(ctx context.Context, merchantID, tableID string) (string, error) {
	return s.rotate(ctx, merchantID, tableID, s.store.SetTableToken)
}

// RotateQueueToken gives a queue a new token and returns it
func (s *QRService) RotateQueueToken(ctx context.Context, merchantID, queueID string) (string, error) {
	return s.rotate(ctx, merchantID, queueID, s.store.SetQueueToken)
}

func (s *QRService) rotate(ctx context.Context, merchantID, id string, set func(ctx context.Context, merchantID, id, token string) error) (string, error) {
	token, err := domain.NewToken()
	if err != nil {
		return "", errors.Internal("failed to generate token")
	}
	err = s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return set(ctx, merchantID, id, token)
	})
	if err != nil {
		return "", err
	}
	return token, nil
}
