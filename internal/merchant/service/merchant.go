package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/merchant/domain"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
	"github.com/qerbie/qerbie-backend/pkg/permissions"
)

// MerchantStore is the merchant persistence the service needs
type MerchantStore interface {
	Create(ctx context.Context, m *domain.Merchant) error
	GetByID(ctx context.Context, id string) (*domain.Merchant, error)
	ListForUser(ctx context.Context, userID string) ([]domain.MerchantWithRole, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, m *domain.Merchant) error
}

// MemberStore is the membership persistence the service needs
type MemberStore interface {
	Add(ctx context.Context, m *domain.Member) error
	Get(ctx context.Context, merchantID, memberID string) (*domain.Member, error)
	GetMembership(ctx context.Context, merchantID, userID string) (*domain.Membership, error)
	List(ctx context.Context, merchantID string) ([]domain.Member, error)
	Update(ctx context.Context, m *domain.Member) error
	Remove(ctx context.Context, merchantID, memberID string) error
	LockOwners(ctx context.Context, merchantID string) (int, error)
	FindUserIDByEmail(ctx context.Context, email string) (string, error)
}

// MerchantService handles merchants and their members
type MerchantService struct {
	tx        database.Transactor
	merchants MerchantStore
	members   MemberStore
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewMerchantService creates a new merchant service
func NewMerchantService(tx database.Transactor, merchants MerchantStore, members MemberStore, pub messaging.EventPublisher, log *logger.Logger) *MerchantService {
	return &MerchantService{
		tx:        tx,
		merchants: merchants,
		members:   members,
		publisher: pub,
		logger:    log,
	}
}

// CreateMerchantRequest represents a merchant creation request
type CreateMerchantRequest struct {
	Name         string  `json:"name" validate:"required,min=2,max=120"`
	Slug         string  `json:"slug" validate:"required,min=3,max=60,slug"`
	BusinessType string  `json:"business_type" validate:"required,oneof=restaurant barbershop salon pet_shop gym"`
	Phone        *string `json:"phone" validate:"omitempty,e164"`
	Timezone     string  `json:"timezone" validate:"omitempty,max=64"`
}

// UpdateMerchantRequest represents a partial merchant update
type UpdateMerchantRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=120"`
	Phone    *string `json:"phone" validate:"omitempty,e164"`
	Timezone *string `json:"timezone" validate:"omitempty,min=1,max=64"`
	IsActive *bool   `json:"is_active"`
}

// AddMemberRequest represents adding an existing account as a member
type AddMemberRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Role        string   `json:"role" validate:"required,oneof=admin staff owner"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,min=3,max=64"`
}

// UpdateMemberRequest represents changing a member's role or extra permissions
type UpdateMemberRequest struct {
	Role        string   `json:"role" validate:"required,oneof=admin staff owner"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,min=3,max=64"`
}

// Create creates a merchant and makes the creator its owner in one transaction
func (s *MerchantService) Create(ctx context.Context, ownerID string, req *CreateMerchantRequest) (*domain.Merchant, error) {
	if !domain.IsValidBusinessType(req.BusinessType) {
		return nil, errors.Validation(map[string]string{"business_type": "unknown business type"})
	}

	now := time.Now().UTC()
	m := &domain.Merchant{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Slug:         strings.ToLower(req.Slug),
		BusinessType: req.BusinessType,
		Phone:        req.Phone,
		Timezone:     req.Timezone,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.Timezone == "" {
		m.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(m.Timezone); err != nil {
		return nil, errors.Validation(map[string]string{"timezone": "unknown time zone"})
	}

	err := s.tx.WithMerchantRLS(ctx, m.ID, func(ctx context.Context) error {
		if err := s.merchants.Create(ctx, m); err != nil {
			return err
		}
		return s.members.Add(ctx, &domain.Member{
			ID:         uuid.New().String(),
			MerchantID: m.ID,
			UserID:     ownerID,
			Role:       permissions.RoleOwner,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventMerchantCreated, m.ID, messaging.MerchantCreatedEvent{
		MerchantID:   m.ID,
		Name:         m.Name,
		Slug:         m.Slug,
		BusinessType: m.BusinessType,
		OwnerID:      ownerID,
	})
	s.logger.Info().Str("merchant_id", m.ID).Str("slug", m.Slug).Msg("merchant created")

	return m, nil
}

// ListForUser lists the merchants the user belongs to
func (s *MerchantService) ListForUser(ctx context.Context, userID string) ([]domain.MerchantWithRole, error) {
	return s.merchants.ListForUser(ctx, userID)
}

// ListActiveIDs lists active merchants; used by background jobs
func (s *MerchantService) ListActiveIDs(ctx context.Context) ([]string, error) {
	return s.merchants.ListActiveIDs(ctx)
}

// Get returns a merchant
func (s *MerchantService) Get(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	var m *domain.Merchant
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		m, err = s.merchants.GetByID(ctx, merchantID)
		return err
	})
	return m, err
}

// Update applies a partial update to the merchant settings
func (s *MerchantService) Update(ctx context.Context, merchantID string, req *UpdateMerchantRequest) (*domain.Merchant, error) {
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, errors.Validation(map[string]string{"timezone": "unknown time zone"})
		}
	}

	var m *domain.Merchant
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		m, err = s.merchants.GetByID(ctx, merchantID)
		if err != nil {
			return err
		}
		if req.Name != nil {
			m.Name = strings.TrimSpace(*req.Name)
		}
		if req.Phone != nil {
			m.Phone = req.Phone
			if *req.Phone == "" {
				m.Phone = nil
			}
		}
		if req.Timezone != nil {
			m.Timezone = *req.Timezone
		}
		if req.IsActive != nil {
			m.IsActive = *req.IsActive
		}
		return s.merchants.Update(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Membership loads the membership of userID in merchantID with its effective permissions
func (s *MerchantService) Membership(ctx context.Context, merchantID, userID string) (*domain.Membership, error) {
	ms, err := s.members.GetMembership(ctx, merchantID, userID)
	if err != nil {
		return nil, err
	}
	ms.Permissions = permissions.Effective(ms.Role, ms.Permissions)
	return ms, nil
}

// ListMembers lists the members of a merchant
func (s *MerchantService) ListMembers(ctx context.Context, merchantID string) ([]domain.Member, error) {
	var out []domain.Member
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.members.List(ctx, merchantID)
		return err
	})
	return out, err
}

// AddMember adds an existing account to the merchant
func (s *MerchantService) AddMember(ctx context.Context, merchantID, actorID string, req *AddMemberRequest) (*domain.Member, error) {
	if err := validateMember(req.Role, req.Permissions); err != nil {
		return nil, err
	}

	userID, err := s.members.FindUserIDByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	member := &domain.Member{
		ID:          uuid.New().String(),
		MerchantID:  merchantID,
		UserID:      userID,
		Role:        req.Role,
		Permissions: req.Permissions,
		Email:       strings.ToLower(req.Email),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.members.Add(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventMemberAdded, merchantID, messaging.MemberEvent{UserID: userID, Role: req.Role, By: actorID})
	return member, nil
}

// UpdateMember changes a member's role and extras. The last owner cannot be demoted.
func (s *MerchantService) UpdateMember(ctx context.Context, merchantID, memberID string, req *UpdateMemberRequest) (*domain.Member, error) {
	if err := validateMember(req.Role, req.Permissions); err != nil {
		return nil, err
	}

	var member *domain.Member
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		owners, err := s.members.LockOwners(ctx, merchantID)
		if err != nil {
			return err
		}
		member, err = s.members.Get(ctx, merchantID, memberID)
		if err != nil {
			return err
		}
		if member.Role == permissions.RoleOwner && req.Role != permissions.RoleOwner && owners <= 1 {
			return errors.Conflict("the last owner cannot be demoted")
		}
		member.Role = req.Role
		member.Permissions = req.Permissions
		return s.members.Update(ctx, member)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes a member. The last owner cannot be removed.
func (s *MerchantService) RemoveMember(ctx context.Context, merchantID, memberID, actorID string) error {
	var removed *domain.Member
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		owners, err := s.members.LockOwners(ctx, merchantID)
		if err != nil {
			return err
		}
		removed, err = s.members.Get(ctx, merchantID, memberID)
		if err != nil {
			return err
		}
		if removed.Role == permissions.RoleOwner && owners <= 1 {
			return errors.Conflict("the last owner cannot be removed")
		}
		return s.members.Remove(ctx, merchantID, memberID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, messaging.EventMemberRemoved, merchantID, messaging.MemberEvent{UserID: removed.UserID, Role: removed.Role, By: actorID})
	return nil
}

func validateMember(role string, perms []string) error {
	if !permissions.IsValidRole(role) {
		return errors.Validation(map[string]string{"role": "unknown role " + role})
	}
	return validateExtras(perms)
}

func validateExtras(perms []string) error {
	for _, p := range perms {
		if !permissions.IsValidPermission(p) {
			return errors.Validation(map[string]string{"permissions": "unknown permission " + p})
		}
	}
	return nil
}

// publish emits an event after commit; delivery failures are logged, not returned
func (s *MerchantService) publish(ctx context.Context, eventType, merchantID string, data interface{}) {
	if err := s.publisher.Publish(ctx, eventType, merchantID, data); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("merchant_id", merchantID).Msg("failed to publish event")
	}
}
