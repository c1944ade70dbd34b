package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qerbie/qerbie-backend/internal/catalog/domain"
	"github.com/qerbie/qerbie-backend/internal/catalog/repository"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/logger"
)

// ProductStore is the product persistence the service needs
type ProductStore interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, merchantID, id string) (*domain.Product, error)
	List(ctx context.Context, merchantID string, f repository.ListFilter) ([]domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, merchantID, id string) error
}

// CatalogService manages products and renders the public menu
type CatalogService struct {
	tx       database.Transactor
	products ProductStore
	logger   *logger.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(tx database.Transactor, products ProductStore, log *logger.Logger) *CatalogService {
	return &CatalogService{
		tx:       tx,
		products: products,
		logger:   log,
	}
}

// CreateProductRequest represents a product creation request
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=120"`
	Description string  `json:"description" validate:"max=1000"`
	Category    string  `json:"category" validate:"max=60"`
	PriceCents  int     `json:"price_cents" validate:"money"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url,max=500"`
	IsAvailable *bool   `json:"is_available"`
	SortOrder   int     `json:"sort_order" validate:"min=0,max=10000"`
}

// UpdateProductRequest represents a partial product update
type UpdateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Category    *string `json:"category" validate:"omitempty,max=60"`
	PriceCents  *int    `json:"price_cents" validate:"omitempty,money"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url,max=500"`
	IsAvailable *bool   `json:"is_available"`
	SortOrder   *int    `json:"sort_order" validate:"omitempty,min=0,max=10000"`
}

// Create adds a product to the merchant's catalog
func (s *CatalogService) Create(ctx context.Context, merchantID string, req *CreateProductRequest) (*domain.Product, error) {
	now := time.Now().UTC()
	p := &domain.Product{
		ID:          uuid.New().String(),
		MerchantID:  merchantID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		PriceCents:  req.PriceCents,
		ImageURL:    req.ImageURL,
		IsAvailable: true,
		SortOrder:   req.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}

	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.products.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("merchant_id", merchantID).Str("product_id", p.ID).Msg("product created")
	return p, nil
}

// Get returns a product
func (s *CatalogService) Get(ctx context.Context, merchantID, productID string) (*domain.Product, error) {
	var p *domain.Product
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		p, err = s.products.GetByID(ctx, merchantID, productID)
		return err
	})
	return p, err
}

// List lists the merchant's products, optionally filtered by category
func (s *CatalogService) List(ctx context.Context, merchantID, category string) ([]domain.Product, error) {
	var out []domain.Product
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.products.List(ctx, merchantID, repository.ListFilter{Category: category})
		return err
	})
	return out, err
}

// Update applies a partial update to a product
func (s *CatalogService) Update(ctx context.Context, merchantID, productID string, req *UpdateProductRequest) (*domain.Product, error) {
	var p *domain.Product
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		p, err = s.products.GetByID(ctx, merchantID, productID)
		if err != nil {
			return err
		}
		if req.Name != nil {
			p.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			p.Description = strings.TrimSpace(*req.Description)
		}
		if req.Category != nil {
			p.Category = strings.TrimSpace(*req.Category)
		}
		if req.PriceCents != nil {
			p.PriceCents = *req.PriceCents
		}
		if req.ImageURL != nil {
			p.ImageURL = req.ImageURL
		}
		if req.IsAvailable != nil {
			p.IsAvailable = *req.IsAvailable
		}
		if req.SortOrder != nil {
			p.SortOrder = *req.SortOrder
		}
		return s.products.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a product
func (s *CatalogService) Delete(ctx context.Context, merchantID, productID string) error {
	return s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		return s.products.Delete(ctx, merchantID, productID)
	})
}

// Menu returns the available products of a merchant grouped by category
func (s *CatalogService) Menu(ctx context.Context, merchantID string) ([]domain.MenuCategory, error) {
	var products []domain.Product
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		products, err = s.products.List(ctx, merchantID, repository.ListFilter{AvailableOnly: true})
		return err
	})
	if err != nil {
		return nil, err
	}
	return domain.GroupMenu(products), nil
}
