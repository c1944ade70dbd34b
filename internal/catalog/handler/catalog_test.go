package handler_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/qerbie/qerbie-backend/internal/catalog/domain"
	"github.com/qerbie/qerbie-backend/internal/catalog/handler"
	"github.com/qerbie/qerbie-backend/internal/catalog/service"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/tenant"
	"github.com/qerbie/qerbie-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, merchantID string, req *service.CreateProductRequest) (*domain.Product, error) {
	args := m.Called(ctx, merchantID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockService) Get(ctx context.Context, merchantID, productID string) (*domain.Product, error) {
	args := m.Called(ctx, merchantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockService) List(ctx context.Context, merchantID, category string) ([]domain.Product, error) {
	args := m.Called(ctx, merchantID, category)
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockService) Update(ctx context.Context, merchantID, productID string, req *service.UpdateProductRequest) (*domain.Product, error) {
	args := m.Called(ctx, merchantID, productID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockService) Delete(ctx context.Context, merchantID, productID string) error {
	return m.Called(ctx, merchantID, productID).Error(0)
}

func (m *mockService) Menu(ctx context.Context, merchantID string) ([]domain.MenuCategory, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).([]domain.MenuCategory), args.Error(1)
}

var cafe = tenant.Merchant{ID: "6b0c1b8e-3f1f-4c58-9d4f-0a3c2f7d9e11", Slug: "cafe", Name: "Cafe", BusinessType: "restaurant"}

func TestCreate_RejectsNegativePrice(t *testing.T) {
	svc := new(mockService)
	h := handler.NewCatalogHandler(svc, "https://app.qerbie.test", logger.Nop())

	req := testutil.NewHTTPRequest(http.MethodPost, "/products", map[string]interface{}{"name": "Espresso", "price_cents": -1})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Create), testutil.WithMerchant(req, cafe, "*"))

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "VALIDATION_ERROR")
	testutil.AssertBodyContains(t, rr, "price_cents")
}

func TestCreate_FormPost(t *testing.T) {
	svc := new(mockService)
	h := handler.NewCatalogHandler(svc, "https://app.qerbie.test", logger.Nop())

	svc.On("Create", mock.Anything, cafe.ID, mock.MatchedBy(func(r *service.CreateProductRequest) bool {
		return r.Name == "Espresso" && r.PriceCents == 600 && r.IsAvailable != nil && *r.IsAvailable
	})).Return(&domain.Product{ID: "p-1"}, nil)

	req := testutil.NewFormRequest("/products", url.Values{
		"name":         {"Espresso"},
		"price_cents":  {"600"},
		"is_available": {"on"},
	})
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Create), testutil.WithMerchant(req, cafe, "*"))

	testutil.AssertStatus(t, rr, http.StatusSeeOther)
	assert.Equal(t, "https://app.qerbie.test/merchants/"+cafe.ID+"/products", rr.Header().Get("Location"))
	svc.AssertExpectations(t)
}

func TestMenu(t *testing.T) {
	svc := new(mockService)
	h := handler.NewCatalogHandler(svc, "https://app.qerbie.test", logger.Nop())

	svc.On("Menu", mock.Anything, cafe.ID).Return([]domain.MenuCategory{
		{Name: "Coffee", Products: []domain.MenuProduct{{ID: "p-1", Name: "Espresso", PriceCents: 600}}},
	}, nil)

	req := testutil.WithMerchant(testutil.NewHTTPRequest(http.MethodGet, "/p/tok/menu", nil), cafe)
	rr := testutil.ExecuteRequest(http.HandlerFunc(h.Menu), req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"name":"Coffee"`)
	testutil.AssertBodyContains(t, rr, `"price_cents":600`)
}
