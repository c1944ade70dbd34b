package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	catalogdomain "github.com/qerbie/qerbie-backend/internal/catalog/domain"
	"github.com/qerbie/qerbie-backend/internal/order/domain"
	"github.com/qerbie/qerbie-backend/internal/order/repository"
	"github.com/qerbie/qerbie-backend/pkg/database"
	"github.com/qerbie/qerbie-backend/pkg/errors"
	"github.com/qerbie/qerbie-backend/pkg/logger"
	"github.com/qerbie/qerbie-backend/pkg/messaging"
	"github.com/qerbie/qerbie-backend/pkg/permissions"
)

// OrderStore is the order persistence the service needs
type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	AddHistory(ctx context.Context, c *domain.StatusChange) error
	GetByID(ctx context.Context, merchantID, id string) (*domain.Order, error)
	LockByID(ctx context.Context, merchantID, id string) (*domain.Order, error)
	GetForSession(ctx context.Context, merchantID, id, session string) (*domain.Order, error)
	ListForSession(ctx context.Context, merchantID, session string) ([]domain.Order, error)
	List(ctx context.Context, merchantID string, f repository.ListFilter, page, perPage int) ([]domain.Order, int64, error)
	Items(ctx context.Context, merchantID string, orderIDs []string) (map[string][]domain.Item, error)
	History(ctx context.Context, merchantID, orderID string) ([]domain.StatusChange, error)
	UpdateStatus(ctx context.Context, o *domain.Order, from string) (bool, error)
}

// ProductSource loads catalog products for pricing
type ProductSource interface {
	GetByIDs(ctx context.Context, merchantID string, ids []string) ([]catalogdomain.Product, error)
}

// OrderService places and tracks table orders
type OrderService struct {
	tx        database.Transactor
	tables    TableStore
	orders    OrderStore
	products  ProductSource
	publisher messaging.EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(tx database.Transactor, tables TableStore, orders OrderStore, products ProductSource, pub messaging.EventPublisher, log *logger.Logger) *OrderService {
	return &OrderService{
		tx:        tx,
		tables:    tables,
		orders:    orders,
		products:  products,
		publisher: pub,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LineRequest is one product of an order
type LineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

// PlaceOrderRequest represents a customer placing an order
type PlaceOrderRequest struct {
	CustomerName  string        `json:"customer_name" validate:"max=80"`
	CustomerPhone *string       `json:"customer_phone" validate:"omitempty,e164"`
	Notes         string        `json:"notes" validate:"max=500"`
	Items         []LineRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

// TransitionRequest represents a merchant status change
type TransitionRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed preparing ready delivered cancelled"`
}

// Place creates a pending order at a table. Prices are taken from the catalog at this moment.
func (s *OrderService) Place(ctx context.Context, merchantID, tableID, session string, req *PlaceOrderRequest) (*domain.Order, error) {
	requested := make([]domain.Line, 0, len(req.Items))
	for _, l := range req.Items {
		requested = append(requested, domain.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	lines, err := domain.MergeLines(requested)
	if err != nil {
		return nil, errors.Validation(map[string]string{"items": err.Error()})
	}

	now := s.now()
	o := &domain.Order{
		ID:              uuid.New().String(),
		MerchantID:      merchantID,
		TableID:         &tableID,
		CustomerSession: session,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   req.CustomerPhone,
		Status:          domain.StatusPending,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		ids := make([]string, len(lines))
		for i, l := range lines {
			ids[i] = l.ProductID
		}
		products, err := s.products.GetByIDs(ctx, merchantID, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]catalogdomain.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		o.Items = make([]domain.Item, 0, len(lines))
		for _, l := range lines {
			p, ok := byID[l.ProductID]
			if !ok || !p.IsAvailable {
				return errors.ProductUnavailable(l.ProductID)
			}
			productID := p.ID
			o.Items = append(o.Items, domain.Item{
				ID:             uuid.New().String(),
				OrderID:        o.ID,
				MerchantID:     merchantID,
				ProductID:      &productID,
				ProductName:    p.Name,
				UnitPriceCents: p.PriceCents,
				Quantity:       l.Quantity,
				CreatedAt:      now,
			})
		}
		o.TotalCents = domain.Total(o.Items)

		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		return s.orders.AddHistory(ctx, &domain.StatusChange{
			ID:         uuid.New().String(),
			OrderID:    o.ID,
			MerchantID: merchantID,
			ToStatus:   domain.StatusPending,
			ActorKind:  domain.ActorCustomer,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("merchant_id", merchantID).Str("order_id", o.ID).Int("total_cents", o.TotalCents).Msg("order placed")
	s.publish(ctx, messaging.EventOrderCreated, merchantID, orderEvent(o, "", nil))
	return o, nil
}

// GetForCustomer returns an order of the session with its items
func (s *OrderService) GetForCustomer(ctx context.Context, merchantID, orderID, session string) (*domain.Order, error) {
	var o *domain.Order
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetForSession(ctx, merchantID, orderID, session)
		if err != nil {
			return err
		}
		return s.attachItems(ctx, merchantID, []*domain.Order{o})
	})
	return o, err
}

// ListMine lists the session's recent orders at the merchant
func (s *OrderService) ListMine(ctx context.Context, merchantID, session string) ([]domain.Order, error) {
	var out []domain.Order
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, err = s.orders.ListForSession(ctx, merchantID, session)
		if err != nil {
			return err
		}
		return s.attachItems(ctx, merchantID, pointers(out))
	})
	return out, err
}

// CancelOwn lets the customer cancel an order the merchant has not confirmed yet
func (s *OrderService) CancelOwn(ctx context.Context, merchantID, orderID, session string) (*domain.Order, error) {
	var o *domain.Order
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		if o, err = s.orders.GetForSession(ctx, merchantID, orderID, session); err != nil {
			return err
		}
		if o.Status != domain.StatusPending {
			return errors.InvalidTransition(o.Status, domain.StatusCancelled)
		}
		return s.move(ctx, o, domain.StatusCancelled, nil, domain.ActorCustomer)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messaging.EventOrderStatusChanged, merchantID, orderEvent(o, domain.StatusPending, nil))
	return o, nil
}

// List lists a page of the merchant's orders
func (s *OrderService) List(ctx context.Context, merchantID string, f repository.ListFilter, page, perPage int) ([]domain.Order, int64, error) {
	if f.Status != "" && !domain.IsValidStatus(f.Status) {
		return nil, 0, errors.Validation(map[string]string{"status": "unknown status " + f.Status})
	}
	if f.TableID != "" {
		if _, err := uuid.Parse(f.TableID); err != nil {
			return nil, 0, errors.Validation(map[string]string{"table_id": "must be a valid UUID"})
		}
	}

	var out []domain.Order
	var total int64
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		out, total, err = s.orders.List(ctx, merchantID, f, page, perPage)
		if err != nil {
			return err
		}
		return s.attachItems(ctx, merchantID, pointers(out))
	})
	return out, total, err
}

// Get returns an order with its items and status history
func (s *OrderService) Get(ctx context.Context, merchantID, orderID string) (*domain.Order, error) {
	var o *domain.Order
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		if o, err = s.orders.GetByID(ctx, merchantID, orderID); err != nil {
			return err
		}
		if err := s.attachItems(ctx, merchantID, []*domain.Order{o}); err != nil {
			return err
		}
		o.History, err = s.orders.History(ctx, merchantID, orderID)
		return err
	})
	return o, err
}

// Transition applies a merchant status change. Cancelling needs orders.cancel,
// every other change needs orders.update_status.
func (s *OrderService) Transition(ctx context.Context, merchantID, orderID, actorID string, perms []string, req *TransitionRequest) (*domain.Order, error) {
	required := "orders.update_status"
	if req.Status == domain.StatusCancelled {
		required = "orders.cancel"
	}
	if !permissions.HasPermission(perms, required) {
		return nil, errors.Forbidden("missing permission " + required)
	}

	var o *domain.Order
	var prev string
	err := s.tx.WithMerchantRLS(ctx, merchantID, func(ctx context.Context) error {
		var err error
		if o, err = s.orders.LockByID(ctx, merchantID, orderID); err != nil {
			return err
		}
		if !domain.CanTransition(o.Status, req.Status) {
			return errors.InvalidTransition(o.Status, req.Status)
		}
		prev = o.Status
		return s.move(ctx, o, req.Status, &actorID, domain.ActorMerchant)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("order_id", o.ID).Str("from", prev).Str("to", o.Status).Str("by", actorID).Msg("order transition")
	s.publish(ctx, messaging.EventOrderStatusChanged, merchantID, orderEvent(o, prev, &actorID))
	return o, nil
}

// move writes the new status and its history row in the caller's transaction
func (s *OrderService) move(ctx context.Context, o *domain.Order, to string, actorID *string, kind string) error {
	from := o.Status
	now := s.now()
	o.Status = to
	o.UpdatedAt = now

	ok, err := s.orders.UpdateStatus(ctx, o, from)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Conflict("the order was changed by someone else")
	}
	return s.orders.AddHistory(ctx, &domain.StatusChange{
		ID:         uuid.New().String(),
		OrderID:    o.ID,
		MerchantID: o.MerchantID,
		FromStatus: &from,
		ToStatus:   to,
		ChangedBy:  actorID,
		ActorKind:  kind,
		CreatedAt:  now,
	})
}

func (s *OrderService) attachItems(ctx context.Context, merchantID string, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := s.orders.Items(ctx, merchantID, ids)
	if err != nil {
		return err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
		if o.Items == nil {
			o.Items = []domain.Item{}
		}
	}
	return nil
}

func pointers(orders []domain.Order) []*domain.Order {
	out := make([]*domain.Order, len(orders))
	for i := range orders {
		out[i] = &orders[i]
	}
	return out
}

func orderEvent(o *domain.Order, prev string, changedBy *string) messaging.OrderEvent {
	count := 0
	for _, i := range o.Items {
		count += i.Quantity
	}
	return messaging.OrderEvent{
		OrderID:        o.ID,
		TableID:        o.TableID,
		Status:         o.Status,
		PreviousStatus: prev,
		TotalCents:     o.TotalCents,
		ItemCount:      count,
		CustomerName:   o.CustomerName,
		CustomerPhone:  o.CustomerPhone,
		ChangedBy:      changedBy,
	}
}

func (s *OrderService) publish(ctx context.Context, eventType, merchantID string, data interface{}) {
	if err := s.publisher.Publish(ctx, eventType, merchantID, data); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Str("merchant_id", merchantID).Msg("failed to publish event")
	}
}
