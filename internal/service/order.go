package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/voltmart/storefront-api/internal/dto"
	"github.com/voltmart/storefront-api/internal/ledger"
	"github.com/voltmart/storefront-api/internal/metrics"
	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/repository"
	"github.com/voltmart/storefront-api/internal/store"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrMissingField      = errors.New("shipping address and payment method required")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrForbidden         = errors.New("admin access required")
)

// OrderService coordinates the order-fulfillment transaction: validate the
// cart against stock, decrement, append the order, empty the cart. All four
// steps run under one exclusive section over products, carts, and orders, so
// concurrent checkouts and stock edits observe them as a unit.
type OrderService struct {
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	sections    *store.Sections
	amqpCh      *amqp.Channel
	log         *slog.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	sections *store.Sections,
	amqpCh *amqp.Channel,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		sections:    sections,
		amqpCh:      amqpCh,
		log:         log,
	}
}

// PlaceOrder converts the user's cart into an order. On any validation
// failure the cart, catalog, and order log are untouched. Persistence order
// on success: products first (the decrement must be durable before the order
// records it), then the order, then the emptied cart. Losing the cart clear
// to a crash leaves stale cart content, which is recoverable, rather than
// corrupted stock.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, address model.Address, paymentMethod string) (*model.Order, error) {
	lockStart := time.Now()
	release, err := s.sections.Acquire(ctx, store.Products, store.Carts, store.Orders)
	if err != nil {
		return nil, err
	}
	defer release()
	metrics.SectionWait.Observe(time.Since(lockStart).Seconds())

	cart, err := s.cartRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		metrics.CheckoutRejections.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}
	if address.Empty() || paymentMethod == "" {
		return nil, ErrMissingField
	}

	catalog, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	requests := make([]ledger.Request, 0, len(cart.Items))
	for _, item := range cart.Items {
		requests = append(requests, ledger.Request{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	plan, err := ledger.Plan(requests, catalog)
	if err != nil {
		var nf *ledger.NotFoundError
		var short *ledger.InsufficientStockError
		switch {
		case errors.As(err, &nf):
			metrics.CheckoutRejections.WithLabelValues("product_missing").Inc()
		case errors.As(err, &short):
			metrics.CheckoutRejections.WithLabelValues("insufficient_stock").Inc()
		}
		return nil, err
	}

	now := time.Now().UTC()
	ledger.Apply(catalog, plan, now)

	// Line items freeze the pre-decrement snapshots from the plan.
	total := decimal.Zero
	items := make([]model.OrderLineItem, 0, len(plan))
	for _, res := range plan {
		total = total.Add(res.Product.Price.Mul(decimal.NewFromInt(int64(res.Quantity))))
		items = append(items, model.OrderLineItem{
			ProductID: res.Product.ID,
			Name:      res.Product.Name,
			Price:     res.Product.Price,
			Quantity:  res.Quantity,
			Image:     res.Product.Image,
		})
	}

	order := &model.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           items,
		Total:           total,
		ShippingAddress: address,
		PaymentMethod:   paymentMethod,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.productRepo.ReplaceAll(ctx, catalog); err != nil {
		return nil, fmt.Errorf("persist catalog: %w", err)
	}
	if err := s.orderRepo.Append(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	cart.Clear(now)
	if err := s.cartRepo.Upsert(ctx, cart); err != nil {
		return nil, fmt.Errorf("persist cart: %w", err)
	}
	release()

	metrics.OrdersPlaced.Inc()
	s.publishOrderPlaced(ctx, order)
	return order, nil
}

// publishOrderPlaced hands the committed order to the fulfillment queue.
// Best effort: the order is already durable, a lost event only delays the
// pending→processing hop.
func (s *OrderService) publishOrderPlaced(ctx context.Context, order *model.Order) {
	if s.amqpCh == nil {
		return
	}
	msg, err := json.Marshal(model.OrderMessage{OrderID: order.ID, UserID: order.UserID})
	if err != nil {
		return
	}
	err = s.amqpCh.PublishWithContext(ctx, "", orderQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.log.Error("publish order event", "order_id", order.ID, "error", err)
	}
}

const orderQueueName = "orders"

// UpdateStatus applies a status transition on an existing order. Only status
// and updatedAt are rewritten; line items and total never change.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, callerRole string) (*model.Order, error) {
	if callerRole != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	release, err := s.sections.Acquire(ctx, store.Orders)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !model.CanTransition(order.Status, status) {
		return nil, ErrInvalidStatus
	}

	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return order, nil
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID, role string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if role != model.RoleAdmin && order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

// ListForCaller returns the caller's orders, newest first. Admins see every
// order with the owning user's name and email joined in for display.
func (s *OrderService) ListForCaller(ctx context.Context, userID uuid.UUID, role string) ([]dto.OrderResponse, error) {
	var (
		orders []model.Order
		err    error
	)
	if role == model.RoleAdmin {
		orders, err = s.orderRepo.List(ctx)
	} else {
		orders, err = s.orderRepo.ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	var users map[uuid.UUID]model.User
	if role == model.RoleAdmin {
		all, err := s.userRepo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = make(map[uuid.UUID]model.User, len(all))
		for _, u := range all {
			users[u.ID] = u
		}
	}

	resp := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		r := ToOrderResponse(&o)
		if u, ok := users[o.UserID]; ok {
			r.UserName = u.FirstName + " " + u.LastName
			r.UserEmail = u.Email
		}
		resp = append(resp, r)
	}
	return resp, nil
}

// ToOrderResponse maps an order to its API shape.
func ToOrderResponse(order *model.Order) dto.OrderResponse {
	items := make([]dto.OrderLineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.OrderLineItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return dto.OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		Items:           items,
		Total:           order.Total,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		Status:          order.Status,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}
