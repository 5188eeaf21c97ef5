package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/store"
)

// OrderRepository appends to and rewrites the orders collection. Orders are
// never removed; only status and updatedAt change after creation.
type OrderRepository interface {
	Append(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context) ([]model.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	Update(ctx context.Context, order *model.Order) error
}

type fileOrderRepo struct {
	store *store.FileStore
}

func NewOrderRepository(fs *store.FileStore) OrderRepository {
	return &fileOrderRepo{store: fs}
}

func (r *fileOrderRepo) Append(_ context.Context, order *model.Order) error {
	orders, err := store.Load[model.Order](r.store, store.Orders)
	if err != nil {
		return err
	}
	orders = append(orders, *order)
	return store.Save(r.store, store.Orders, orders)
}

func (r *fileOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	orders, err := store.Load[model.Order](r.store, store.Orders)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == id {
			return &orders[i], nil
		}
	}
	return nil, nil
}

func (r *fileOrderRepo) List(_ context.Context) ([]model.Order, error) {
	return store.Load[model.Order](r.store, store.Orders)
}

func (r *fileOrderRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	orders, err := store.Load[model.Order](r.store, store.Orders)
	if err != nil {
		return nil, err
	}
	var mine []model.Order
	for _, o := range orders {
		if o.UserID == userID {
			mine = append(mine, o)
		}
	}
	return mine, nil
}

func (r *fileOrderRepo) Update(_ context.Context, order *model.Order) error {
	orders, err := store.Load[model.Order](r.store, store.Orders)
	if err != nil {
		return err
	}
	for i := range orders {
		if orders[i].ID == order.ID {
			orders[i] = *order
			return store.Save(r.store, store.Orders, orders)
		}
	}
	return fmt.Errorf("update order %s: not in collection", order.ID)
}
