package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/store"
)

// CartRepository moves the carts collection, one cart per user. Callers hold
// the carts section across read-modify-write sequences.
type CartRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*model.Cart, error)
	Upsert(ctx context.Context, cart *model.Cart) error
}

type fileCartRepo struct {
	store *store.FileStore
}

func NewCartRepository(fs *store.FileStore) CartRepository {
	return &fileCartRepo{store: fs}
}

func (r *fileCartRepo) GetByUser(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	carts, err := store.Load[model.Cart](r.store, store.Carts)
	if err != nil {
		return nil, err
	}
	for i := range carts {
		if carts[i].UserID == userID {
			return &carts[i], nil
		}
	}
	return nil, nil
}

func (r *fileCartRepo) Upsert(_ context.Context, cart *model.Cart) error {
	carts, err := store.Load[model.Cart](r.store, store.Carts)
	if err != nil {
		return err
	}
	for i := range carts {
		if carts[i].UserID == cart.UserID {
			carts[i] = *cart
			return store.Save(r.store, store.Carts, carts)
		}
	}
	carts = append(carts, *cart)
	return store.Save(r.store, store.Carts, carts)
}
