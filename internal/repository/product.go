package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/store"
)

// ProductRepository moves the products collection. Read-modify-write callers
// must hold the products section for the whole call sequence; the repository
// itself does not lock.
type ProductRepository interface {
	List(ctx context.Context) ([]model.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	ReplaceAll(ctx context.Context, products []model.Product) error
}

type fileProductRepo struct {
	store *store.FileStore
}

func NewProductRepository(fs *store.FileStore) ProductRepository {
	return &fileProductRepo{store: fs}
}

func (r *fileProductRepo) List(_ context.Context) ([]model.Product, error) {
	return store.Load[model.Product](r.store, store.Products)
}

func (r *fileProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	products, err := store.Load[model.Product](r.store, store.Products)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, nil
}

func (r *fileProductRepo) Create(_ context.Context, product *model.Product) error {
	products, err := store.Load[model.Product](r.store, store.Products)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	product.ID = uuid.New()
	product.CreatedAt = now
	product.UpdatedAt = now
	products = append(products, *product)
	return store.Save(r.store, store.Products, products)
}

func (r *fileProductRepo) Update(_ context.Context, product *model.Product) error {
	products, err := store.Load[model.Product](r.store, store.Products)
	if err != nil {
		return err
	}
	for i := range products {
		if products[i].ID == product.ID {
			product.UpdatedAt = time.Now().UTC()
			products[i] = *product
			return store.Save(r.store, store.Products, products)
		}
	}
	return fmt.Errorf("update product %s: not in collection", product.ID)
}

func (r *fileProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	products, err := store.Load[model.Product](r.store, store.Products)
	if err != nil {
		return err
	}
	kept := products[:0]
	for _, p := range products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(products) {
		return fmt.Errorf("delete product %s: not in collection", id)
	}
	return store.Save(r.store, store.Products, kept)
}

func (r *fileProductRepo) ReplaceAll(_ context.Context, products []model.Product) error {
	return store.Save(r.store, store.Products, products)
}
