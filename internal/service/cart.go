package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voltmart/storefront-api/internal/ledger"
	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/repository"
	"github.com/voltmart/storefront-api/internal/store"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
)

// CartService owns the per-user cart aggregate. Mutations take the carts
// section because every write replaces the whole carts collection. Stock is
// checked here only as a courtesy to the caller; the cart may legally hold
// quantities exceeding live stock, and checkout is the sole authority.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	sections    *store.Sections
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, sections *store.Sections) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo, sections: sections}
}

// GetCart returns the user's cart. A user who never added anything gets an
// empty cart value; nothing is persisted by a read.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*model.Cart, error) {
	cart, err := s.cartRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return &model.Cart{UserID: userID}, nil
	}
	return cart, nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if product.Stock < quantity {
		return nil, &ledger.InsufficientStockError{
			ProductID: productID,
			Available: product.Stock,
			Requested: quantity,
		}
	}

	release, err := s.sections.Acquire(ctx, store.Carts)
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now().UTC()
	cart, err := s.cartRepo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		cart = &model.Cart{UserID: userID, CreatedAt: now}
	}
	cart.AddItem(productID, quantity, now)

	if err := s.cartRepo.Upsert(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	release, err := s.sections.Acquire(ctx, store.Carts)
	if err != nil {
		return err
	}
	defer release()

	cart, err := s.cartRepo.GetByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return ErrCartNotFound
	}
	item := cart.Item(itemID)
	if item == nil {
		return ErrCartItemNotFound
	}

	// Courtesy stock check against the referenced product. A product deleted
	// after the add simply skips the check; checkout settles it.
	product, err := s.productRepo.GetByID(ctx, item.ProductID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product != nil && product.Stock < quantity {
		return &ledger.InsufficientStockError{
			ProductID: product.ID,
			Available: product.Stock,
			Requested: quantity,
		}
	}

	cart.SetQuantity(itemID, quantity, time.Now().UTC())
	if err := s.cartRepo.Upsert(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// RemoveItem is idempotent: removing an absent line, or a line from a user
// with no cart, succeeds without effect.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	release, err := s.sections.Acquire(ctx, store.Carts)
	if err != nil {
		return err
	}
	defer release()

	cart, err := s.cartRepo.GetByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart == nil || cart.Item(itemID) == nil {
		return nil
	}

	cart.RemoveItem(itemID, time.Now().UTC())
	if err := s.cartRepo.Upsert(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	release, err := s.sections.Acquire(ctx, store.Carts)
	if err != nil {
		return err
	}
	defer release()

	cart, err := s.cartRepo.GetByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil
	}

	cart.Clear(time.Now().UTC())
	if err := s.cartRepo.Upsert(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
