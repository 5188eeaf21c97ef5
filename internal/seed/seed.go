// Package seed bootstraps empty collections with a default admin, a demo
// customer, and a small catalog so a fresh checkout works end to end.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/store"
)

// Run writes default users and products if their collections are empty.
// Idempotent: collections with any content are left untouched.
func Run(ctx context.Context, fs *store.FileStore, sections *store.Sections, log *slog.Logger) error {
	release, err := sections.Acquire(ctx, store.Users, store.Products)
	if err != nil {
		return err
	}
	defer release()

	users, err := store.Load[model.User](fs, store.Users)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	if len(users) == 0 {
		seeded, err := defaultUsers()
		if err != nil {
			return err
		}
		if err := store.Save(fs, store.Users, seeded); err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		log.Info("seeded default users", "count", len(seeded))
	}

	products, err := store.Load[model.Product](fs, store.Products)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	if len(products) == 0 {
		seeded := defaultProducts()
		if err := store.Save(fs, store.Products, seeded); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
		log.Info("seeded default products", "count", len(seeded))
	}
	return nil
}

func defaultUsers() ([]model.User, error) {
	now := time.Now().UTC()
	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	customerHash, err := bcrypt.GenerateFromPassword([]byte("user123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash customer password: %w", err)
	}
	return []model.User{
		{
			ID:        uuid.New(),
			Email:     "admin@voltmart.dev",
			Password:  string(adminHash),
			FirstName: "Store",
			LastName:  "Admin",
			Role:      model.RoleAdmin,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:        uuid.New(),
			Email:     "user@example.com",
			Password:  string(customerHash),
			FirstName: "John",
			LastName:  "Doe",
			Role:      model.RoleCustomer,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}, nil
}

func defaultProducts() []model.Product {
	now := time.Now().UTC()
	catalog := []struct {
		name, description, category, image string
		price                              string
		stock                              int
		featured                           bool
	}{
		{"Wireless Headphones", "Premium noise-cancelling wireless headphones with 30-hour battery life", "Electronics", "https://images.unsplash.com/photo-1505740420928-5e560c06d30e?w=500", "199.99", 50, true},
		{"Smart Watch", "Fitness tracking smartwatch with heart rate monitor and GPS", "Electronics", "https://images.unsplash.com/photo-1523275335684-37898b6baf30?w=500", "299.99", 30, true},
		{"Laptop Backpack", "Durable waterproof backpack with laptop compartment", "Accessories", "https://images.unsplash.com/photo-1553062407-98eeb64c6a62?w=500", "79.99", 100, false},
		{"Mechanical Keyboard", "RGB backlit mechanical gaming keyboard with custom switches", "Electronics", "https://images.unsplash.com/photo-1587829741301-dc798b83add3?w=500", "149.99", 45, true},
		{"USB-C Hub", "7-in-1 USB-C hub with HDMI, USB 3.0, and SD card reader", "Accessories", "https://images.unsplash.com/photo-1625948515291-69613efd103f?w=500", "49.99", 75, false},
		{"Wireless Mouse", "Ergonomic wireless mouse with precision tracking", "Electronics", "https://images.unsplash.com/photo-1527814050087-3793815479db?w=500", "39.99", 120, false},
		{"Phone Stand", "Adjustable aluminum phone stand for desk", "Accessories", "https://images.unsplash.com/photo-1601784551446-20c9e07cdbdb?w=500", "24.99", 200, false},
		{"Bluetooth Speaker", "Portable waterproof Bluetooth speaker with 360-degree sound", "Electronics", "https://images.unsplash.com/photo-1608043152269-423dbba4e7e1?w=500", "89.99", 60, true},
	}

	products := make([]model.Product, 0, len(catalog))
	for _, c := range catalog {
		products = append(products, model.Product{
			ID:          uuid.New(),
			Name:        c.name,
			Description: c.description,
			Price:       decimal.RequireFromString(c.price),
			Category:    c.category,
			Image:       c.image,
			Stock:       c.stock,
			Featured:    c.featured,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return products
}
