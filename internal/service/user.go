package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/voltmart/storefront-api/internal/dto"
	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/repository"
)

// UserService backs the admin views: user listing and storefront totals.
type UserService struct {
	userRepo    repository.UserRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
}

func NewUserService(userRepo repository.UserRepository, orderRepo repository.OrderRepository, productRepo repository.ProductRepository) *UserService {
	return &UserService{userRepo: userRepo, orderRepo: orderRepo, productRepo: productRepo}
}

// List returns every user without password hashes.
func (s *UserService) List(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return resp, nil
}

// Stats aggregates storefront totals for the admin dashboard. Pure reads, so
// no exclusive section; the numbers are a point-in-time snapshot.
func (s *UserService) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	orders, err := s.orderRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	revenue := decimal.Zero
	byStatus := make(map[model.OrderStatus]int)
	for _, o := range orders {
		revenue = revenue.Add(o.Total)
		byStatus[o.Status]++
	}

	return &dto.StatsResponse{
		TotalUsers:     len(users),
		TotalOrders:    len(orders),
		TotalRevenue:   revenue,
		TotalProducts:  len(products),
		OrdersByStatus: byStatus,
	}, nil
}
