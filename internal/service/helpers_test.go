package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/repository"
	"github.com/voltmart/storefront-api/internal/store"
)

// testEnv wires the services over a real file store in a temp dir, so the
// tests exercise the same load-mutate-save paths production runs.
type testEnv struct {
	fs          *store.FileStore
	sections    *store.Sections
	productRepo repository.ProductRepository
	cartRepo    repository.CartRepository
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	cartSvc     *CartService
	orderSvc    *OrderService
	productSvc  *ProductService
	authSvc     *AuthService
	userSvc     *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	sections := store.NewSections(2 * time.Second)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		fs:          fs,
		sections:    sections,
		productRepo: repository.NewProductRepository(fs),
		cartRepo:    repository.NewCartRepository(fs),
		orderRepo:   repository.NewOrderRepository(fs),
		userRepo:    repository.NewUserRepository(fs),
	}
	env.cartSvc = NewCartService(env.cartRepo, env.productRepo, sections)
	env.orderSvc = NewOrderService(env.orderRepo, env.cartRepo, env.productRepo, env.userRepo, sections, nil, log)
	env.productSvc = NewProductService(env.productRepo, sections, nil)
	env.authSvc = NewAuthService(env.userRepo, sections, "test-secret", time.Hour)
	env.userSvc = NewUserService(env.userRepo, env.orderRepo, env.productRepo)
	return env
}

func (e *testEnv) addProduct(t *testing.T, name, price string, stock int) model.Product {
	t.Helper()
	p := &model.Product{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	require.NoError(t, e.productRepo.Create(context.Background(), p))
	return *p
}

func (e *testEnv) productStock(t *testing.T, p model.Product) int {
	t.Helper()
	got, err := e.productRepo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got.Stock
}

func testAddress() model.Address {
	return model.Address{
		FullName:   "John Doe",
		Street:     "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}
}
