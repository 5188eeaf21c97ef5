package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmart/storefront-api/internal/dto"
	"github.com/voltmart/storefront-api/internal/ledger"
	"github.com/voltmart/storefront-api/internal/model"
)

func TestPlaceOrder_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orderSvc.PlaceOrder(context.Background(), uuid.New(), testAddress(), "card")
	assert.ErrorIs(t, err, ErrEmptyCart)

	orders, listErr := env.orderRepo.List(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, orders, "a rejected checkout writes nothing")
}

func TestPlaceOrder_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "10.00", 5)
	userID := uuid.New()
	_, err := env.cartSvc.AddItem(context.Background(), userID, p.ID, 1)
	require.NoError(t, err)

	_, err = env.orderSvc.PlaceOrder(context.Background(), userID, model.Address{}, "card")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = env.orderSvc.PlaceOrder(context.Background(), userID, testAddress(), "")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestPlaceOrder_Success(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "19.99", 5)
	userID := uuid.New()
	_, err := env.cartSvc.AddItem(context.Background(), userID, p.ID, 3)
	require.NoError(t, err)

	order, err := env.orderSvc.PlaceOrder(context.Background(), userID, testAddress(), "card")
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.Equal(t, userID, order.UserID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Widget", order.Items[0].Name)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("59.97")), "total = 3 x 19.99, got %s", order.Total)

	assert.Equal(t, 2, env.productStock(t, p))

	cart, err := env.cartSvc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "cart emptied on success")

	persisted, err := env.orderRepo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.True(t, persisted.Total.Equal(order.Total))
}

func TestPlaceOrder_InsufficientStockLeavesEverythingUntouched(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "10.00", 2)
	userID := uuid.New()

	// Stock dropped after the items were added; the cart legally holds more
	// than is available and only checkout surfaces it.
	_, err := env.cartSvc.AddItem(context.Background(), userID, p.ID, 2)
	require.NoError(t, err)
	_, err = env.cartSvc.AddItem(context.Background(), userID, p.ID, 3)
	require.NoError(t, err)

	_, err = env.orderSvc.PlaceOrder(context.Background(), userID, testAddress(), "card")
	var short *ledger.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, p.ID, short.ProductID)
	assert.Equal(t, 2, short.Available)
	assert.Equal(t, 5, short.Requested)

	assert.Equal(t, 2, env.productStock(t, p), "stock unchanged")

	cart, err := env.cartSvc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity, "cart unchanged")

	orders, err := env.orderRepo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_ProductDeletedAfterAdd(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "10.00", 5)
	userID := uuid.New()
	_, err := env.cartSvc.AddItem(context.Background(), userID, p.ID, 1)
	require.NoError(t, err)

	require.NoError(t, env.productSvc.Delete(context.Background(), p.ID))

	_, err = env.orderSvc.PlaceOrder(context.Background(), userID, testAddress(), "card")
	var nf *ledger.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, p.ID, nf.ProductID)
}

func TestPlaceOrder_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Last Unit", "10.00", 1)

	userA, userB := uuid.New(), uuid.New()
	_, err := env.cartSvc.AddItem(context.Background(), userA, p.ID, 1)
	require.NoError(t, err)
	_, err = env.cartSvc.AddItem(context.Background(), userB, p.ID, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []uuid.UUID{userA, userB} {
		wg.Add(1)
		go func(i int, userID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = env.orderSvc.PlaceOrder(context.Background(), userID, testAddress(), "card")
		}(i, userID)
	}
	wg.Wait()

	var successes, shortfalls int
	for _, err := range errs {
		var short *ledger.InsufficientStockError
		switch {
		case err == nil:
			successes++
		case assert.ErrorAs(t, err, &short):
			shortfalls++
			assert.Equal(t, 0, short.Available)
		}
	}
	assert.Equal(t, 1, successes, "exactly one checkout wins the last unit")
	assert.Equal(t, 1, shortfalls)
	assert.Equal(t, 0, env.productStock(t, p))
}

func TestPlaceOrder_TotalFrozenAgainstLaterPriceChange(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "10.00", 5)
	userID := uuid.New()
	_, err := env.cartSvc.AddItem(context.Background(), userID, p.ID, 2)
	require.NoError(t, err)

	order, err := env.orderSvc.PlaceOrder(context.Background(), userID, testAddress(), "card")
	require.NoError(t, err)

	newPrice := decimal.RequireFromString("99.99")
	_, err = env.productSvc.Update(context.Background(), p.ID, dto.UpdateProductRequest{Price: &newPrice})
	require.NoError(t, err)

	persisted, err := env.orderRepo.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.True(t, persisted.Total.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, persisted.Items[0].Price.Equal(decimal.RequireFromString("10.00")),
		"line item keeps the price snapshot")
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "10.00", 5)
	userID := uuid.New()
	_, err := env.cartSvc.AddItem(context.Background(), userID, p.ID, 1)
	require.NoError(t, err)
	order, err := env.orderSvc.PlaceOrder(context.Background(), userID, testAddress(), "card")
	require.NoError(t, err)

	t.Run("non-admin is forbidden and status is untouched", func(t *testing.T) {
		_, err := env.orderSvc.UpdateStatus(context.Background(), order.ID, model.OrderStatusShipped, model.RoleCustomer)
		assert.ErrorIs(t, err, ErrForbidden)

		persisted, err := env.orderRepo.GetByID(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusPending, persisted.Status)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		_, err := env.orderSvc.UpdateStatus(context.Background(), order.ID, model.OrderStatus("refunded"), model.RoleAdmin)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := env.orderSvc.UpdateStatus(context.Background(), uuid.New(), model.OrderStatusShipped, model.RoleAdmin)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("admin transition rewrites only status and updatedAt", func(t *testing.T) {
		updated, err := env.orderSvc.UpdateStatus(context.Background(), order.ID, model.OrderStatusShipped, model.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusShipped, updated.Status)
		assert.True(t, updated.Total.Equal(order.Total))
		assert.Equal(t, order.Items, updated.Items)
		assert.True(t, updated.UpdatedAt.After(order.UpdatedAt))
	})
}

func TestGetByID_AccessControl(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "10.00", 5)
	owner := uuid.New()
	_, err := env.cartSvc.AddItem(context.Background(), owner, p.ID, 1)
	require.NoError(t, err)
	order, err := env.orderSvc.PlaceOrder(context.Background(), owner, testAddress(), "card")
	require.NoError(t, err)

	_, err = env.orderSvc.GetByID(context.Background(), order.ID, uuid.New(), model.RoleCustomer)
	assert.ErrorIs(t, err, ErrOrderAccessDenied)

	got, err := env.orderSvc.GetByID(context.Background(), order.ID, uuid.New(), model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = env.orderSvc.GetByID(context.Background(), uuid.New(), owner, model.RoleCustomer)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestListForCaller(t *testing.T) {
	env := newTestEnv(t)
	p := env.addProduct(t, "Widget", "10.00", 10)

	reg, err := env.authSvc.Register(context.Background(), dto.RegisterRequest{
		Email: "buyer@example.com", Password: "password123",
		FirstName: "Buyer", LastName: "One",
	})
	require.NoError(t, err)
	buyer := reg.User.ID

	_, err = env.cartSvc.AddItem(context.Background(), buyer, p.ID, 1)
	require.NoError(t, err)
	_, err = env.orderSvc.PlaceOrder(context.Background(), buyer, testAddress(), "card")
	require.NoError(t, err)

	stranger := uuid.New()
	mine, err := env.orderSvc.ListForCaller(context.Background(), stranger, model.RoleCustomer)
	require.NoError(t, err)
	assert.Empty(t, mine)

	all, err := env.orderSvc.ListForCaller(context.Background(), stranger, model.RoleAdmin)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Buyer One", all[0].UserName)
	assert.Equal(t, "buyer@example.com", all[0].UserEmail)
}
