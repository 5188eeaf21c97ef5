package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltmart/storefront-api/internal/dto"
	"github.com/voltmart/storefront-api/internal/model"
)

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.authSvc.Register(context.Background(), dto.RegisterRequest{
		Email:     "alice@example.com",
		Password:  "password123",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, model.RoleCustomer, resp.User.Role)

	stored, err := env.userRepo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "password123", stored.Password, "password must be stored hashed")
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	req := dto.RegisterRequest{
		Email:     "alice@example.com",
		Password:  "password123",
		FirstName: "Alice",
		LastName:  "Smith",
	}

	_, err := env.authSvc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = env.authSvc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	// Email lookup is case-insensitive, so changing case is still a duplicate.
	req.Email = "ALICE@example.com"
	_, err = env.authSvc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.authSvc.Register(context.Background(), dto.RegisterRequest{
		Email:     "alice@example.com",
		Password:  "password123",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.NoError(t, err)

	resp, err := env.authSvc.Login(context.Background(), dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = env.authSvc.Login(context.Background(), dto.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.authSvc.Login(context.Background(), dto.LoginRequest{
		Email:    "nobody@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_TokenClaims(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.authSvc.Register(context.Background(), dto.RegisterRequest{
		Email:     "alice@example.com",
		Password:  "password123",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	require.NoError(t, err)

	token, err := jwt.Parse(resp.Token, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, resp.User.ID.String(), claims["sub"])
	assert.Equal(t, model.RoleCustomer, claims["role"])
	assert.NotZero(t, claims["exp"])
}
