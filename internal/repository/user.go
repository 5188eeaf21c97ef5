package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voltmart/storefront-api/internal/model"
	"github.com/voltmart/storefront-api/internal/store"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

type fileUserRepo struct {
	store *store.FileStore
}

func NewUserRepository(fs *store.FileStore) UserRepository {
	return &fileUserRepo{store: fs}
}

func (r *fileUserRepo) Create(_ context.Context, user *model.User) error {
	users, err := store.Load[model.User](r.store, store.Users)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user.ID = uuid.New()
	user.CreatedAt = now
	user.UpdatedAt = now
	users = append(users, *user)
	return store.Save(r.store, store.Users, users)
}

func (r *fileUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	users, err := store.Load[model.User](r.store, store.Users)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (r *fileUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	users, err := store.Load[model.User](r.store, store.Users)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if strings.EqualFold(users[i].Email, email) {
			return &users[i], nil
		}
	}
	return nil, nil
}

func (r *fileUserRepo) List(_ context.Context) ([]model.User, error) {
	return store.Load[model.User](r.store, store.Users)
}
