//go:build !integration

package postgres

import (
	"context"
	"time"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
	red "finance-copilot/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerUserRepo mocks the database repository that the User decorator wraps.
type mockInnerUserRepo struct {
	SaveFunc                    func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc                func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	FindByUsernameFunc          func(ctx context.Context, tx repository.Tx, username string) (*model.User, error)
	FindByEmailFunc             func(ctx context.Context, tx repository.Tx, email string) (*model.User, error)
	FindByVerificationTokenFunc func(ctx context.Context, tx repository.Tx, token string) (*model.User, error)
}

func (m *mockInnerUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	return m.SaveFunc(ctx, tx, u)
}
func (m *mockInnerUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerUserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	return m.FindByUsernameFunc(ctx, tx, username)
}
func (m *mockInnerUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return m.FindByEmailFunc(ctx, tx, email)
}
func (m *mockInnerUserRepo) FindByVerificationToken(ctx context.Context, tx repository.Tx, token string) (*model.User, error) {
	return m.FindByVerificationTokenFunc(ctx, tx, token)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error { return m.PingFunc(ctx) }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error { return m.CloseFunc() }
