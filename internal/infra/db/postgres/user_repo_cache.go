package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
	"finance-copilot/internal/infra/metrics"
	red "finance-copilot/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches FindByID, which runs on every authenticated
// request. Lookups used by login and registration go straight to the store.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration) repository.UserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &userRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func userIDKey(id string) string { return fmt.Sprintf("user:id:%s", id) }

func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	_ = d.cache.Del(ctx, userIDKey(u.ID))
	return d.inner.Save(ctx, tx, u)
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	key := userIDKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest(metrics.CacheUser, true)
			return &user, nil
		}
	}

	metrics.IncCacheRequest(metrics.CacheUser, false)
	user, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if user != nil {
		bytes, _ := json.Marshal(user)
		_ = d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return user, nil
}

func (d *userRepoCacheDecorator) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	return d.inner.FindByUsername(ctx, tx, username)
}

func (d *userRepoCacheDecorator) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return d.inner.FindByEmail(ctx, tx, email)
}

func (d *userRepoCacheDecorator) FindByVerificationToken(ctx context.Context, tx repository.Tx, token string) (*model.User, error) {
	return d.inner.FindByVerificationToken(ctx, tx, token)
}
