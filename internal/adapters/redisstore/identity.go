package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fadechat/fadechat/internal/domain"
)

// Identity maps user ids to display names with a liveness TTL, plus a
// lowercase name index enforcing display-name uniqueness.
type Identity struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdentity(rdb *redis.Client, ttl time.Duration) *Identity {
	return &Identity{rdb: rdb, ttl: ttl}
}

func userKey(id domain.UserID) string { return "user:" + string(id) }
func nameKey(name string) string      { return "username:" + strings.ToLower(name) }

func (i *Identity) CreateUser(ctx context.Context, user *domain.User) error {
	// the name index is the uniqueness lock; SETNX loses races cleanly
	ok, err := i.rdb.SetNX(ctx, nameKey(user.DisplayName), string(user.ID), i.ttl).Result()
	if err != nil {
		return fmt.Errorf("identity create: %w", err)
	}
	if !ok {
		return domain.ErrNameTaken
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("identity marshal: %w", err)
	}
	if err := i.rdb.Set(ctx, userKey(user.ID), data, i.ttl).Err(); err != nil {
		return fmt.Errorf("identity create: %w", err)
	}
	return nil
}

func (i *Identity) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	data, err := i.rdb.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("identity get: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("identity unmarshal: %w", err)
	}
	return &user, nil
}

func (i *Identity) DeleteUser(ctx context.Context, id domain.UserID) error {
	user, err := i.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if err := i.rdb.Del(ctx, userKey(id), nameKey(user.DisplayName)).Err(); err != nil {
		return fmt.Errorf("identity delete: %w", err)
	}
	return nil
}

// RefreshLiveness pushes the record's expiry out by the retention window.
func (i *Identity) RefreshLiveness(ctx context.Context, id domain.UserID) error {
	user, err := i.GetUser(ctx, id)
	if err != nil {
		return err
	}
	pipe := i.rdb.Pipeline()
	pipe.Expire(ctx, userKey(id), i.ttl)
	pipe.Expire(ctx, nameKey(user.DisplayName), i.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("identity refresh: %w", err)
	}
	return nil
}

func (i *Identity) NameTaken(ctx context.Context, displayName string) (bool, error) {
	n, err := i.rdb.Exists(ctx, nameKey(displayName)).Result()
	if err != nil {
		return false, fmt.Errorf("identity name check: %w", err)
	}
	return n > 0, nil
}
