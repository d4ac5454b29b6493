package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fadechat/fadechat/internal/domain"
)

// Pairing is the TTL-bounded waiting list for random pairing. The whole
// list expires together; Pop additionally skips entries older than the
// TTL so a half-expired list never matches a ghost.
type Pairing struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPairing(rdb *redis.Client, ttl time.Duration) *Pairing {
	return &Pairing{rdb: rdb, ttl: ttl}
}

const pairingKey = "pairing:queue"

func (p *Pairing) Push(ctx context.Context, e domain.PairingEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("pairing marshal: %w", err)
	}
	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, pairingKey, data)
	pipe.Expire(ctx, pairingKey, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pairing push: %w", err)
	}
	return nil
}

func (p *Pairing) Pop(ctx context.Context) (domain.PairingEntry, bool, error) {
	for {
		raw, err := p.rdb.LPop(ctx, pairingKey).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.PairingEntry{}, false, nil
			}
			return domain.PairingEntry{}, false, fmt.Errorf("pairing pop: %w", err)
		}
		var e domain.PairingEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return domain.PairingEntry{}, false, fmt.Errorf("pairing unmarshal: %w", err)
		}
		if time.Since(e.EnqueuedAt) > p.ttl {
			continue
		}
		return e, true, nil
	}
}

func (p *Pairing) Remove(ctx context.Context, uid domain.UserID) error {
	raw, err := p.rdb.LRange(ctx, pairingKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("pairing scan: %w", err)
	}
	for _, item := range raw {
		var e domain.PairingEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue
		}
		if e.UserID == uid {
			if err := p.rdb.LRem(ctx, pairingKey, 0, item).Err(); err != nil {
				return fmt.Errorf("pairing remove: %w", err)
			}
		}
	}
	return nil
}
