package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fadechat/fadechat/internal/domain"
)

// Rooms stores room records (TTL-bound) and the authoritative membership
// set per room (a hash of userId -> displayName, no TTL; it lives until
// the room is emptied and reaped).
type Rooms struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRooms(rdb *redis.Client, ttl time.Duration) *Rooms {
	return &Rooms{rdb: rdb, ttl: ttl}
}

const roomIndexKey = "rooms"

func roomKey(id domain.RoomID) string    { return "room:" + string(id) }
func membersKey(id domain.RoomID) string { return "room:" + string(id) + ":members" }

func (r *Rooms) CreateRoom(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("room marshal: %w", err)
	}
	// custom codes collide; SETNX keeps the first writer
	ok, err := r.rdb.SetNX(ctx, roomKey(room.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("room create: %w", err)
	}
	if !ok {
		return domain.ErrNameTaken
	}
	if err := r.rdb.SAdd(ctx, roomIndexKey, string(room.ID)).Err(); err != nil {
		return fmt.Errorf("room index: %w", err)
	}
	return nil
}

func (r *Rooms) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := r.rdb.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("room get: %w", err)
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("room unmarshal: %w", err)
	}
	return &room, nil
}

func (r *Rooms) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, roomKey(id), membersKey(id))
	pipe.SRem(ctx, roomIndexKey, string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("room delete: %w", err)
	}
	return nil
}

func (r *Rooms) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	ids, err := r.rdb.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("room list: %w", err)
	}
	out := make([]*domain.Room, 0, len(ids))
	for _, id := range ids {
		room, err := r.GetRoom(ctx, domain.RoomID(id))
		if err != nil {
			if errors.Is(err, domain.ErrRoomNotFound) {
				// record expired under us; drop the stale index entry
				_ = r.rdb.SRem(ctx, roomIndexKey, id).Err()
				continue
			}
			return nil, err
		}
		out = append(out, room)
	}
	return out, nil
}

// AddMember is an idempotent set add; writing the same member twice is a
// no-op by construction.
func (r *Rooms) AddMember(ctx context.Context, roomID domain.RoomID, m domain.Member) error {
	if err := r.rdb.HSet(ctx, membersKey(roomID), string(m.UserID), m.DisplayName).Err(); err != nil {
		return fmt.Errorf("member add: %w", err)
	}
	return nil
}

func (r *Rooms) RemoveMember(ctx context.Context, roomID domain.RoomID, uid domain.UserID) error {
	if err := r.rdb.HDel(ctx, membersKey(roomID), string(uid)).Err(); err != nil {
		return fmt.Errorf("member remove: %w", err)
	}
	return nil
}

func (r *Rooms) Members(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error) {
	raw, err := r.rdb.HGetAll(ctx, membersKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("members read: %w", err)
	}
	out := make([]domain.Member, 0, len(raw))
	for uid, name := range raw {
		out = append(out, domain.Member{UserID: domain.UserID(uid), DisplayName: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
