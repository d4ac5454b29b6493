package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fadechat/fadechat/internal/domain"
)

// Messages is the append-only bounded log per room.
type Messages struct {
	rdb *redis.Client
	max int64
}

func NewMessages(rdb *redis.Client, max int64) *Messages {
	return &Messages{rdb: rdb, max: max}
}

func messagesKey(id domain.RoomID) string { return "room:" + string(id) + ":messages" }

func (m *Messages) Append(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("message marshal: %w", err)
	}
	pipe := m.rdb.Pipeline()
	pipe.RPush(ctx, messagesKey(msg.RoomID), data)
	pipe.LTrim(ctx, messagesKey(msg.RoomID), -m.max, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("message append: %w", err)
	}
	return nil
}

func (m *Messages) Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]*domain.Message, error) {
	raw, err := m.rdb.LRange(ctx, messagesKey(roomID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("message range: %w", err)
	}
	out := make([]*domain.Message, 0, len(raw))
	for _, item := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("message unmarshal: %w", err)
		}
		out = append(out, &msg)
	}
	return out, nil
}

func (m *Messages) Drop(ctx context.Context, roomID domain.RoomID) error {
	if err := m.rdb.Del(ctx, messagesKey(roomID)).Err(); err != nil {
		return fmt.Errorf("message drop: %w", err)
	}
	return nil
}
