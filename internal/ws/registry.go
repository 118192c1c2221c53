package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chessroam/internal/signal"
)

// RedisRegistry keeps room occupancy in Redis with a per-room TTL so stale
// rooms expire on their own.
type RedisRegistry struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRegistry(rdb *redis.Client, ttlSec int) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, ttl: time.Duration(ttlSec) * time.Second}
}

func usersKey(roomID string) string {
	return fmt.Sprintf("voice:rooms:%s:users", roomID)
}

func userKey(roomID, userID string) string {
	return fmt.Sprintf("voice:users:%s:%s", roomID, userID)
}

func (r *RedisRegistry) AddUser(ctx context.Context, roomID string, user signal.RoomUser) error {
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, userKey(roomID, user.UserID), b, r.ttl)
	pipe.SAdd(ctx, usersKey(roomID), user.UserID)
	pipe.Expire(ctx, usersKey(roomID), r.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *RedisRegistry) RemoveUser(ctx context.Context, roomID, userID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.SRem(ctx, usersKey(roomID), userID)
	pipe.Del(ctx, userKey(roomID, userID))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisRegistry) ListUsers(ctx context.Context, roomID string) ([]signal.RoomUser, error) {
	ids, err := r.rdb.SMembers(ctx, usersKey(roomID)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []signal.RoomUser{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = userKey(roomID, id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	users := make([]signal.RoomUser, 0, len(ids))
	for _, val := range vals {
		s, ok := val.(string)
		if !ok {
			continue
		}
		var u signal.RoomUser
		if json.Unmarshal([]byte(s), &u) == nil {
			users = append(users, u)
		}
	}
	return users, nil
}
