// Package presence mirrors connection and room state into redis so external
// dashboards can observe who is online without querying the gateway. The
// mirror is strictly best-effort: delivery never waits on it and every write
// failure is logged and forgotten. Routing always uses the in-memory registry.
package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetline/realtime/config"
)

const (
	onlineKey     = "presence:online"
	rolePrefix    = "presence:role:"
	roomKeyPrefix = "presence:room:"
)

type RedisMirror struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// Connect builds a mirror from config. An empty address returns (nil, nil):
// a nil *RedisMirror is a valid no-op mirror.
func Connect(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*RedisMirror, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisMirror{client: client, ttl: cfg.PresenceTTL, log: log}, nil
}

func (m *RedisMirror) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}

func (m *RedisMirror) UserOnline(ctx context.Context, userID, role string) {
	if m == nil {
		return
	}
	pipe := m.client.Pipeline()
	pipe.SAdd(ctx, onlineKey, userID)
	pipe.SAdd(ctx, rolePrefix+role, userID)
	pipe.Expire(ctx, onlineKey, m.ttl)
	pipe.Expire(ctx, rolePrefix+role, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		m.log.Warn("presence mirror write failed", "user_id", userID, "err", err)
	}
}

func (m *RedisMirror) UserOffline(ctx context.Context, userID string) {
	if m == nil {
		return
	}
	if err := m.client.SRem(ctx, onlineKey, userID).Err(); err != nil {
		m.log.Warn("presence mirror remove failed", "user_id", userID, "err", err)
	}
}

func (m *RedisMirror) RoomJoin(ctx context.Context, chatRoomID, userID string) {
	if m == nil {
		return
	}
	key := roomKeyPrefix + chatRoomID
	pipe := m.client.Pipeline()
	pipe.SAdd(ctx, key, userID)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		m.log.Warn("presence mirror room join failed", "room", chatRoomID, "err", err)
	}
}

func (m *RedisMirror) RoomLeave(ctx context.Context, chatRoomID, userID string) {
	if m == nil {
		return
	}
	if err := m.client.SRem(ctx, roomKeyPrefix+chatRoomID, userID).Err(); err != nil {
		m.log.Warn("presence mirror room leave failed", "room", chatRoomID, "err", err)
	}
}
