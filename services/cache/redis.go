// Package cachesvc keeps the ML service's user mirror in redis.
package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/chat"
)

// Connect returns a client for addr after a successful ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

type RedisUserCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger core.Logger
}

var _ chat.UserCache = (*RedisUserCache)(nil)

func NewRedisUserCache(rdb redis.Cmdable, ttl time.Duration, logger core.Logger) *RedisUserCache {
	return &RedisUserCache{rdb: rdb, ttl: ttl, logger: logger}
}

func userKey(externalID uuid.UUID) string {
	return "ml:user:" + externalID.String()
}

// GetUser treats every failure as a miss.
func (c *RedisUserCache) GetUser(ctx context.Context, externalID uuid.UUID) (chat.User, bool) {
	data, err := c.rdb.Get(ctx, userKey(externalID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("redis GET failed", err, map[string]interface{}{"user": externalID.String()})
		}
		return chat.User{}, false
	}
	var u chat.User
	if err = json.Unmarshal(data, &u); err != nil {
		c.logger.Warn("cached user is corrupted", err, map[string]interface{}{"user": externalID.String()})
		return chat.User{}, false
	}
	return u, true
}

func (c *RedisUserCache) SetUser(ctx context.Context, u chat.User) {
	data, err := json.Marshal(u)
	if err != nil {
		c.logger.Error("marshaling user for cache", err)
		return
	}
	if err = c.rdb.Set(ctx, userKey(u.ExternalUserID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis SET failed", err, map[string]interface{}{"user": u.ExternalUserID.String()})
	}
}
