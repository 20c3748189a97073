package cachesvc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/urfu-lab/studyhub/core/chat"
	testutil "github.com/urfu-lab/studyhub/tests"
)

// fakeRedis implements the GET and SET commands the cache issues.
type fakeRedis struct {
	redis.Cmdable
	data map[string]string
	ttl  time.Duration
	err  error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	v, ok := f.data[key]
	switch {
	case f.err != nil:
		cmd.SetErr(f.err)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.data[key] = string(value.([]byte))
	f.ttl = expiration
	cmd.SetVal("OK")
	return cmd
}

func TestRedisUserCache(t *testing.T) {
	rdb := &fakeRedis{data: make(map[string]string)}
	cache := NewRedisUserCache(rdb, 10*time.Minute, testutil.NopLogger{})
	ctx := context.Background()
	u := chat.User{
		ID:             uuid.New(),
		ExternalUserID: uuid.New(),
		Username:       "alice",
		FullName:       "Alice Smith",
		CreatedAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	_, ok := cache.GetUser(ctx, u.ExternalUserID)
	assert.False(t, ok)

	cache.SetUser(ctx, u)
	assert.Equal(t, 10*time.Minute, rdb.ttl)
	assert.Contains(t, rdb.data, "ml:user:"+u.ExternalUserID.String())

	got, ok := cache.GetUser(ctx, u.ExternalUserID)
	assert.True(t, ok)
	assert.Equal(t, u, got)

	rdb.data["ml:user:"+u.ExternalUserID.String()] = "{broken"
	_, ok = cache.GetUser(ctx, u.ExternalUserID)
	assert.False(t, ok)

	rdb.err = errors.New("connection refused")
	_, ok = cache.GetUser(ctx, u.ExternalUserID)
	assert.False(t, ok)
	cache.SetUser(ctx, u)
}
