package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
)

func TestTokenKey(t *testing.T) {
	key := tokenKey("secret-token")

	assert.True(t, strings.HasPrefix(key, tokenKeyPrefix))
	assert.NotContains(t, key, "secret-token")
	assert.Len(t, key, len(tokenKeyPrefix)+64)
	assert.Equal(t, key, tokenKey("secret-token"))
	assert.NotEqual(t, key, tokenKey("secret-token2"))
}

func TestNew_Unreachable(t *testing.T) {
	_, err := New(config.RedisConfig{Address: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}

// 不可用的 Redis 不影响调用方，只表现为未命中
func TestTokenCache_UnavailableIsMiss(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	cache := NewTokenCache(&Client{rdb: rdb}, time.Minute, nil)
	ctx := context.Background()

	cache.PutAddress(ctx, &domain.Address{ID: "a", Email: "a@tempmail.local", Token: "tok"}, 0)
	_, ok := cache.GetAddress(ctx, "tok")
	require.False(t, ok)
}
