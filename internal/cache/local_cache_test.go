package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/inbox/internal/domain"
)

func newAddr(token string) *domain.Address {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Address{
		ID:        "id-" + token,
		Email:     token + "@tempmail.local",
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestLocalCache_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(10, time.Minute)
	defer c.Close()

	_, ok := c.GetAddress(ctx, "missing")
	assert.False(t, ok)

	addr := newAddr("abc")
	c.PutAddress(ctx, addr, 0)

	got, ok := c.GetAddress(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, addr.Email, got.Email)

	// 返回副本
	got.Email = "changed"
	again, ok := c.GetAddress(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, addr.Email, again.Email)

	c.Delete("abc")
	_, ok = c.GetAddress(ctx, "abc")
	assert.False(t, ok)
}

func TestLocalCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(10, time.Minute)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	c.PutAddress(ctx, newAddr("short"), 10*time.Second)
	c.PutAddress(ctx, newAddr("default"), 0)

	now = now.Add(30 * time.Second)
	_, ok := c.GetAddress(ctx, "short")
	assert.False(t, ok)
	_, ok = c.GetAddress(ctx, "default")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	c.purgeExpired()
	assert.Zero(t, c.Len())
}

func TestLocalCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCache(2, time.Minute)
	defer c.Close()

	c.PutAddress(ctx, newAddr("a"), 0)
	c.PutAddress(ctx, newAddr("b"), 0)

	// 访问 a 使其成为最近使用
	_, ok := c.GetAddress(ctx, "a")
	require.True(t, ok)

	c.PutAddress(ctx, newAddr("c"), 0)
	assert.Equal(t, 2, c.Len())

	_, ok = c.GetAddress(ctx, "b")
	assert.False(t, ok)
	_, ok = c.GetAddress(ctx, "a")
	assert.True(t, ok)
	_, ok = c.GetAddress(ctx, "c")
	assert.True(t, ok)
}

func TestLocalCache_CloseIdempotent(t *testing.T) {
	c := NewLocalCache(1, time.Minute)
	c.Close()
	assert.NotPanics(t, c.Close)
}
