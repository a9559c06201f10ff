package redis

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"tempmail/inbox/internal/domain"
)

const tokenKeyPrefix = "tempmail:address:"

// TokenCache 基于 Redis 的令牌到地址缓存（多实例共享）
//
// 键为令牌的 BLAKE2b 摘要，值中不保存令牌本身。
type TokenCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *zap.Logger
}

// cachedAddress 缓存中的地址记录
type cachedAddress struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewTokenCache 创建令牌缓存
func NewTokenCache(client *Client, ttl time.Duration, log *zap.Logger) *TokenCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenCache{
		rdb: client.Client(),
		ttl: ttl,
		log: log,
	}
}

// tokenKey 计算令牌对应的缓存键
func tokenKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return tokenKeyPrefix + hex.EncodeToString(sum[:])
}

// GetAddress 读取缓存，Redis 故障按未命中处理
func (c *TokenCache) GetAddress(ctx context.Context, token string) (*domain.Address, bool) {
	data, err := c.rdb.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("failed to read address cache", zap.Error(err))
		}
		return nil, false
	}

	var cached cachedAddress
	if err := json.Unmarshal(data, &cached); err != nil {
		c.log.Warn("discarding malformed address cache entry", zap.Error(err))
		return nil, false
	}

	return &domain.Address{
		ID:        cached.ID,
		Email:     cached.Email,
		Token:     token,
		CreatedAt: cached.CreatedAt,
		ExpiresAt: cached.ExpiresAt,
	}, true
}

// PutAddress 写入缓存，ttl <= 0 时使用默认过期时间
func (c *TokenCache) PutAddress(ctx context.Context, addr *domain.Address, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	data, err := json.Marshal(cachedAddress{
		ID:        addr.ID,
		Email:     addr.Email,
		CreatedAt: addr.CreatedAt,
		ExpiresAt: addr.ExpiresAt,
	})
	if err != nil {
		c.log.Warn("failed to encode address cache entry", zap.Error(err))
		return
	}

	if err := c.rdb.Set(ctx, tokenKey(addr.Token), data, ttl).Err(); err != nil {
		c.log.Warn("failed to write address cache", zap.Error(err))
	}
}
