// Package app 负责按配置组装存储与缓存，供各个命令复用。
package app

import (
	"fmt"

	"go.uber.org/zap"

	"tempmail/inbox/internal/cache"
	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/service"
	"tempmail/inbox/internal/storage"
	"tempmail/inbox/internal/storage/memory"
	redisstore "tempmail/inbox/internal/storage/redis"
	sqlstore "tempmail/inbox/internal/storage/sql"
)

// OpenStore 按配置选择存储，database.type 为空时使用内存存储
func OpenStore(cfg config.DatabaseConfig, log *zap.Logger) (storage.Store, error) {
	if cfg.Type == "" {
		log.Warn("using memory storage, data is lost on restart")
		return memory.NewStore(), nil
	}

	store, err := sqlstore.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Type, err)
	}
	log.Info("using database storage", zap.String("type", cfg.Type))
	return store, nil
}

// Cache 令牌缓存及其需要随进程释放的资源
type Cache struct {
	Address service.AddressCache // driver=none 时为 nil
	Redis   *redisstore.Client   // 仅 driver=redis 时非 nil

	closers []func()
}

// Close 释放缓存资源
func (c *Cache) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

// OpenCache 按 cache.driver 创建令牌缓存
func OpenCache(cfg *config.Config, log *zap.Logger) (*Cache, error) {
	c := &Cache{}
	switch cfg.Cache.Driver {
	case "", "none":
		log.Info("token cache disabled")
	case "local":
		local := cache.NewLocalCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		c.Address = local
		c.closers = append(c.closers, local.Close)
		log.Info("using in-process token cache",
			zap.Int("max_entries", cfg.Cache.MaxEntries),
			zap.Duration("ttl", cfg.Cache.TTL),
		)
	case "redis":
		client, err := redisstore.New(cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		c.Redis = client
		c.Address = redisstore.NewTokenCache(client, cfg.Cache.TTL, log)
		c.closers = append(c.closers, func() { _ = client.Close() })
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
	return c, nil
}
