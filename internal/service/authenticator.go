package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/monitoring"
)

// AddressLookup 根据令牌查找有效地址
type AddressLookup interface {
	Lookup(ctx context.Context, token string) (*domain.Address, error)
}

// AddressCache 令牌到地址的缓存，实现方需自行处理底层故障（按未命中返回）
type AddressCache interface {
	GetAddress(ctx context.Context, token string) (*domain.Address, bool)
	PutAddress(ctx context.Context, addr *domain.Address, ttl time.Duration)
}

// Authenticator 将访问令牌解析为有效地址。
//
// 缓存条目的有效期不超过地址剩余寿命，命中后仍会重新判断是否过期。
type Authenticator struct {
	lookup  AddressLookup
	cache   AddressCache
	ttl     time.Duration
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// NewAuthenticator 创建令牌认证服务，cache 可以为 nil
func NewAuthenticator(lookup AddressLookup, cache AddressCache, ttl time.Duration, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{
		lookup: lookup,
		cache:  cache,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

// SetClock 替换时间来源（测试用）
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
}

// SetMetrics 设置监控指标
func (a *Authenticator) SetMetrics(m *monitoring.Metrics) {
	a.metrics = m
}

// Authenticate 校验令牌
//
// 空令牌、未知令牌与过期令牌返回同一个 domain.ErrNotFound。
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*domain.Address, error) {
	if token == "" {
		a.recordFailure()
		return nil, domain.ErrNotFound
	}

	now := a.now()
	if a.cache != nil {
		if addr, ok := a.cache.GetAddress(ctx, token); ok {
			if addr.IsExpired(now) {
				a.recordFailure()
				return nil, domain.ErrNotFound
			}
			return addr, nil
		}
	}

	addr, err := a.lookup.Lookup(ctx, token)
	if err != nil {
		a.recordFailure()
		return nil, err
	}

	if a.cache != nil {
		if ttl := a.entryTTL(addr, now); ttl > 0 {
			a.cache.PutAddress(ctx, addr, ttl)
		}
	}
	return addr, nil
}

// entryTTL 缓存有效期取配置值与地址剩余寿命中较小者
func (a *Authenticator) entryTTL(addr *domain.Address, now time.Time) time.Duration {
	ttl := addr.TTL(now)
	if a.ttl > 0 && a.ttl < ttl {
		ttl = a.ttl
	}
	return ttl
}

func (a *Authenticator) recordFailure() {
	if a.metrics != nil {
		a.metrics.RecordAuthFailure()
	}
}
