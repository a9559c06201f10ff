package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"tempmail/inbox/internal/domain"
)

// LocalCache 本地内存地址缓存（L1 缓存），以令牌为键
//
// 特点：
// - 支持 TTL 过期
// - 后台定期清理过期条目
// - 容量限制（LRU 淘汰）
type LocalCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // 表头为最近使用
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	token     string
	addr      domain.Address
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数，<= 0 表示不限制
//   - ttl: 默认过期时间
func NewLocalCache(maxSize int, ttl time.Duration) *LocalCache {
	cache := &LocalCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	// 启动定期清理
	go cache.cleanupLoop(time.Minute)

	return cache
}

// SetClock 替换时间来源（测试用）
func (c *LocalCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// GetAddress 获取缓存的地址
func (c *LocalCache) GetAddress(_ context.Context, token string) (*domain.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[token]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}

	c.order.MoveToFront(elem)
	addr := entry.addr
	return &addr, true
}

// PutAddress 缓存地址，ttl <= 0 时使用默认过期时间
func (c *LocalCache) PutAddress(_ context.Context, addr *domain.Address, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if elem, ok := c.items[addr.Token]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.addr = *addr
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{token: addr.Token, addr: *addr, expiresAt: expiresAt})
	c.items[addr.Token] = elem

	for c.maxSize > 0 && c.order.Len() > c.maxSize {
		c.removeElement(c.order.Back())
	}
}

// Delete 删除缓存值
func (c *LocalCache) Delete(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[token]; ok {
		c.removeElement(elem)
	}
}

// Len 返回当前条目数（包括尚未清理的过期条目）
func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close 停止后台清理
func (c *LocalCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *LocalCache) removeElement(elem *list.Element) {
	entry := c.order.Remove(elem).(*cacheEntry)
	delete(c.items, entry.token)
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purgeExpired()
		}
	}
}

func (c *LocalCache) purgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*cacheEntry).expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}
