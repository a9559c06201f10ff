package service

import (
	"sync"
	"time"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/storage/storagetest"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: storagetest.Base}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// zeroReader 永远返回 0 字节，使随机地址固定为 "aaaaaaaa"
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func testAddressConfig() config.AddressConfig {
	return config.AddressConfig{
		Domains:              []string{"tempmail.local", "example.com"},
		Lifetime:             24 * time.Hour,
		AllowCustomUsernames: true,
		MinUsernameLength:    3,
		MaxUsernameLength:    64,
		ReservedUsernames:    config.DefaultReservedUsernames,
		MaxEmailsPerAddress:  100,
	}
}

func strPtr(s string) *string {
	return &s
}
