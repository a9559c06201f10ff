package memory

import (
	"context"
	"sync"
	"time"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// Store 使用内存保存地址与邮件数据，主要用于开发验证和测试。
//
// 所有写操作在同一把互斥锁下完成，等价于数据库事务的全有或全无语义。
type Store struct {
	mu          sync.RWMutex
	addresses   map[string]*domain.Address    // addressID -> address
	byEmail     map[string]string             // email -> addressID
	byToken     map[string]string             // token -> addressID
	emails      map[string]*domain.Email      // emailID -> email
	recipients  map[string]*domain.Recipient  // recipientID -> recipient
	byLink      map[string]string             // emailID|addressID -> recipientID
	attachments map[string]*domain.Attachment // attachmentID -> attachment
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		addresses:   make(map[string]*domain.Address),
		byEmail:     make(map[string]string),
		byToken:     make(map[string]string),
		emails:      make(map[string]*domain.Email),
		recipients:  make(map[string]*domain.Recipient),
		byLink:      make(map[string]string),
		attachments: make(map[string]*domain.Attachment),
	}
}

func linkKey(emailID, addressID string) string {
	return emailID + "|" + addressID
}

// ========== Address Repository ==========

// CreateAddress 插入新地址
func (s *Store) CreateAddress(ctx context.Context, addr *domain.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertAddressLocked(addr)
}

// ReclaimAddress 回收已过期的同名地址并插入新地址
func (s *Store) ReclaimAddress(ctx context.Context, addr *domain.Address, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byEmail[addr.Email]; ok {
		existing := s.addresses[id]
		if !existing.IsExpired(now) {
			return domain.ErrAddressTaken
		}
		s.deleteAddressLocked(id)
	}

	return s.insertAddressLocked(addr)
}

func (s *Store) insertAddressLocked(addr *domain.Address) error {
	if _, ok := s.byEmail[addr.Email]; ok {
		return storage.ErrDuplicateAddress
	}
	if _, ok := s.byToken[addr.Token]; ok {
		return storage.ErrDuplicateAddress
	}

	copied := *addr
	s.addresses[addr.ID] = &copied
	s.byEmail[addr.Email] = addr.ID
	s.byToken[addr.Token] = addr.ID
	return nil
}

// deleteAddressLocked 删除地址及其所有收件关联，邮件本身保留
func (s *Store) deleteAddressLocked(id string) {
	addr, ok := s.addresses[id]
	if !ok {
		return
	}
	for rid, r := range s.recipients {
		if r.AddressID == id {
			delete(s.byLink, linkKey(r.EmailID, r.AddressID))
			delete(s.recipients, rid)
		}
	}
	delete(s.byEmail, addr.Email)
	delete(s.byToken, addr.Token)
	delete(s.addresses, id)
}

// AddressExists 判断 email 是否已被占用（包括已过期的记录）
func (s *Store) AddressExists(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

// GetAddressByToken 根据令牌获取地址（不判断是否过期）
func (s *Store) GetAddressByToken(ctx context.Context, token string) (*domain.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *s.addresses[id]
	return &copied, nil
}

// GetAddressByEmail 根据邮箱地址获取地址（不判断是否过期）
func (s *Store) GetAddressByEmail(ctx context.Context, email string) (*domain.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *s.addresses[id]
	return &copied, nil
}

// ========== Lifecycle Repository ==========

// DeleteExpiredAddresses 删除所有过期地址，返回删除数量
func (s *Store) DeleteExpiredAddresses(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, addr := range s.addresses {
		if !addr.ExpiresAt.After(now) {
			s.deleteAddressLocked(id)
			count++
		}
	}
	return count, nil
}

// DeleteOrphanedEmails 删除没有收件关联的邮件
func (s *Store) DeleteOrphanedEmails(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	linked := make(map[string]struct{}, len(s.recipients))
	for _, r := range s.recipients {
		linked[r.EmailID] = struct{}{}
	}

	count := 0
	for id := range s.emails {
		if _, ok := linked[id]; ok {
			continue
		}
		s.deleteEmailLocked(id)
		count++
	}
	return count, nil
}

// Close 内存存储无需释放资源
func (s *Store) Close() error {
	return nil
}

// Health 内存存储始终可用
func (s *Store) Health() error {
	return nil
}
