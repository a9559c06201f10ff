package storage

import (
	"context"
	"errors"
	"time"

	"tempmail/inbox/internal/domain"
)

var (
	// ErrDuplicateAddress 插入地址时触发了 email 或 token 的唯一约束
	ErrDuplicateAddress = errors.New("address already exists")
)

// AddressRepository 定义地址数据存取操作。
type AddressRepository interface {
	// CreateAddress 插入新地址，email/token 冲突时返回 ErrDuplicateAddress
	CreateAddress(ctx context.Context, addr *domain.Address) error
	// ReclaimAddress 在同一事务中：若同名地址已过期则连同收件关联一起删除，
	// 然后插入新地址。同名地址仍有效时返回 domain.ErrAddressTaken，
	// 并发回收导致唯一约束冲突时返回 ErrDuplicateAddress
	ReclaimAddress(ctx context.Context, addr *domain.Address, now time.Time) error
	// AddressExists 判断 email 是否已被任何记录（无论是否过期）占用
	AddressExists(ctx context.Context, email string) (bool, error)
	GetAddressByToken(ctx context.Context, token string) (*domain.Address, error)
	GetAddressByEmail(ctx context.Context, email string) (*domain.Address, error)
}

// LifecycleRepository 定义过期清理操作。
type LifecycleRepository interface {
	// DeleteExpiredAddresses 删除 expires_at <= now 的地址及其收件关联，返回删除的地址数
	DeleteExpiredAddresses(ctx context.Context, now time.Time) (int, error)
	// DeleteOrphanedEmails 删除没有任何收件关联的邮件及其附件，返回删除的邮件数
	DeleteOrphanedEmails(ctx context.Context) (int, error)
}

// InboxRepository 定义以单个地址为作用域的收件箱操作。
// 所有方法都要求邮件与 addressID 之间存在收件关联，否则返回 domain.ErrNotFound。
type InboxRepository interface {
	ListEmails(ctx context.Context, query domain.InboxQuery) ([]domain.EmailSummary, int, error)
	GetEmail(ctx context.Context, addressID, emailID string, markRead bool, now time.Time) (*domain.EmailDetail, error)
	DeleteEmail(ctx context.Context, addressID, emailID string) error
	GetAttachment(ctx context.Context, addressID, emailID, attachmentID string) (*domain.Attachment, error)
	GetRawMessage(ctx context.Context, addressID, emailID string) ([]byte, error)
}

// DeliveryRepository 定义邮件投递写入操作，由外部的收信组件调用。
type DeliveryRepository interface {
	// SaveEmail 在同一事务中写入邮件、收件关联和附件
	SaveEmail(ctx context.Context, email *domain.Email, recipients []domain.Recipient, attachments []domain.Attachment) error
	// EnforceEmailLimit 仅保留地址最新的 max 封邮件，返回删除数量
	EnforceEmailLimit(ctx context.Context, addressID string, max int) (int, error)
}

// Store 聚合所有存储能力。
type Store interface {
	AddressRepository
	LifecycleRepository
	InboxRepository
	DeliveryRepository
	Close() error
	Health() error
}
