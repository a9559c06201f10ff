package domain

import (
	"time"
)

// Address 表示一个带访问令牌的临时邮箱地址。
//
// 过期状态不落库，始终由 IsExpired 根据当前时间计算。
type Address struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string    `json:"email" gorm:"type:varchar(320);uniqueIndex;not null"`
	Token     string    `json:"token" gorm:"type:varchar(128);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}

// IsExpired 判断地址在 now 时刻是否已过期（now 严格晚于 ExpiresAt）
func (a *Address) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// TTL 返回地址在 now 时刻的剩余有效期，已过期返回 0
func (a *Address) TTL(now time.Time) time.Duration {
	if a.IsExpired(now) {
		return 0
	}
	return a.ExpiresAt.Sub(now)
}

// Recipient 是邮件与地址之间的多对多关联，携带每个地址独立的已读状态。
type Recipient struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmailID   string     `json:"email_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_recipient_email_address"`
	AddressID string     `json:"address_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_recipient_email_address;index"`
	IsRead    bool       `json:"is_read" gorm:"not null;default:false"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"not null"`

	Email   *Email   `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Address *Address `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (Recipient) TableName() string {
	return "email_recipients"
}
