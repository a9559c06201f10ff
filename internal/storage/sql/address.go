package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tempmail/inbox/internal/domain"
)

// CreateAddress 插入新地址
func (s *Store) CreateAddress(ctx context.Context, addr *domain.Address) error {
	if err := s.db.WithContext(ctx).Create(addr).Error; err != nil {
		return fmt.Errorf("create address: %w", translateError(err))
	}
	return nil
}

// ReclaimAddress 在同一事务中回收已过期的同名地址并插入新地址
func (s *Store) ReclaimAddress(ctx context.Context, addr *domain.Address, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Address
		err := tx.Where("email = ?", addr.Email).Take(&existing).Error
		switch {
		case err == nil:
			if !existing.IsExpired(now) {
				return domain.ErrAddressTaken
			}
			if err := deleteAddresses(tx, []string{existing.ID}); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}
		return tx.Create(addr).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrAddressTaken) {
			return err
		}
		return fmt.Errorf("reclaim address: %w", translateError(err))
	}
	return nil
}

// deleteAddresses 删除地址及其收件关联，邮件本身保留
func deleteAddresses(tx *gorm.DB, ids []string) error {
	if err := tx.Where("address_id IN ?", ids).Delete(&domain.Recipient{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&domain.Address{}).Error
}

// AddressExists 判断 email 是否已被占用（包括已过期的记录）
func (s *Store) AddressExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.Address{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check address: %w", err)
	}
	return count > 0, nil
}

// GetAddressByToken 根据令牌获取地址（不判断是否过期）
func (s *Store) GetAddressByToken(ctx context.Context, token string) (*domain.Address, error) {
	var addr domain.Address
	if err := s.db.WithContext(ctx).Where("token = ?", token).Take(&addr).Error; err != nil {
		return nil, translateError(err)
	}
	return &addr, nil
}

// GetAddressByEmail 根据邮箱地址获取地址（不判断是否过期）
func (s *Store) GetAddressByEmail(ctx context.Context, email string) (*domain.Address, error) {
	var addr domain.Address
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&addr).Error; err != nil {
		return nil, translateError(err)
	}
	return &addr, nil
}
