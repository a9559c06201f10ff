package sql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tempmail/inbox/internal/domain"
)

// DeleteExpiredAddresses 删除 expires_at <= now 的地址及其收件关联
func (s *Store) DeleteExpiredAddresses(ctx context.Context, now time.Time) (int, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&domain.Address{}).Select("id").Where("expires_at <= ?", now)
		if err := tx.Where("address_id IN (?)", expired).Delete(&domain.Recipient{}).Error; err != nil {
			return err
		}

		result := tx.Where("expires_at <= ?", now).Delete(&domain.Address{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired addresses: %w", err)
	}
	return int(deleted), nil
}

// DeleteOrphanedEmails 删除没有任何收件关联的邮件及其附件
func (s *Store) DeleteOrphanedEmails(ctx context.Context) (int, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		linked := tx.Model(&domain.Recipient{}).Select("email_id")
		orphans := tx.Model(&domain.Email{}).Select("id").Where("id NOT IN (?)", linked)
		if err := tx.Where("email_id IN (?)", orphans).Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}

		result := tx.Where("id NOT IN (?)", tx.Model(&domain.Recipient{}).Select("email_id")).Delete(&domain.Email{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete orphaned emails: %w", err)
	}
	return int(deleted), nil
}
