package sql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"tempmail/inbox/internal/domain"
)

// SaveEmail 在同一事务中写入邮件、收件关联和附件
func (s *Store) SaveEmail(ctx context.Context, email *domain.Email, recipients []domain.Recipient, attachments []domain.Attachment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(email).Error; err != nil {
			return err
		}
		if len(recipients) > 0 {
			if err := tx.Create(&recipients).Error; err != nil {
				return err
			}
		}
		if len(attachments) > 0 {
			if err := tx.Create(&attachments).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save email: %w", err)
	}
	return nil
}

// EnforceEmailLimit 仅保留地址最新的 max 封邮件
func (s *Store) EnforceEmailLimit(ctx context.Context, addressID string, max int) (int, error) {
	var excess []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&domain.Email{}).
			Joins(joinRecipients).
			Where("email_recipients.address_id = ?", addressID).
			Order("emails.received_at DESC, emails.id DESC").
			Pluck("emails.id", &ids).Error; err != nil {
			return err
		}
		if len(ids) <= max {
			return nil
		}

		excess = ids[max:]
		return deleteEmails(tx, excess)
	})
	if err != nil {
		return 0, fmt.Errorf("enforce email limit: %w", err)
	}
	return len(excess), nil
}
