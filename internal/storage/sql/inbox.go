package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"tempmail/inbox/internal/domain"
)

const joinRecipients = "JOIN email_recipients ON email_recipients.email_id = emails.id"

// inboxScope 收件箱查询条件：按收件关联限定地址，可选未读与关键字过滤
func (s *Store) inboxScope(query domain.InboxQuery) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		tx = tx.Model(&domain.Email{}).
			Joins(joinRecipients).
			Where("email_recipients.address_id = ?", query.AddressID)

		if query.UnreadOnly {
			tx = tx.Where("email_recipients.is_read = ?", false)
		}

		if term := strings.TrimSpace(query.Search); term != "" {
			pattern := containsPattern(term)
			tx = tx.Where(
				"("+s.containsClause("emails.subject")+" OR "+
					s.containsClause("emails.from_address")+" OR "+
					s.containsClause("emails.body_plain")+")",
				pattern, pattern, pattern,
			)
		}
		return tx
	}
}

// containsClause 按方言生成大小写不敏感的包含匹配，参数为已转小写并转义的模式
//
// PostgreSQL 使用 ILIKE；SQLite 内置 LOWER 只处理 ASCII，改用注册的 unicode_lower。
func (s *Store) containsClause(column string) string {
	switch s.driverName {
	case "postgres":
		return column + " ILIKE ? ESCAPE '!'"
	case "sqlite":
		return "unicode_lower(COALESCE(" + column + ", '')) LIKE ? ESCAPE '!'"
	default:
		return "LOWER(" + column + ") LIKE ? ESCAPE '!'"
	}
}

// ListEmails 在同一事务中统计总数并读取当前页
func (s *Store) ListEmails(ctx context.Context, query domain.InboxQuery) ([]domain.EmailSummary, int, error) {
	var (
		total  int64
		emails []domain.EmailSummary
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(s.inboxScope(query)).Count(&total).Error; err != nil {
			return err
		}
		if total == 0 || int64(query.Offset()) >= total {
			return nil
		}

		return tx.Scopes(s.inboxScope(query)).
			Select("emails.id, emails.subject, emails.from_address, emails.to_address, emails.received_at, " +
				"email_recipients.is_read, emails.has_attachments, emails.size_bytes").
			Order("emails.received_at DESC, emails.id DESC").
			Offset(query.Offset()).
			Limit(query.PerPage).
			Scan(&emails).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list emails: %w", err)
	}
	if emails == nil {
		emails = []domain.EmailSummary{}
	}
	return emails, int(total), nil
}

// GetEmail 获取邮件详情，markRead 为 true 时在同一事务中标记已读
func (s *Store) GetEmail(ctx context.Context, addressID, emailID string, markRead bool, now time.Time) (*domain.EmailDetail, error) {
	var detail domain.EmailDetail
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		link, err := findLink(tx, addressID, emailID)
		if err != nil {
			return err
		}

		if markRead && !link.IsRead {
			readAt := now.UTC()
			result := tx.Model(&domain.Recipient{}).
				Where("id = ? AND is_read = ?", link.ID, false).
				Updates(map[string]interface{}{"is_read": true, "read_at": readAt})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				link.IsRead = true
				link.ReadAt = &readAt
			} else if link, err = findLink(tx, addressID, emailID); err != nil {
				return err
			}
		}

		if err := tx.Omit("raw_message").Where("id = ?", emailID).Take(&detail.Email).Error; err != nil {
			return err
		}

		detail.Attachments = []domain.AttachmentInfo{}
		if err := tx.Model(&domain.Attachment{}).
			Select("id, filename, content_type, size_bytes").
			Where("email_id = ?", emailID).
			Order("created_at ASC, id ASC").
			Scan(&detail.Attachments).Error; err != nil {
			return err
		}

		detail.IsRead = link.IsRead
		detail.ReadAt = link.ReadAt
		return nil
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &detail, nil
}

func findLink(tx *gorm.DB, addressID, emailID string) (*domain.Recipient, error) {
	var link domain.Recipient
	err := tx.Where("email_id = ? AND address_id = ?", emailID, addressID).Take(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// DeleteEmail 删除邮件（影响所有收件地址）
func (s *Store) DeleteEmail(ctx context.Context, addressID, emailID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findLink(tx, addressID, emailID); err != nil {
			return err
		}
		return deleteEmails(tx, []string{emailID})
	})
	if err != nil {
		return translateError(err)
	}
	return nil
}

// deleteEmails 依次删除附件、收件关联和邮件
func deleteEmails(tx *gorm.DB, ids []string) error {
	if err := tx.Where("email_id IN ?", ids).Delete(&domain.Attachment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("email_id IN ?", ids).Delete(&domain.Recipient{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&domain.Email{}).Error
}

// GetAttachment 获取附件，要求附件属于该邮件且邮件属于该地址
func (s *Store) GetAttachment(ctx context.Context, addressID, emailID, attachmentID string) (*domain.Attachment, error) {
	var att domain.Attachment
	err := s.db.WithContext(ctx).
		Select("attachments.*").
		Joins("JOIN email_recipients ON email_recipients.email_id = attachments.email_id").
		Where("attachments.id = ? AND attachments.email_id = ? AND email_recipients.address_id = ?", attachmentID, emailID, addressID).
		Take(&att).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &att, nil
}

// GetRawMessage 获取原始邮件内容
func (s *Store) GetRawMessage(ctx context.Context, addressID, emailID string) ([]byte, error) {
	var email domain.Email
	err := s.db.WithContext(ctx).
		Select("emails.raw_message").
		Joins(joinRecipients).
		Where("emails.id = ? AND email_recipients.address_id = ?", emailID, addressID).
		Take(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get raw message: %w", err)
	}
	return email.RawMessage, nil
}
