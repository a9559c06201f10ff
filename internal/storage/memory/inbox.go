package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"tempmail/inbox/internal/domain"
)

// ListEmails 按条件分页列出地址的邮件
func (s *Store) ListEmails(ctx context.Context, query domain.InboxQuery) ([]domain.EmailSummary, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(query.Search)

	matched := make([]domain.EmailSummary, 0)
	for _, r := range s.recipients {
		if r.AddressID != query.AddressID {
			continue
		}
		if query.UnreadOnly && r.IsRead {
			continue
		}
		email, ok := s.emails[r.EmailID]
		if !ok {
			continue
		}
		if term != "" && !matchesSearch(email, term) {
			continue
		}
		matched = append(matched, domain.EmailSummary{
			ID:             email.ID,
			Subject:        email.Subject,
			FromAddress:    email.FromAddress,
			ToAddress:      email.ToAddress,
			ReceivedAt:     email.ReceivedAt,
			IsRead:         r.IsRead,
			HasAttachments: email.HasAttachments,
			SizeBytes:      email.SizeBytes,
		})
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ReceivedAt.Equal(matched[j].ReceivedAt) {
			return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := query.Offset()
	if start >= total {
		return []domain.EmailSummary{}, total, nil
	}
	end := start + query.PerPage
	if end > total || end < start {
		end = total
	}
	return matched[start:end], total, nil
}

// matchesSearch 主题、发件人或纯文本正文包含关键字（term 已转为小写）
func matchesSearch(email *domain.Email, term string) bool {
	if email.Subject != nil && strings.Contains(strings.ToLower(*email.Subject), term) {
		return true
	}
	if strings.Contains(strings.ToLower(email.FromAddress), term) {
		return true
	}
	return email.BodyPlain != nil && strings.Contains(strings.ToLower(*email.BodyPlain), term)
}

// GetEmail 获取邮件详情，markRead 为 true 时同时标记已读
func (s *Store) GetEmail(ctx context.Context, addressID, emailID string, markRead bool, now time.Time) (*domain.EmailDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, email, err := s.ownedLocked(addressID, emailID)
	if err != nil {
		return nil, err
	}

	if markRead && !r.IsRead {
		readAt := now
		r.IsRead = true
		r.ReadAt = &readAt
	}

	detail := &domain.EmailDetail{
		Email:       *email,
		IsRead:      r.IsRead,
		Attachments: s.attachmentInfosLocked(emailID),
	}
	if r.ReadAt != nil {
		readAt := *r.ReadAt
		detail.ReadAt = &readAt
	}
	detail.RawMessage = nil
	return detail, nil
}

// DeleteEmail 删除邮件（影响所有收件地址）
func (s *Store) DeleteEmail(ctx context.Context, addressID, emailID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.ownedLocked(addressID, emailID); err != nil {
		return err
	}
	s.deleteEmailLocked(emailID)
	return nil
}

// GetAttachment 获取附件，要求附件属于该邮件
func (s *Store) GetAttachment(ctx context.Context, addressID, emailID, attachmentID string) (*domain.Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, _, err := s.ownedLocked(addressID, emailID); err != nil {
		return nil, err
	}
	att, ok := s.attachments[attachmentID]
	if !ok || att.EmailID != emailID {
		return nil, domain.ErrNotFound
	}
	copied := *att
	copied.Data = append([]byte(nil), att.Data...)
	return &copied, nil
}

// GetRawMessage 获取原始邮件内容
func (s *Store) GetRawMessage(ctx context.Context, addressID, emailID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, email, err := s.ownedLocked(addressID, emailID)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), email.RawMessage...), nil
}

// ownedLocked 校验邮件与地址之间存在收件关联
func (s *Store) ownedLocked(addressID, emailID string) (*domain.Recipient, *domain.Email, error) {
	rid, ok := s.byLink[linkKey(emailID, addressID)]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	email, ok := s.emails[emailID]
	if !ok {
		return nil, nil, domain.ErrNotFound
	}
	return s.recipients[rid], email, nil
}

func (s *Store) attachmentInfosLocked(emailID string) []domain.AttachmentInfo {
	atts := make([]*domain.Attachment, 0)
	for _, att := range s.attachments {
		if att.EmailID == emailID {
			atts = append(atts, att)
		}
	}
	sort.Slice(atts, func(i, j int) bool {
		if !atts[i].CreatedAt.Equal(atts[j].CreatedAt) {
			return atts[i].CreatedAt.Before(atts[j].CreatedAt)
		}
		return atts[i].ID < atts[j].ID
	})

	infos := make([]domain.AttachmentInfo, 0, len(atts))
	for _, att := range atts {
		infos = append(infos, domain.AttachmentInfo{
			ID:          att.ID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			SizeBytes:   att.SizeBytes,
		})
	}
	return infos
}

// deleteEmailLocked 删除邮件及其全部附件和收件关联
func (s *Store) deleteEmailLocked(emailID string) {
	for id, att := range s.attachments {
		if att.EmailID == emailID {
			delete(s.attachments, id)
		}
	}
	for id, r := range s.recipients {
		if r.EmailID == emailID {
			delete(s.byLink, linkKey(r.EmailID, r.AddressID))
			delete(s.recipients, id)
		}
	}
	delete(s.emails, emailID)
}
