package memory

import (
	"context"
	"fmt"
	"sort"

	"tempmail/inbox/internal/domain"
)

// SaveEmail 写入邮件、收件关联和附件
func (s *Store) SaveEmail(ctx context.Context, email *domain.Email, recipients []domain.Recipient, attachments []domain.Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email.ID]; ok {
		return fmt.Errorf("email %s already exists", email.ID)
	}
	for _, r := range recipients {
		if _, ok := s.addresses[r.AddressID]; !ok {
			return fmt.Errorf("recipient address %s: %w", r.AddressID, domain.ErrNotFound)
		}
		if _, ok := s.byLink[linkKey(email.ID, r.AddressID)]; ok {
			return fmt.Errorf("duplicate recipient %s for email %s", r.AddressID, email.ID)
		}
	}

	copied := *email
	copied.RawMessage = append([]byte(nil), email.RawMessage...)
	s.emails[email.ID] = &copied

	for i := range recipients {
		r := recipients[i]
		r.EmailID = email.ID
		s.recipients[r.ID] = &r
		s.byLink[linkKey(email.ID, r.AddressID)] = r.ID
	}
	for i := range attachments {
		att := attachments[i]
		att.EmailID = email.ID
		att.Data = append([]byte(nil), att.Data...)
		s.attachments[att.ID] = &att
	}
	return nil
}

// EnforceEmailLimit 删除超出数量上限的最旧邮件
func (s *Store) EnforceEmailLimit(ctx context.Context, addressID string, max int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	emails := make([]*domain.Email, 0)
	for _, r := range s.recipients {
		if r.AddressID != addressID {
			continue
		}
		if email, ok := s.emails[r.EmailID]; ok {
			emails = append(emails, email)
		}
	}
	if len(emails) <= max {
		return 0, nil
	}

	sort.Slice(emails, func(i, j int) bool {
		if !emails[i].ReceivedAt.Equal(emails[j].ReceivedAt) {
			return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
		}
		return emails[i].ID > emails[j].ID
	})

	excess := emails[max:]
	for _, email := range excess {
		s.deleteEmailLocked(email.ID)
	}
	return len(excess), nil
}
