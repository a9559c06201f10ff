package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/storage"
)

// ListInput 邮件列表查询参数
type ListInput struct {
	Page       int
	PerPage    int
	UnreadOnly bool
	Search     string
}

// AddressInfo 地址概况
type AddressInfo struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	EmailCount int       `json:"email_count"`
	IsExpired  bool      `json:"is_expired"`
}

// RawMessage 原始邮件下载内容
type RawMessage struct {
	Filename string
	Data     []byte
}

// InboxService 提供以单个地址为作用域的收件箱操作。
//
// 所有方法假定 addr 已通过 Authenticator 校验。
type InboxService struct {
	repo    storage.InboxRepository
	log     *zap.Logger
	metrics *monitoring.Metrics
	now     func() time.Time
}

// NewInboxService 创建收件箱服务。
func NewInboxService(repo storage.InboxRepository, log *zap.Logger) *InboxService {
	if log == nil {
		log = zap.NewNop()
	}
	return &InboxService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// SetClock 替换时间来源（测试用）
func (s *InboxService) SetClock(now func() time.Time) {
	s.now = now
}

// SetMetrics 设置监控指标
func (s *InboxService) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// List 分页列出邮件
func (s *InboxService) List(ctx context.Context, addr *domain.Address, in ListInput) (*domain.EmailPage, error) {
	query := domain.InboxQuery{
		AddressID:  addr.ID,
		Page:       in.Page,
		PerPage:    in.PerPage,
		UnreadOnly: in.UnreadOnly,
		Search:     strings.TrimSpace(in.Search),
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	emails, total, err := s.repo.ListEmails(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	return domain.NewEmailPage(query, emails, total), nil
}

// Info 返回地址概况和邮件数量
func (s *InboxService) Info(ctx context.Context, addr *domain.Address) (*AddressInfo, error) {
	_, total, err := s.repo.ListEmails(ctx, domain.InboxQuery{AddressID: addr.ID, Page: 1, PerPage: 1})
	if err != nil {
		return nil, fmt.Errorf("count emails: %w", err)
	}
	return &AddressInfo{
		ID:         addr.ID,
		Email:      addr.Email,
		CreatedAt:  addr.CreatedAt,
		ExpiresAt:  addr.ExpiresAt,
		EmailCount: total,
		IsExpired:  addr.IsExpired(s.now()),
	}, nil
}

// Get 获取邮件详情，markRead 为 true 时标记为已读
func (s *InboxService) Get(ctx context.Context, addr *domain.Address, emailID string, markRead bool) (*domain.EmailDetail, error) {
	emailID, err := parseID(emailID)
	if err != nil {
		return nil, err
	}

	detail, err := s.repo.GetEmail(ctx, addr.ID, emailID, markRead, s.now().UTC())
	if err != nil {
		return nil, wrapRepoError("get email", err)
	}

	if s.metrics != nil {
		s.metrics.RecordEmailRead()
	}
	return detail, nil
}

// Delete 删除邮件，邮件对所有收件地址都不再可见
func (s *InboxService) Delete(ctx context.Context, addr *domain.Address, emailID string) error {
	emailID, err := parseID(emailID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteEmail(ctx, addr.ID, emailID); err != nil {
		return wrapRepoError("delete email", err)
	}

	if s.metrics != nil {
		s.metrics.RecordEmailDeleted()
	}
	s.log.Info("email deleted", zap.String("address_id", addr.ID), zap.String("email_id", emailID))
	return nil
}

// Attachment 获取附件内容，文件名中的路径分隔符会被替换
func (s *InboxService) Attachment(ctx context.Context, addr *domain.Address, emailID, attachmentID string) (*domain.Attachment, error) {
	emailID, err := parseID(emailID)
	if err != nil {
		return nil, err
	}
	attachmentID, err = parseID(attachmentID)
	if err != nil {
		return nil, err
	}

	att, err := s.repo.GetAttachment(ctx, addr.ID, emailID, attachmentID)
	if err != nil {
		return nil, wrapRepoError("get attachment", err)
	}
	att.Filename = SanitizeFilename(att.Filename)
	return att, nil
}

// Raw 获取原始邮件，下载文件名为 {email_id}.eml
func (s *InboxService) Raw(ctx context.Context, addr *domain.Address, emailID string) (*RawMessage, error) {
	emailID, err := parseID(emailID)
	if err != nil {
		return nil, err
	}

	data, err := s.repo.GetRawMessage(ctx, addr.ID, emailID)
	if err != nil {
		return nil, wrapRepoError("get raw message", err)
	}
	return &RawMessage{Filename: emailID + ".eml", Data: data}, nil
}

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_")

// SanitizeFilename 替换文件名中的路径分隔符，防止目录穿越
func SanitizeFilename(name string) string {
	return filenameReplacer.Replace(name)
}

// parseID 邮件与附件 ID 必须是 UUID，返回规范的小写形式
func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", domain.ErrInvalidIdentifier
	}
	return parsed.String(), nil
}

func wrapRepoError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
