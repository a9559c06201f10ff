package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/pool"
	"tempmail/inbox/internal/storage"
)

// DeliveryStore 投递所需的存储能力
type DeliveryStore interface {
	storage.AddressRepository
	storage.DeliveryRepository
}

// AttachmentInput 投递时携带的附件
type AttachmentInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DeliverInput 外部收信组件解析后的邮件
//
// Recipients 为空时使用 To 作为唯一收件人。
type DeliverInput struct {
	MessageID   string
	Subject     *string
	From        string
	To          string
	Recipients  []string
	RawHeaders  string
	BodyPlain   *string
	BodyHTML    *string
	Raw         []byte
	DKIM        domain.DKIMStatus
	SPF         domain.SPFResult
	DMARC       domain.DMARCResult
	Attachments []AttachmentInput
}

// DeliveryService 将已解析的邮件写入存储，并在后台裁剪每个地址的邮件数量。
type DeliveryService struct {
	store      DeliveryStore
	maxEmails  int
	validation config.ValidationConfig
	workers    *pool.WorkerPool
	log        *zap.Logger
	metrics    *monitoring.Metrics
	now        func() time.Time
}

// NewDeliveryService 创建投递服务，workers 为 nil 时同步裁剪
func NewDeliveryService(store DeliveryStore, cfg config.AddressConfig, validation config.ValidationConfig, workers *pool.WorkerPool, log *zap.Logger) *DeliveryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeliveryService{
		store:      store,
		maxEmails:  cfg.MaxEmailsPerAddress,
		validation: validation,
		workers:    workers,
		log:        log,
		now:        time.Now,
	}
}

// SetClock 替换时间来源（测试用）
func (s *DeliveryService) SetClock(now func() time.Time) {
	s.now = now
}

// SetMetrics 设置监控指标
func (s *DeliveryService) SetMetrics(m *monitoring.Metrics) {
	s.metrics = m
}

// Deliver 写入一封邮件
//
// 未知或已过期的收件地址被跳过，没有任何可投递地址时返回 domain.ErrNotFound。
func (s *DeliveryService) Deliver(ctx context.Context, in DeliverInput) (*domain.Email, error) {
	if !in.SPF.Valid() || !in.DMARC.Valid() {
		return nil, fmt.Errorf("%w: unknown authentication result", domain.ErrInvalidInput)
	}

	now := s.now().UTC()
	addrs, err := s.resolveRecipients(ctx, in, now)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		s.log.Debug("no deliverable recipients", zap.String("to", in.To), zap.Strings("recipients", in.Recipients))
		return nil, domain.ErrNotFound
	}

	email := s.buildEmail(in, now)
	recipients := make([]domain.Recipient, 0, len(addrs))
	for _, addr := range addrs {
		recipients = append(recipients, domain.Recipient{
			ID:        uuid.NewString(),
			EmailID:   email.ID,
			AddressID: addr.ID,
			CreatedAt: now,
		})
	}
	attachments := make([]domain.Attachment, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		attachments = append(attachments, domain.Attachment{
			ID:          uuid.NewString(),
			EmailID:     email.ID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   int64(len(a.Data)),
			Data:        a.Data,
			CreatedAt:   now,
		})
	}

	if err := s.store.SaveEmail(ctx, email, recipients, attachments); err != nil {
		return nil, fmt.Errorf("save email: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordEmailDelivered()
	}
	s.log.Info("email delivered",
		zap.String("email_id", email.ID),
		zap.String("from", email.FromAddress),
		zap.Int("recipients", len(recipients)),
		zap.Int("attachments", len(attachments)),
		zap.Int64("size_bytes", email.SizeBytes),
	)

	for _, addr := range addrs {
		s.scheduleTrim(ctx, addr.ID)
	}
	return email, nil
}

// resolveRecipients 按小写邮箱精确匹配收件地址，同一地址只关联一次
func (s *DeliveryService) resolveRecipients(ctx context.Context, in DeliverInput, now time.Time) ([]*domain.Address, error) {
	targets := in.Recipients
	if len(targets) == 0 {
		targets = []string{in.To}
	}

	seen := make(map[string]struct{}, len(targets))
	addrs := make([]*domain.Address, 0, len(targets))
	for _, target := range targets {
		email := domain.NormalizeEmail(target)
		if email == "" {
			continue
		}
		addr, err := s.store.GetAddressByEmail(ctx, email)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve recipient %s: %w", email, err)
		}
		if addr.IsExpired(now) {
			continue
		}
		if _, ok := seen[addr.ID]; ok {
			continue
		}
		seen[addr.ID] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// buildEmail 关闭的校验项按未校验保存
func (s *DeliveryService) buildEmail(in DeliverInput, now time.Time) *domain.Email {
	email := &domain.Email{
		ID:             uuid.NewString(),
		MessageID:      in.MessageID,
		Subject:        in.Subject,
		FromAddress:    in.From,
		ToAddress:      in.To,
		RawHeaders:     in.RawHeaders,
		BodyPlain:      in.BodyPlain,
		BodyHTML:       in.BodyHTML,
		RawMessage:     in.Raw,
		SizeBytes:      int64(len(in.Raw)),
		HasAttachments: len(in.Attachments) > 0,
		ReceivedAt:     now,
	}
	if email.RawMessage == nil {
		email.RawMessage = []byte{}
	}
	if s.validation.CheckDKIM {
		email.DKIMValid = in.DKIM
	}
	if s.validation.CheckSPF {
		email.SPFResult = in.SPF
	}
	if s.validation.CheckDMARC {
		email.DMARCResult = in.DMARC
	}
	return email
}

// scheduleTrim 提交数量裁剪任务，队列已满时同步执行
func (s *DeliveryService) scheduleTrim(ctx context.Context, addressID string) {
	if s.maxEmails <= 0 {
		return
	}
	if s.workers != nil && s.workers.TrySubmit(func(ctx context.Context) { s.trim(ctx, addressID) }) {
		return
	}
	s.trim(context.WithoutCancel(ctx), addressID)
}

func (s *DeliveryService) trim(ctx context.Context, addressID string) {
	deleted, err := s.store.EnforceEmailLimit(ctx, addressID, s.maxEmails)
	if err != nil {
		s.log.Error("enforce email limit failed", zap.String("address_id", addressID), zap.Error(err))
		return
	}
	if deleted > 0 {
		if s.metrics != nil {
			s.metrics.RecordEmailsTrimmed(deleted)
		}
		s.log.Info("old emails trimmed",
			zap.String("address_id", addressID),
			zap.Int("deleted", deleted),
			zap.Int("limit", s.maxEmails),
		)
	}
}
