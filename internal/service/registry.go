package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/storage"
)

const (
	// 随机地址最多尝试次数
	maxRandomAttempts = 10
	// 回收自定义地址时遇到并发插入的重试次数
	maxReclaimAttempts = 3
	// 令牌熵（字节），编码后为 64 个 URL 安全字符
	tokenBytes = 48

	localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// AllocateInput 定义分配地址所需的输入，字段为 nil 表示未提供。
type AllocateInput struct {
	Username *string
	Domain   *string
}

// Registry 负责地址的分配、查找与过期地址的惰性回收。
type Registry struct {
	repo      storage.AddressRepository
	cfg       config.AddressConfig
	policy    domain.UsernamePolicy
	domainSet map[string]struct{}
	log       *zap.Logger
	metrics   *monitoring.Metrics
	now       func() time.Time
	random    io.Reader
}

// NewRegistry 创建地址注册服务。
func NewRegistry(repo storage.AddressRepository, cfg config.AddressConfig, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}

	domainSet := make(map[string]struct{}, len(cfg.Domains))
	for _, d := range cfg.Domains {
		domainSet[d] = struct{}{}
	}

	return &Registry{
		repo: repo,
		cfg:  cfg,
		policy: domain.UsernamePolicy{
			MinLength: cfg.MinUsernameLength,
			MaxLength: cfg.MaxUsernameLength,
			Reserved:  cfg.ReservedUsernames,
		},
		domainSet: domainSet,
		log:       log,
		now:       time.Now,
		random:    rand.Reader,
	}
}

// SetClock 替换时间来源（测试用）
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// SetMetrics 设置监控指标
func (r *Registry) SetMetrics(m *monitoring.Metrics) {
	r.metrics = m
}

// Domains 返回可用域名列表，第一个为默认域名
func (r *Registry) Domains() []string {
	return append([]string(nil), r.cfg.Domains...)
}

// Allocate 分配新地址
//
// 未提供用户名时生成随机本地部分；提供用户名时尝试占用该地址，
// 同名地址已过期则在同一事务中回收，仍有效则返回 domain.ErrAddressTaken。
func (r *Registry) Allocate(ctx context.Context, in AllocateInput) (*domain.Address, error) {
	dom, err := r.resolveDomain(in.Domain)
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}

	var (
		addr *domain.Address
		kind string
	)
	if in.Username != nil {
		kind = "custom"
		addr, err = r.allocateCustom(ctx, *in.Username, dom)
	} else {
		kind = "random"
		addr, err = r.allocateRandom(ctx, dom)
	}
	if err != nil {
		r.recordFailure(err)
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.RecordAddressAllocated(kind)
	}
	r.log.Info("address allocated",
		zap.String("address_id", addr.ID),
		zap.String("email", addr.Email),
		zap.String("kind", kind),
		zap.Time("expires_at", addr.ExpiresAt),
	)
	return addr, nil
}

// resolveDomain 未指定时使用第一个配置域名，指定时必须在配置列表中
func (r *Registry) resolveDomain(requested *string) (string, error) {
	if len(r.cfg.Domains) == 0 {
		return "", domain.ErrNoDomains
	}
	if requested == nil {
		return r.cfg.Domains[0], nil
	}

	dom, err := domain.NormalizeDomain(*requested)
	if err != nil {
		return "", err
	}
	if _, ok := r.domainSet[dom]; !ok {
		return "", domain.ErrInvalidDomain
	}
	return dom, nil
}

func (r *Registry) allocateCustom(ctx context.Context, raw, dom string) (*domain.Address, error) {
	if !r.cfg.AllowCustomUsernames {
		return nil, domain.ErrCustomUsernameDisabled
	}

	username, err := r.policy.NormalizeUsername(raw)
	if err != nil {
		return nil, err
	}
	email := domain.ComposeEmail(username, dom)

	for attempt := 0; attempt < maxReclaimAttempts; attempt++ {
		addr, err := r.newAddress(email)
		if err != nil {
			return nil, err
		}

		err = r.repo.ReclaimAddress(ctx, addr, addr.CreatedAt)
		switch {
		case err == nil:
			return addr, nil
		case errors.Is(err, storage.ErrDuplicateAddress):
			// 并发分配抢先插入，重新读取后通常会得到冲突
			r.log.Debug("address reclaim raced, retrying", zap.String("email", email), zap.Int("attempt", attempt+1))
			continue
		case errors.Is(err, domain.ErrConflict):
			return nil, err
		default:
			return nil, fmt.Errorf("reclaim address: %w", err)
		}
	}
	return nil, domain.ErrAddressTaken
}

func (r *Registry) allocateRandom(ctx context.Context, dom string) (*domain.Address, error) {
	for attempt := 0; attempt < maxRandomAttempts; attempt++ {
		local, err := r.randomLocalPart()
		if err != nil {
			return nil, err
		}
		email := domain.ComposeEmail(local, dom)

		// 过期未清理的记录同样视为占用
		exists, err := r.repo.AddressExists(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("check address: %w", err)
		}
		if exists {
			continue
		}

		addr, err := r.newAddress(email)
		if err != nil {
			return nil, err
		}
		err = r.repo.CreateAddress(ctx, addr)
		switch {
		case err == nil:
			return addr, nil
		case errors.Is(err, storage.ErrDuplicateAddress):
			continue
		default:
			return nil, fmt.Errorf("create address: %w", err)
		}
	}

	r.log.Warn("random address space exhausted", zap.String("domain", dom), zap.Int("attempts", maxRandomAttempts))
	return nil, fmt.Errorf("%w: no free address after %d attempts", domain.ErrExhausted, maxRandomAttempts)
}

// newAddress 生成 ID 与令牌，created_at 与 expires_at 取自同一时刻
func (r *Registry) newAddress(email string) (*domain.Address, error) {
	token, err := r.generateToken()
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	return &domain.Address{
		ID:        uuid.NewString(),
		Email:     email,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(r.cfg.Lifetime),
	}, nil
}

// generateToken 生成 URL 安全的随机令牌
func (r *Registry) generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r.random, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// randomLocalPart 从 [a-z0-9] 中均匀抽取字符
func (r *Registry) randomLocalPart() (string, error) {
	// 252 = 36*7，丢弃更大的字节避免取模偏差
	const limit = 252

	out := make([]byte, 0, domain.RandomLocalPartLength)
	buf := make([]byte, domain.RandomLocalPartLength*2)
	for len(out) < domain.RandomLocalPartLength {
		if _, err := io.ReadFull(r.random, buf); err != nil {
			return "", fmt.Errorf("generate local part: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, localPartAlphabet[int(b)%len(localPartAlphabet)])
			if len(out) == domain.RandomLocalPartLength {
				break
			}
		}
	}
	return string(out), nil
}

// Lookup 根据令牌查找有效地址，不存在与已过期返回相同的 domain.ErrNotFound
func (r *Registry) Lookup(ctx context.Context, token string) (*domain.Address, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}

	addr, err := r.repo.GetAddressByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lookup address: %w", err)
	}

	if addr.IsExpired(r.now()) {
		return nil, domain.ErrNotFound
	}
	return addr, nil
}

func (r *Registry) recordFailure(err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordAllocationFailure(failureReason(err))
}

// failureReason 错误分类对应的指标标签
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, domain.ErrExhausted):
		return "exhausted"
	default:
		return "internal"
	}
}
