package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tempmail/inbox/internal/config"
	"tempmail/inbox/internal/monitoring"
	"tempmail/inbox/internal/storage"
)

// ReapResult 一次清理的结果
type ReapResult struct {
	Addresses int `json:"addresses"`
	Orphans   int `json:"orphans"`
}

// Reaper 定期删除过期地址及其收件关联。
//
// 开启 PurgeOrphans 后同时删除不再被任何地址引用的邮件。
type Reaper struct {
	repo     storage.LifecycleRepository
	interval time.Duration
	orphans  bool
	log      *zap.Logger
	metrics  *monitoring.Metrics
	now      func() time.Time
}

// NewReaper 创建清理任务
func NewReaper(repo storage.LifecycleRepository, cfg config.LifecycleConfig, log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reaper{
		repo:     repo,
		interval: interval,
		orphans:  cfg.PurgeOrphans,
		log:      log,
		now:      time.Now,
	}
}

// SetClock 替换时间来源（测试用）
func (r *Reaper) SetClock(now func() time.Time) {
	r.now = now
}

// SetMetrics 设置监控指标
func (r *Reaper) SetMetrics(m *monitoring.Metrics) {
	r.metrics = m
}

// Sweep 执行一次清理
func (r *Reaper) Sweep(ctx context.Context) (ReapResult, error) {
	var result ReapResult

	addresses, err := r.repo.DeleteExpiredAddresses(ctx, r.now().UTC())
	if err != nil {
		r.record(result, err)
		return result, fmt.Errorf("delete expired addresses: %w", err)
	}
	result.Addresses = addresses

	if r.orphans {
		orphans, err := r.repo.DeleteOrphanedEmails(ctx)
		if err != nil {
			r.record(result, err)
			return result, fmt.Errorf("delete orphaned emails: %w", err)
		}
		result.Orphans = orphans
	}

	r.record(result, nil)
	return result, nil
}

func (r *Reaper) record(result ReapResult, err error) {
	if r.metrics != nil {
		r.metrics.RecordReaperRun(result.Addresses, result.Orphans, err)
	}
}

// Run 启动时立即清理一次，之后按固定间隔执行，直到 ctx 取消
//
// 单次清理失败只记录日志，不中断循环。
func (r *Reaper) Run(ctx context.Context) error {
	r.log.Info("reaper started",
		zap.Duration("interval", r.interval),
		zap.Bool("purge_orphans", r.orphans),
	)
	r.tick(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reaper) tick(ctx context.Context) {
	start := time.Now()
	result, err := r.Sweep(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Error("cleanup sweep failed", zap.Error(err))
		return
	}

	if result.Addresses > 0 || result.Orphans > 0 {
		r.log.Info("cleanup sweep finished",
			zap.Int("addresses", result.Addresses),
			zap.Int("orphans", result.Orphans),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
