package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"tempmail/inbox/internal/storage"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const (
	checkTimeout       = 3 * time.Second
	goroutineThreshold = 10000
)

// Pinger 可探测连通性的外部依赖（如 Redis）
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report 健康报告
type Report struct {
	Status    Status            `json:"status"`
	Database  string            `json:"database"`
	Checks    map[string]string `json:"checks"`
	Uptime    string            `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
}

// Checker 健康检查器
//
// 存活检查只关心进程本身，就绪检查包含数据库和可选的 Redis。
type Checker struct {
	health    healthcheck.Handler
	store     storage.Store
	redis     Pinger
	logger    *zap.Logger
	startTime time.Time
}

// Option 健康检查器选项
type Option func(*Checker)

// WithRedis 将 Redis 纳入就绪检查
func WithRedis(p Pinger) Option {
	return func(c *Checker) {
		c.redis = p
	}
}

// NewChecker 创建健康检查器
func NewChecker(store storage.Store, logger *zap.Logger, opts ...Option) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{
		health:    healthcheck.NewHandler(),
		store:     store,
		logger:    logger,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.addChecks()
	return c
}

// addChecks 添加健康检查
func (c *Checker) addChecks() {
	c.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(goroutineThreshold))

	c.health.AddReadinessCheck("database", healthcheck.Timeout(c.store.Health, checkTimeout))

	if c.redis != nil {
		c.health.AddReadinessCheck("redis", c.pingRedis)
	}
}

func (c *Checker) pingRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	return c.redis.Ping(ctx)
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (c *Checker) Handler() http.Handler {
	return c.health
}

// LiveEndpoint 存活检查
func (c *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (c *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	c.health.ReadyEndpoint(w, r)
}

// Report 汇总当前健康状态
//
// 数据库不可用时整体为 unhealthy，Redis 不可用时为 degraded（缓存失效只影响性能）。
func (c *Checker) Report() *Report {
	report := &Report{
		Status:    StatusHealthy,
		Database:  "connected",
		Checks:    make(map[string]string),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	if err := c.store.Health(); err != nil {
		c.logger.Warn("database health check failed", zap.Error(err))
		report.Status = StatusUnhealthy
		report.Database = "disconnected"
		report.Checks["database"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		report.Checks["database"] = "OK"
	}

	if c.redis != nil {
		if err := c.pingRedis(); err != nil {
			c.logger.Warn("redis health check failed", zap.Error(err))
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
			report.Checks["redis"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			report.Checks["redis"] = "OK"
		}
	}

	return report
}
