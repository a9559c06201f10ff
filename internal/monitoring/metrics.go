package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 每个实例使用独立的 Registry，测试中可以重复创建。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 地址指标
	AddressesAllocated *prometheus.CounterVec
	AllocationFailures *prometheus.CounterVec
	AuthFailures       prometheus.Counter

	// 邮件指标
	EmailsDelivered prometheus.Counter
	EmailsTrimmed   prometheus.Counter
	EmailsRead      prometheus.Counter
	EmailsDeleted   prometheus.Counter

	// 清理任务指标
	ReaperAddressesDeleted prometheus.Counter
	ReaperOrphansDeleted   prometheus.Counter
	ReaperRuns             *prometheus.CounterVec

	// 错误与限流指标
	PanicsTotal     prometheus.Counter
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		AddressesAllocated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_addresses_allocated_total",
				Help: "Total number of addresses allocated",
			},
			[]string{"kind"},
		),

		AllocationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_address_allocation_failures_total",
				Help: "Total number of failed address allocations",
			},
			[]string{"reason"},
		),

		AuthFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_auth_failures_total",
				Help: "Total number of rejected inbox tokens",
			},
		),

		EmailsDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_emails_delivered_total",
				Help: "Total number of emails stored",
			},
		),

		EmailsTrimmed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_emails_trimmed_total",
				Help: "Total number of emails removed by the per-address limit",
			},
		),

		EmailsRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_emails_read_total",
				Help: "Total number of email detail reads",
			},
		),

		EmailsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_emails_deleted_total",
				Help: "Total number of emails deleted by users",
			},
		),

		ReaperAddressesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_reaper_addresses_deleted_total",
				Help: "Total number of expired addresses removed",
			},
		),

		ReaperOrphansDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_reaper_orphans_deleted_total",
				Help: "Total number of orphaned emails removed",
			},
		),

		ReaperRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_reaper_runs_total",
				Help: "Total number of cleanup sweeps",
			},
			[]string{"result"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_rate_limit_blocks_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"endpoint"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAddressAllocated 记录地址分配，kind 为 random 或 custom
func (m *Metrics) RecordAddressAllocated(kind string) {
	m.AddressesAllocated.WithLabelValues(kind).Inc()
}

// RecordAllocationFailure 记录地址分配失败
func (m *Metrics) RecordAllocationFailure(reason string) {
	m.AllocationFailures.WithLabelValues(reason).Inc()
}

// RecordAuthFailure 记录令牌校验失败
func (m *Metrics) RecordAuthFailure() {
	m.AuthFailures.Inc()
}

// RecordEmailDelivered 记录邮件入库
func (m *Metrics) RecordEmailDelivered() {
	m.EmailsDelivered.Inc()
}

// RecordEmailsTrimmed 记录超出上限被删除的邮件
func (m *Metrics) RecordEmailsTrimmed(count int) {
	m.EmailsTrimmed.Add(float64(count))
}

// RecordEmailRead 记录邮件读取
func (m *Metrics) RecordEmailRead() {
	m.EmailsRead.Inc()
}

// RecordEmailDeleted 记录邮件删除
func (m *Metrics) RecordEmailDeleted() {
	m.EmailsDeleted.Inc()
}

// RecordReaperRun 记录一次清理结果
func (m *Metrics) RecordReaperRun(addresses, orphans int, err error) {
	if err != nil {
		m.ReaperRuns.WithLabelValues("error").Inc()
		return
	}
	m.ReaperRuns.WithLabelValues("success").Inc()
	m.ReaperAddressesDeleted.Add(float64(addresses))
	m.ReaperOrphansDeleted.Add(float64(orphans))
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock(endpoint string) {
	m.RateLimitBlocks.WithLabelValues(endpoint).Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
