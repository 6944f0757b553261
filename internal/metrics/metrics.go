package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accreditation_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 门控指标
var (
	// GatingRejectionsTotal 因需求被禁用而拒绝的请求
	GatingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_gating_rejections_total",
			Help: "因需求禁用被门控拒绝的请求数",
		},
		[]string{"requirement"},
	)

	// GatingCacheReloadsTotal 门控缓存重新加载次数
	GatingCacheReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_gating_cache_reloads_total",
			Help: "门控缓存加载次数（按结果）",
		},
		[]string{"result", "forced"},
	)
)

// 限流指标
var (
	// RateLimitedTotal 被限流的请求
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_rate_limited_total",
			Help: "被限流拒绝的请求数",
		},
		[]string{"action"},
	)

	// RateLimiterErrorsTotal 限流存储异常（放行）
	RateLimiterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_rate_limiter_errors_total",
			Help: "限流器内部错误次数，发生时请求被放行",
		},
		[]string{"action"},
	)
)

// 审核流程指标
var (
	// SubmissionTransitionsTotal 提交状态流转
	SubmissionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_submission_transitions_total",
			Help: "提交状态流转次数",
		},
		[]string{"action", "to"},
	)
)

// 异步副作用指标
var (
	// AuditDroppedTotal 队列满时丢弃的审计日志
	AuditDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accreditation_audit_dropped_total",
			Help: "审计队列已满被丢弃的条目数",
		},
	)

	// AuditWriteFailuresTotal 审计写入失败
	AuditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accreditation_audit_write_failures_total",
			Help: "审计日志写入失败次数",
		},
	)

	// NotificationsTotal 通知发送结果
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accreditation_notifications_total",
			Help: "通知投递次数（按结果）",
		},
		[]string{"result"},
	)
)
