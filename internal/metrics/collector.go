// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	registry *prometheus.Registry

	// 请求指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     prometheus.Histogram
	responseSize    prometheus.Histogram

	// 连接与解析指标
	parseResults     *prometheus.CounterVec
	connectionsTotal *prometheus.CounterVec
	sessionsActive   prometheus.Gauge

	// 缓存指标
	cacheResults *prometheus.CounterVec

	// 数据库指标
	dbQueryDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，所有指标注册在独立的 Registry 上
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of dispatched requests",
		},
		[]string{"route", "status", "class"},
	)

	c.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	c.requestSize = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "Raw request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
	)

	c.responseSize = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "Response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
	)

	c.parseResults = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_results_total",
			Help:      "Terminal parser verdicts",
		},
		[]string{"result"},
	)

	c.connectionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted connections by outcome",
		},
		[]string{"outcome"},
	)

	c.sessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of connection sessions in flight",
		},
	)

	c.cacheResults = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_cache_total",
			Help:      "Link cache lookups by result",
		},
		[]string{"result"},
	)

	c.dbQueryDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Registry 返回底层 Registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 /metrics 的 http.Handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// =============================================================================
// 🎯 请求指标记录
// =============================================================================

// RecordDispatch 记录一次分发（实现 dispatch.Recorder）
func (c *Collector) RecordDispatch(route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requestsTotal.WithLabelValues(route, strconv.Itoa(status), statusClass(status)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSizes 记录请求与响应字节数
func (c *Collector) RecordSizes(requestBytes, responseBytes int) {
	c.requestSize.Observe(float64(requestBytes))
	c.responseSize.Observe(float64(responseBytes))
}

// RecordParse 记录解析终态（proper_request / bad_request）
func (c *Collector) RecordParse(result string) {
	c.parseResults.WithLabelValues(result).Inc()
}

// =============================================================================
// 🔌 连接指标记录
// =============================================================================

// RecordConnection 记录连接结果：accepted / rejected / rate_limited
func (c *Collector) RecordConnection(outcome string) {
	c.connectionsTotal.WithLabelValues(outcome).Inc()
}

// SessionStarted 活跃会话 +1
func (c *Collector) SessionStarted() {
	c.sessionsActive.Inc()
}

// SessionFinished 活跃会话 -1
func (c *Collector) SessionFinished() {
	c.sessionsActive.Dec()
}

// =============================================================================
// 💾 缓存与数据库指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit() {
	c.cacheResults.WithLabelValues("hit").Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss() {
	c.cacheResults.WithLabelValues("miss").Inc()
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusClass 将 HTTP 状态码归类
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
