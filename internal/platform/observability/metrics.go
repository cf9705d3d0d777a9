package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry 全局 Registry，/metrics 从这里导出
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		DescribeTotal, StageDuration,
		HTTPRequestsTotal, HTTPRequestDuration,
		EngineInflight, FetchedBytes,
	)
}

// DescribeTotal 描述请求总数（按结果）
var DescribeTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caption_describe_total",
		Help: "描述请求总数（按结果）",
	},
	[]string{"outcome"}, // ok | validation | forbidden_target | upstream_status | ...
)

// StageDuration 各阶段耗时（秒）
var StageDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "caption_stage_duration_seconds",
		Help:    "各阶段耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"component", "operation", "result"},
)

// HTTPRequestsTotal HTTP 请求总数
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "caption_http_requests_total",
		Help: "HTTP 请求总数",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration HTTP 请求耗时（秒）
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "caption_http_request_duration_seconds",
		Help:    "HTTP 请求耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// EngineInflight 正在执行的推理数
var EngineInflight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "caption_engine_inflight",
		Help: "正在执行的推理数",
	},
)

// FetchedBytes 抓取到的图片大小
var FetchedBytes = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "caption_fetched_bytes",
		Help:    "抓取到的图片字节数",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	},
)

// ObserveHTTP records one finished HTTP request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if !metricsEnabled() {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordOutcome counts a finished describe request by outcome label.
func RecordOutcome(outcome string) {
	if !metricsEnabled() {
		return
	}
	DescribeTotal.WithLabelValues(outcome).Inc()
}

// TrackInflight bumps the engine gauge and returns the matching release.
func TrackInflight() func() {
	if !metricsEnabled() {
		return func() {}
	}
	EngineInflight.Inc()
	return EngineInflight.Dec
}

// ObserveFetchedBytes records the size of a successfully fetched payload.
func ObserveFetchedBytes(n int) {
	if !metricsEnabled() {
		return
	}
	FetchedBytes.Observe(float64(n))
}

// Handler 暴露 Prometheus 文本格式
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
