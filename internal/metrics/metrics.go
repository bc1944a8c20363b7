package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// generationTotal 各能力的生成调用计数，按结果区分
	generationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_ai_generations_total",
			Help: "Total number of AI generation calls by capability and outcome.",
		},
		[]string{"capability", "outcome"},
	)

	// generationDuration 生成调用耗时分布
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "email_ai_generation_duration_seconds",
			Help:    "Duration of AI generation calls.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s ~ 51.2s
		},
		[]string{"capability"},
	)

	// gateDenials 被功能开关拒绝的请求计数
	gateDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_ai_gate_denials_total",
			Help: "Requests rejected by the gate hierarchy.",
		},
		[]string{"capability"},
	)
)

// ObserveGeneration 记录一次生成调用的结果与耗时
func ObserveGeneration(capability string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	generationTotal.WithLabelValues(capability, outcome).Inc()
	generationDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

// ObserveGateDenial 记录一次被开关拒绝的请求
func ObserveGateDenial(capability string) {
	gateDenials.WithLabelValues(capability).Inc()
}

// Handler 返回 /metrics 端点的 HTTP 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
