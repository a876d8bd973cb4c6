// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordGeneration(operation, result string, duration time.Duration)
	RecordApprovalRejection(stage, reason string)
	RecordAuthEvent(event, result string)
	RecordHTTPStatus(statusCode int)
	RecordRateLimited(tier string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generations        *prometheus.CounterVec
	generationLatency  *prometheus.HistogramVec
	approvalRejections *prometheus.CounterVec
	authEvents         *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	rateLimited        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthdesk_generation_total",
			Help: "生成API呼び出しの合計数（操作・結果別）",
		}, []string{"operation", "result"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "growthdesk_generation_latency_seconds",
			Help: "生成API呼び出しのレイテンシ（秒）",
			// 画像生成は数十秒かかるためデフォルトより長いバケットを使う
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"operation"}),
		approvalRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthdesk_approval_rejected_total",
			Help: "承認ゲートで拒否されたリクエスト数",
		}, []string{"stage", "reason"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthdesk_auth_events_total",
			Help: "認証イベント数（種別・結果別）",
		}, []string{"event", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthdesk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "growthdesk_rate_limited_total",
			Help: "レート制限で拒否されたリクエスト数",
		}, []string{"tier"}),
	}

	reg.MustRegister(
		c.generations,
		c.generationLatency,
		c.approvalRejections,
		c.authEvents,
		c.httpStatus,
		c.rateLimited,
	)

	return c
}

// RecordGeneration は生成API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordGeneration(operation, result string, duration time.Duration) {
	c.generations.WithLabelValues(operation, result).Inc()
	c.generationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordApprovalRejection は承認ゲートでの拒否を記録する。
func (c *Collector) RecordApprovalRejection(stage, reason string) {
	c.approvalRejections.WithLabelValues(stage, reason).Inc()
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, result string) {
	c.authEvents.WithLabelValues(event, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(tier string) {
	c.rateLimited.WithLabelValues(tier).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var _ MetricsCollector = (*Collector)(nil)
