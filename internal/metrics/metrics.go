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
// 認証コーディネーター、zyBooksクライアント、成績同期サービスから利用する。
type MetricsCollector interface {
	RecordAuthTransition(provider, outcome string)
	RecordAuthSuperseded(provider string)
	RecordZybooksStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordGradeSync(result string)
	RecordChaptersAggregated(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authTransitions    *prometheus.CounterVec
	authSuperseded     *prometheus.CounterVec
	zybooksStatus      *prometheus.CounterVec
	fetchLatency       prometheus.Histogram
	gradeSyncs         *prometheus.CounterVec
	chaptersAggregated prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autograder_auth_transitions_total",
			Help: "プロバイダー別の認証状態遷移数",
		}, []string{"provider", "outcome"}),
		authSuperseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autograder_auth_superseded_total",
			Help: "新しい呼び出しに置き換えられ破棄された認証結果の数",
		}, []string{"provider"}),
		zybooksStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autograder_zybooks_http_status_total",
			Help: "zyBooks APIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autograder_zybooks_fetch_latency_seconds",
			Help:    "zyBooks API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		gradeSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autograder_grade_syncs_total",
			Help: "結果別の成績同期数",
		}, []string{"result"}),
		chaptersAggregated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autograder_chapters_aggregated_total",
			Help: "集計されたチャプターの合計数",
		}),
	}

	reg.MustRegister(
		c.authTransitions,
		c.authSuperseded,
		c.zybooksStatus,
		c.fetchLatency,
		c.gradeSyncs,
		c.chaptersAggregated,
	)

	return c
}

// RecordAuthTransition は認証状態の遷移を記録する。
func (c *Collector) RecordAuthTransition(provider, outcome string) {
	c.authTransitions.WithLabelValues(provider, outcome).Inc()
}

// RecordAuthSuperseded は破棄された認証結果を記録する。
func (c *Collector) RecordAuthSuperseded(provider string) {
	c.authSuperseded.WithLabelValues(provider).Inc()
}

// RecordZybooksStatus はzyBooks APIのHTTPステータスコードを記録する。
func (c *Collector) RecordZybooksStatus(statusCode int) {
	c.zybooksStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はzyBooks API呼び出しのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordGradeSync は成績同期の結果を記録する。
func (c *Collector) RecordGradeSync(result string) {
	c.gradeSyncs.WithLabelValues(result).Inc()
}

// RecordChaptersAggregated は集計されたチャプター数を記録する。
func (c *Collector) RecordChaptersAggregated(count int) {
	c.chaptersAggregated.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
