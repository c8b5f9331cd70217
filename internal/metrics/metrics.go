// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(statusCode int, duration time.Duration)
	RecordLogin(result string)
	RecordImageStored()
	RecordImageCleanupFailure()
	RecordTokensCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    prometheus.Histogram
	logins          *prometheus.CounterVec
	imagesStored    prometheus.Counter
	cleanupFailures prometheus.Counter
	tokensCleaned   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_http_requests_total",
			Help: "HTTPステータスコード別のリクエスト数",
		}, []string{"status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelf_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelf_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		imagesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelf_images_stored_total",
			Help: "保存されたバナー画像の合計数",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelf_image_cleanup_failures_total",
			Help: "画像の後片付け（削除）に失敗した回数",
		}),
		tokensCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelf_tokens_cleaned_total",
			Help: "削除された期限切れトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.logins,
		c.imagesStored,
		c.cleanupFailures,
		c.tokensCleaned,
	)

	return c
}

// RecordHTTPRequest はHTTPレスポンスのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordImageStored は画像保存を記録する。
func (c *Collector) RecordImageStored() {
	c.imagesStored.Inc()
}

// RecordImageCleanupFailure は画像削除の失敗を記録する。
func (c *Collector) RecordImageCleanupFailure() {
	c.cleanupFailures.Inc()
}

// RecordTokensCleaned は削除された期限切れトークン数を記録する。
func (c *Collector) RecordTokensCleaned(count int64) {
	c.tokensCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
