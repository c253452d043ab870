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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordRegistration()
	RecordUpload(fileCount int)
	RecordHTTPStatus(statusCode int)
	RecordUpstreamLatency(operation string, d time.Duration)
	RecordUpstreamError(operation string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFail       prometheus.Counter
	registrations   prometheus.Counter
	uploadedFiles   prometheus.Counter
	httpStatus      *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	upstreamErrors  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "closetpic_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "closetpic_login_fail_total",
			Help: "ログイン失敗の合計数",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "closetpic_registrations_total",
			Help: "ユーザー登録の合計数",
		}),
		uploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "closetpic_uploaded_files_total",
			Help: "アップロードされた画像ファイルの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "closetpic_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "closetpic_upstream_latency_seconds",
			Help:    "外部ストアAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "closetpic_upstream_errors_total",
			Help: "外部ストアAPI呼び出し失敗の合計数",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.registrations,
		c.uploadedFiles,
		c.httpStatus,
		c.upstreamLatency,
		c.upstreamErrors,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordRegistration はユーザー登録を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordUpload はアップロードされたファイル数を記録する。
func (c *Collector) RecordUpload(fileCount int) {
	c.uploadedFiles.Add(float64(fileCount))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は外部ストア呼び出しのレイテンシを操作別に記録する。
func (c *Collector) RecordUpstreamLatency(operation string, d time.Duration) {
	c.upstreamLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordUpstreamError は外部ストア呼び出しの失敗を操作別に記録する。
func (c *Collector) RecordUpstreamError(operation string) {
	c.upstreamErrors.WithLabelValues(operation).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
