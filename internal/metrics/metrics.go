// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 外部呼び出しの結果ラベル
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 外部サービスクライアントやサービス層から利用する。
type MetricsCollector interface {
	RecordUpstream(service, outcome string, duration time.Duration)
	RecordExtractionFallback(strategy string)
	RecordUpload(action string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests   *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	extractionFallback *prometheus.CounterVec
	uploads            *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signbridge_upstream_requests_total",
			Help: "外部サービス呼び出しの合計数（サービス・結果別）",
		}, []string{"service", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signbridge_upstream_latency_seconds",
			Help:    "外部サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		extractionFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signbridge_signer_extraction_fallback_total",
			Help: "署名者抽出が失敗しオーナーのみのリストに縮退した回数",
		}, []string{"strategy"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signbridge_uploads_total",
			Help: "アップロードされたファイル数（アクション別）",
		}, []string{"action"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signbridge_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.extractionFallback,
		c.uploads,
		c.httpStatus,
	)

	return c
}

// RecordUpstream は外部サービス呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstream(service, outcome string, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(service, outcome).Inc()
	c.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordExtractionFallback は署名者抽出の縮退を記録する。
func (c *Collector) RecordExtractionFallback(strategy string) {
	c.extractionFallback.WithLabelValues(strategy).Inc()
}

// RecordUpload はアップロードを記録する。
func (c *Collector) RecordUpload(action string) {
	c.uploads.WithLabelValues(action).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordUpstream(string, string, time.Duration) {}
func (Nop) RecordExtractionFallback(string)              {}
func (Nop) RecordUpload(string)                          {}
func (Nop) RecordHTTPStatus(int)                         {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// statusRecorder はレスポンスのステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// NewStatusMiddleware はレスポンスのステータスコードを集計するミドルウェアを返す。
func NewStatusMiddleware(c MetricsCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.RecordHTTPStatus(rec.statusCode)
		})
	}
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
