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
// HTTPミドルウェア、映画APIクライアント、認証サービスから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordProviderLookup(kind string, success bool, duration time.Duration)
	RecordCacheLookup(kind string, hit bool)
	RecordAuthAttempt(operation string, success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	providerLookups *prometheus.CounterVec
	providerLatency prometheus.Histogram
	cacheLookups    *prometheus.CounterVec
	authAttempts    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviefav_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moviefav_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		providerLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviefav_provider_lookups_total",
			Help: "映画APIの呼び出し数",
		}, []string{"kind", "result"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moviefav_provider_latency_seconds",
			Help:    "映画API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviefav_cache_lookups_total",
			Help: "映画情報キャッシュの参照数",
		}, []string{"kind", "result"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviefav_auth_attempts_total",
			Help: "登録・ログインの試行数",
		}, []string{"operation", "result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.providerLookups,
		c.providerLatency,
		c.cacheLookups,
		c.authAttempts,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルの種類数を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordProviderLookup は映画API呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordProviderLookup(kind string, success bool, duration time.Duration) {
	c.providerLookups.WithLabelValues(kind, resultLabel(success, "success", "failure")).Inc()
	c.providerLatency.Observe(duration.Seconds())
}

// RecordCacheLookup はキャッシュのヒット・ミスを記録する。
func (c *Collector) RecordCacheLookup(kind string, hit bool) {
	c.cacheLookups.WithLabelValues(kind, resultLabel(hit, "hit", "miss")).Inc()
}

// RecordAuthAttempt は登録・ログインの成否を記録する。
func (c *Collector) RecordAuthAttempt(operation string, success bool) {
	c.authAttempts.WithLabelValues(operation, resultLabel(success, "success", "failure")).Inc()
}

func resultLabel(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordProviderLookup(string, bool, time.Duration)    {}
func (NopCollector) RecordCacheLookup(string, bool)                      {}
func (NopCollector) RecordAuthAttempt(string, bool)                      {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
