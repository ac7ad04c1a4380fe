package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// トランザクションの終了理由
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeFailed     = "failed"
	OutcomeAbandoned  = "abandoned"
)

// 実行モード
const (
	ModeTransactional    = "transactional"
	ModeNonTransactional = "non_transactional"
)

// Metrics はトランザクション層のメトリクスを管理する
type Metrics struct {
	// 終了したトランザクションの総数（outcome: committed, rolled_back, failed, abandoned）
	TransactionsTotal *prometheus.CounterVec

	// 実行コンテキストに束縛中のトランザクション数
	ActiveTransactions prometheus.Gauge

	// SQL操作のレイテンシ（operation, mode）
	QueryDuration *prometheus.HistogramVec

	// 失敗したSQL操作の総数（operation, mode）
	QueryErrorsTotal *prometheus.CounterVec

	// 接続プールの状態（state: open, in_use, idle, waiting）
	PoolConnections *prometheus.GaugeVec

	// HTTPリクエストの総数（method, path, status）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_transactions_total",
				Help: "Total number of finished transactions by outcome",
			},
			[]string{"outcome"},
		),
		ActiveTransactions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_active_transactions",
				Help: "Current number of transactions bound to an execution context",
			},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "SQL operation latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation", "mode"},
		),
		QueryErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_query_errors_total",
				Help: "Total number of failed SQL operations",
			},
			[]string{"operation", "mode"},
		),
		PoolConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "db_pool_connections",
				Help: "Connection pool usage by state",
			},
			[]string{"state"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.TransactionsTotal,
		m.ActiveTransactions,
		m.QueryDuration,
		m.QueryErrorsTotal,
		m.PoolConnections,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// NewDiscard はどこにも公開しないメトリクスを作成する
func NewDiscard() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
