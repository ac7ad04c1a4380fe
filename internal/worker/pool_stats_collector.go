package worker

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

// 接続プールの状態ラベル
const (
	StateOpen    = "open"
	StateInUse   = "in_use"
	StateIdle    = "idle"
	StateWaiting = "waiting"
)

// StatsSource は接続プールの統計を返す（*sqlx.DB が満たす）
type StatsSource interface {
	Stats() sql.DBStats
}

// PoolStatsCollector は接続プールの状態を定期的にメトリクスへ書き出すワーカー
type PoolStatsCollector struct {
	source   StatsSource
	metrics  *metrics.Metrics
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPoolStatsCollector は新しいコレクターを作成
func NewPoolStatsCollector(source StatsSource, m *metrics.Metrics, interval time.Duration) *PoolStatsCollector {
	return &PoolStatsCollector{
		source:   source,
		metrics:  m,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はコレクターを開始
func (c *PoolStatsCollector) Start(ctx context.Context) {
	logger.Info("接続プール統計コレクター開始", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.doneCh)

	// 起動直後の値も出す
	c.collect()

	for {
		select {
		case <-ctx.Done():
			logger.Info("接続プール統計コレクター停止（コンテキストキャンセル）")
			return
		case <-c.stopCh:
			logger.Info("接続プール統計コレクター停止（シグナル受信）")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Stop はコレクターを停止
func (c *PoolStatsCollector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

// collect は現在の統計をゲージに反映する
func (c *PoolStatsCollector) collect() {
	stats := c.source.Stats()

	c.metrics.PoolConnections.WithLabelValues(StateOpen).Set(float64(stats.OpenConnections))
	c.metrics.PoolConnections.WithLabelValues(StateInUse).Set(float64(stats.InUse))
	c.metrics.PoolConnections.WithLabelValues(StateIdle).Set(float64(stats.Idle))
	c.metrics.PoolConnections.WithLabelValues(StateWaiting).Set(float64(stats.WaitCount))

	logger.Debug("接続プール統計",
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int("idle", stats.Idle),
		zap.Int64("wait_count", stats.WaitCount),
	)
}
