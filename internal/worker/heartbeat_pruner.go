package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
)

// HeartbeatPruneService は古い記録を削除するサービス
type HeartbeatPruneService interface {
	PruneHeartbeats(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HeartbeatPruner は保持期間を過ぎた記録を定期的に削除するワーカー
// 1回の削除は interval を上限に打ち切る
type HeartbeatPruner struct {
	service   HeartbeatPruneService
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewHeartbeatPruner(service HeartbeatPruneService, interval, retention time.Duration) *HeartbeatPruner {
	return &HeartbeatPruner{
		service:   service,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start は Stop かコンテキストのキャンセルまでブロックする
func (p *HeartbeatPruner) Start(ctx context.Context) {
	log := logger.Named("pruner")
	log.Info("記録削除ワーカー開始",
		zap.Duration("interval", p.interval),
		zap.Duration("retention", p.retention),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer close(p.doneCh)

	for {
		select {
		case <-ctx.Done():
			log.Info("記録削除ワーカー停止（コンテキストキャンセル）")
			return
		case <-p.stopCh:
			log.Info("記録削除ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *HeartbeatPruner) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *HeartbeatPruner) prune(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	count, err := p.service.PruneHeartbeats(ctx, p.retention)
	if err != nil {
		logger.Error("古い記録の削除に失敗しました", zap.Error(err))
		return
	}
	logger.Debug("記録削除ワーカー実行", zap.Int64("count", count))
}
