package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/domain/heartbeat"
	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
	"github.com/sanosuguru/go-txscope/internal/pkg/execctx"
	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type HeartbeatService struct {
	txManager transaction.Manager
	repo      heartbeat.Repository
}

func NewHeartbeatService(txManager transaction.Manager, repo heartbeat.Repository) *HeartbeatService {
	return &HeartbeatService{txManager: txManager, repo: repo}
}

// inTransaction は fn をトランザクション内で実行する
// 実行コンテキストに束縛中のトランザクションがあればそれに参加し、終了は呼び出し元に任せる
func (s *HeartbeatService) inTransaction(ctx context.Context, readOnly bool, fn func(q transaction.Query) error) error {
	if current, ok := s.txManager.BoundTransaction(ctx); ok {
		return fn(current)
	}

	tx, err := s.txManager.Begin(ctx, readOnly)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	defer func() {
		if tx.Status().Terminal() {
			return
		}
		if err := tx.Rollback(); err != nil {
			logger.Warn("ロールバックに失敗しました", zap.Error(err))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗しました: %w", err)
	}
	return nil
}

// Record は実行コンテキストの識別子で記録を1件保存する
func (s *HeartbeatService) Record(ctx context.Context, source string) (*heartbeat.Heartbeat, error) {
	ctx = execctx.WithScope(ctx)
	h := heartbeat.NewHeartbeat(execctx.FromContext(ctx).ID(), source)
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	err := s.inTransaction(ctx, false, func(q transaction.Query) error {
		return s.repo.Create(ctx, q, h)
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// RecordBatch は同じ実行コンテキストで複数の記録を1文で保存する
func (s *HeartbeatService) RecordBatch(ctx context.Context, sources []string) (int64, error) {
	if len(sources) == 0 {
		return 0, nil
	}
	ctx = execctx.WithScope(ctx)
	scopeID := execctx.FromContext(ctx).ID()

	hs := make([]*heartbeat.Heartbeat, 0, len(sources))
	for _, source := range sources {
		h := heartbeat.NewHeartbeat(scopeID, source)
		if err := h.Validate(); err != nil {
			return 0, fmt.Errorf("バリデーションエラー: %w", err)
		}
		hs = append(hs, h)
	}

	var n int64
	err := s.inTransaction(ctx, false, func(q transaction.Query) error {
		var err error
		n, err = s.repo.CreateBatch(ctx, q, hs)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *HeartbeatService) Get(ctx context.Context, id int64) (*heartbeat.Heartbeat, error) {
	q, err := s.txManager.NonTransactional(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, q, id)
}

func (s *HeartbeatService) List(ctx context.Context, limit int) ([]*heartbeat.Heartbeat, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	q, err := s.txManager.NonTransactional(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, q, limit)
}

// PruneHeartbeats は olderThan より古い記録を削除し、削除件数を返す
func (s *HeartbeatService) PruneHeartbeats(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx = execctx.WithScope(ctx)
	before := time.Now().Add(-olderThan)

	var n int64
	err := s.inTransaction(ctx, false, func(q transaction.Query) error {
		var err error
		n, err = s.repo.DeleteBefore(ctx, q, before)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("古い記録を削除しました", zap.Int64("count", n))
	}
	return n, nil
}
