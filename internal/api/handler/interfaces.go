package handler

import (
	"context"

	"github.com/sanosuguru/go-txscope/internal/domain/heartbeat"
	"github.com/sanosuguru/go-txscope/internal/infrastructure/database"
)

// HeartbeatServiceInterface は記録サービスのインターフェース
type HeartbeatServiceInterface interface {
	Record(ctx context.Context, source string) (*heartbeat.Heartbeat, error)
	RecordBatch(ctx context.Context, sources []string) (int64, error)
	Get(ctx context.Context, id int64) (*heartbeat.Heartbeat, error)
	List(ctx context.Context, limit int) ([]*heartbeat.Heartbeat, error)
}

// DatabaseInspector は接続元の状態を返す
type DatabaseInspector interface {
	IsInitialized() bool
	DatabaseMetaData(ctx context.Context) (*database.MetaData, error)
}
