package heartbeat

import (
	"context"
	"time"

	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
)

// Repository は記録リポジトリのインターフェース
// q にはトランザクションと非トランザクションのどちらも渡せる
type Repository interface {
	// Create は記録を保存し、採番されたIDを設定する
	Create(ctx context.Context, q transaction.Query, h *Heartbeat) error

	// CreateBatch は複数の記録を1文で保存する
	CreateBatch(ctx context.Context, q transaction.Query, hs []*Heartbeat) (int64, error)

	// GetByID はIDから記録を取得する
	GetByID(ctx context.Context, q transaction.Query, id int64) (*Heartbeat, error)

	// List は新しい順に記録を取得する。なければ nil
	List(ctx context.Context, q transaction.Query, limit int) ([]*Heartbeat, error)

	// DeleteBefore は before より前の記録を削除する
	DeleteBefore(ctx context.Context, q transaction.Query, before time.Time) (int64, error)
}
