package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/config"
	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
	"github.com/sanosuguru/go-txscope/internal/pkg/execctx"
	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

// Coordinator は実行コンテキストごとに「現在のトランザクション」を管理する
// 1つの実行コンテキストに束縛されるトランザクションは高々1つ
type Coordinator struct {
	mu          sync.RWMutex
	db          *sqlx.DB
	initialized bool

	metrics   *metrics.Metrics
	isolation sql.IsolationLevel
}

var _ transaction.Manager = (*Coordinator)(nil)

// Option は Coordinator の設定を変更する
type Option func(*Coordinator)

// WithMetrics はメトリクスの出力先を設定する
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithIsolationLevel は新しいトランザクションの分離レベルを設定する
func WithIsolationLevel(level sql.IsolationLevel) Option {
	return func(c *Coordinator) {
		c.isolation = level
	}
}

// NewCoordinator は未初期化の Coordinator を作成する
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{isolation: sql.LevelDefault}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewDiscard()
	}
	return c
}

// Initialize は接続元を登録する。疎通確認に失敗した場合は初期化しない
// 初期化済みなら何もしない
func (c *Coordinator) Initialize(ctx context.Context, db *sqlx.DB) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		logger.Warn("コーディネーターは既に初期化されています")
		return nil
	}
	if db == nil {
		return errors.New("接続元が指定されていません")
	}

	if _, err := transaction.GetField[int64](ctx, newNonTransaction(db, c.metrics), "SELECT 1"); err != nil {
		return fmt.Errorf("データベースの疎通確認に失敗しました: %w", err)
	}

	c.db = db
	c.initialized = true
	logger.Info("コーディネーターを初期化しました", zap.String("driver", db.DriverName()))
	return nil
}

// Shutdown は接続元の参照を破棄する。接続元は閉じない
// 未初期化なら何もしない
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		logger.Warn("コーディネーターは初期化されていません")
		return
	}
	c.db = nil
	c.initialized = false
	logger.Info("コーディネーターを終了しました")
}

// IsInitialized は初期化済みかどうかを返す
func (c *Coordinator) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// DB は登録されている接続元を返す。未初期化なら nil
func (c *Coordinator) DB() *sqlx.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

func (c *Coordinator) source(op string) (*sqlx.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return nil, transaction.NewError(op, transaction.ErrNotInitialized, nil)
	}
	return c.db, nil
}

// Current は ctx に束縛中のトランザクションを返す。なければ nil
func (c *Coordinator) Current(ctx context.Context) *Transaction {
	return current(execctx.FromContext(ctx))
}

// BoundTransaction は Current を transaction.Tx として返す
func (c *Coordinator) BoundTransaction(ctx context.Context) (transaction.Tx, bool) {
	if tx := c.Current(ctx); tx != nil {
		return tx, true
	}
	return nil, false
}

func current(scope *execctx.Scope) *Transaction {
	if scope == nil {
		return nil
	}
	tx, _ := scope.Get(bindKey).(*Transaction)
	return tx
}

// NonTransactional は束縛中のトランザクションがあればそれを、なければ自動コミットの Query を返す
func (c *Coordinator) NonTransactional(ctx context.Context) (transaction.Query, error) {
	db, err := c.source("non_transactional")
	if err != nil {
		return nil, err
	}
	if tx := c.Current(ctx); tx != nil {
		return tx, nil
	}
	return c.newNonTransaction(ctx, db)
}

// newNonTransaction はトランザクションが束縛されていないことを確認してから作成する
func (c *Coordinator) newNonTransaction(ctx context.Context, db *sqlx.DB) (*NonTransaction, error) {
	if c.Current(ctx) != nil {
		return nil, transaction.NewError("non_transactional", transaction.ErrTransactionInProgress, nil)
	}
	return newNonTransaction(db, c.metrics), nil
}

// Transaction は束縛中のトランザクションを返す。なければ新しく開始して束縛する
// 束縛中のトランザクションを返す場合 readOnly は無視される
func (c *Coordinator) Transaction(ctx context.Context, readOnly bool) (*Transaction, error) {
	db, err := c.source("transaction")
	if err != nil {
		return nil, err
	}
	scope := execctx.FromContext(ctx)
	if scope == nil {
		return nil, fmt.Errorf("transaction: %w", execctx.ErrNoScope)
	}
	if tx := current(scope); tx != nil {
		return tx, nil
	}
	return newTransaction(ctx, db, scope, readOnly, c.isolation, c.metrics)
}

// ReadOnlyTransaction は読み取り専用で Transaction を呼ぶ
func (c *Coordinator) ReadOnlyTransaction(ctx context.Context) (*Transaction, error) {
	return c.Transaction(ctx, true)
}

// Begin は Transaction を transaction.Tx として返す
func (c *Coordinator) Begin(ctx context.Context, readOnly bool) (transaction.Tx, error) {
	tx, err := c.Transaction(ctx, readOnly)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CancelTransaction は束縛中のトランザクションをロールバックする
// ロールバックの失敗はログに残すだけ
func (c *Coordinator) CancelTransaction(ctx context.Context) {
	tx := c.Current(ctx)
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil {
		logger.Warn("トランザクションのキャンセルに失敗しました",
			zap.String("scope", tx.ScopeID()),
			zap.Error(err),
		)
	}
}

// WithTransaction は fn をトランザクション内で実行する
// fn が nil を返せばコミット、エラーかパニックならロールバックする
// 既にトランザクションが束縛されていれば、それに参加して fn を呼ぶだけ
func (c *Coordinator) WithTransaction(ctx context.Context, readOnly bool, fn func(ctx context.Context, tx *Transaction) error) error {
	ctx = execctx.WithScope(ctx)
	if tx := c.Current(ctx); tx != nil {
		return fn(ctx, tx)
	}

	tx, err := c.Transaction(ctx, readOnly)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if tx.Status().Terminal() {
			return err
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if tx.Status().Terminal() {
		return nil
	}
	return tx.Commit()
}

// MetaData は接続元の情報
type MetaData struct {
	DriverName    string
	ServerVersion string
	Stats         sql.DBStats
}

// DatabaseMetaData はドライバー名、サーバーのバージョン、接続プールの状態を返す
func (c *Coordinator) DatabaseMetaData(ctx context.Context) (*MetaData, error) {
	db, err := c.source("metadata")
	if err != nil {
		return nil, err
	}
	md := &MetaData{DriverName: db.DriverName()}

	if probe := versionQuery(md.DriverName); probe != "" {
		q, err := c.NonTransactional(ctx)
		if err != nil {
			return nil, err
		}
		version, err := transaction.GetField[string](ctx, q, probe)
		if err != nil {
			return nil, err
		}
		if version != nil {
			md.ServerVersion = *version
		}
	}

	md.Stats = db.Stats()
	return md, nil
}

func versionQuery(driver string) string {
	switch driver {
	case config.DriverPostgres:
		return "SHOW server_version"
	case config.DriverSQLite:
		return "SELECT sqlite_version()"
	default:
		return ""
	}
}
