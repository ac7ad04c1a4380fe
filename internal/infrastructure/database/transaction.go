package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"runtime"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/config"
	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
	"github.com/sanosuguru/go-txscope/internal/pkg/execctx"
	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

// bindKey は実行コンテキストにトランザクションを束縛する属性名
const bindKey = "db.transaction"

// txState は接続とトランザクションの所有状態
// 破棄時のクリーンアップから参照されるため *Transaction を参照してはならない
type txState struct {
	mu     sync.Mutex
	status transaction.Status
	conn   *sqlx.Conn
	tx     *sqlx.Tx
	// queryOnly は接続に PRAGMA query_only を設定したかどうか
	queryOnly bool
}

// Transaction は1本の接続を専有するトランザクション
// 接続は Commit か Rollback（または破棄時のクリーンアップ）でのみ解放される
type Transaction struct {
	runner
	readOnly bool
	scope    *execctx.Scope
	state    *txState
	cleanup  runtime.Cleanup
}

var _ transaction.Tx = (*Transaction)(nil)

// newTransaction は接続を取得してトランザクションを開始し、scope に束縛する
// scope に既にトランザクションが束縛されていれば ErrTransactionInProgress
func newTransaction(ctx context.Context, db *sqlx.DB, scope *execctx.Scope, readOnly bool, isolation sql.IsolationLevel, m *metrics.Metrics) (*Transaction, error) {
	const op = "begin"
	if scope.Get(bindKey) != nil {
		return nil, transaction.NewError(op, transaction.ErrTransactionInProgress, nil)
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, transaction.NewError(op, transaction.ErrConnection, err)
	}
	// SQLite のドライバーは TxOptions.ReadOnly を無視するので接続側で書き込みを禁止する
	queryOnly := readOnly && db.DriverName() == config.DriverSQLite
	if queryOnly {
		if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
			_ = closeConn(conn, true)
			return nil, wrapError(op, err)
		}
	}

	// トランザクションの寿命は Commit/Rollback だけで決まる
	// ctx はスコープ経由で *Transaction に到達するため sql.Tx に保持させない
	tx, err := conn.BeginTxx(context.Background(), &sql.TxOptions{Isolation: isolation, ReadOnly: readOnly})
	if err != nil {
		_ = closeConn(conn, queryOnly)
		return nil, wrapError(op, err)
	}

	t := &Transaction{
		readOnly: readOnly,
		scope:    scope,
		state:    &txState{status: transaction.StatusCreated, conn: conn, tx: tx, queryOnly: queryOnly},
	}
	t.runner = runner{policy: t, metrics: m}

	if !scope.SetIfAbsent(bindKey, t) {
		_ = tx.Rollback()
		_ = closeConn(conn, queryOnly)
		return nil, transaction.NewError(op, transaction.ErrTransactionInProgress, nil)
	}
	t.state.status = transaction.StatusActive
	m.ActiveTransactions.Inc()

	t.cleanup = runtime.AddCleanup(t, abandon, abandonment{
		state:   t.state,
		metrics: m,
		scopeID: scope.ID(),
	})
	return t, nil
}

// Commit はトランザクションをコミットし、接続を解放する
// コミットに失敗した場合もロールバック済みとして束縛を解除する
func (t *Transaction) Commit() error {
	return t.finish("commit", true, metrics.OutcomeCommitted)
}

// Rollback はトランザクションをロールバックし、接続を解放する
func (t *Transaction) Rollback() error {
	return t.finish("rollback", false, metrics.OutcomeRolledBack)
}

// ReadOnly は読み取り専用かどうかを返す
func (t *Transaction) ReadOnly() bool {
	return t.readOnly
}

// Status は現在の状態を返す
func (t *Transaction) Status() transaction.Status {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	return t.state.status
}

// IsTransactional は常に true
func (*Transaction) IsTransactional() bool { return true }

// ScopeID は束縛先の実行コンテキストの識別子を返す
func (t *Transaction) ScopeID() string {
	return t.scope.ID()
}

func (t *Transaction) finish(op string, commit bool, outcome string) error {
	s := t.state
	s.mu.Lock()
	if s.tx == nil {
		s.mu.Unlock()
		return transaction.NewError(op, transaction.ErrTransactionClosed, nil)
	}

	var err error
	if commit {
		err = s.tx.Commit()
	} else {
		err = s.tx.Rollback()
	}
	s.status = transaction.StatusCommitted
	if !commit || err != nil {
		s.status = transaction.StatusRolledBack
	}
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	closeErr := closeConn(s.conn, s.queryOnly)
	s.tx, s.conn = nil, nil
	s.mu.Unlock()

	// 失敗しても必ず束縛を解除する
	t.cleanup.Stop()
	t.scope.CompareAndDelete(bindKey, t)
	t.metrics.ActiveTransactions.Dec()
	t.metrics.TransactionsTotal.WithLabelValues(outcome).Inc()

	err = wrapError(op, err)
	if closeErr != nil {
		err = errors.Join(err, transaction.NewError(op, transaction.ErrConnection, closeErr))
	}
	return err
}

func (t *Transaction) acquire(context.Context) (execer, func() error, error) {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	if t.state.tx == nil {
		return nil, nil, transaction.NewError("acquire", transaction.ErrTransactionClosed, nil)
	}
	return t.state.tx, noRelease, nil
}

// fail は操作の失敗でトランザクションを終了させる
func (t *Transaction) fail(err error) error {
	if errors.Is(err, transaction.ErrTransactionClosed) {
		return err
	}
	if rbErr := t.finish("rollback", false, metrics.OutcomeFailed); rbErr != nil {
		logger.Error("エラー発生後のロールバックに失敗しました",
			zap.String("scope", t.scope.ID()),
			zap.Error(rbErr),
		)
		return errors.Join(err, rbErr)
	}
	return err
}

func (*Transaction) mode() string { return metrics.ModeTransactional }

func noRelease() error { return nil }

// closeConn は接続をプールに返す
// query_only は接続単位の設定なので解除してから返し、解除できなければ接続ごと破棄する
func closeConn(conn *sqlx.Conn, queryOnly bool) error {
	if queryOnly {
		if _, err := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); err != nil {
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			return err
		}
	}
	return conn.Close()
}

type abandonment struct {
	state   *txState
	metrics *metrics.Metrics
	scopeID string
}

// abandon はコミットもロールバックもされずに到達不能になったトランザクションを片付ける
func abandon(a abandonment) {
	s := a.state
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return
	}

	err := errors.Join(s.tx.Rollback(), closeConn(s.conn, s.queryOnly))
	s.tx, s.conn = nil, nil
	s.status = transaction.StatusRolledBack

	a.metrics.ActiveTransactions.Dec()
	a.metrics.TransactionsTotal.WithLabelValues(metrics.OutcomeAbandoned).Inc()
	logger.Warn("終了されずに破棄されたトランザクションをロールバックしました",
		zap.String("scope", a.scopeID),
		zap.Error(err),
	)
}
