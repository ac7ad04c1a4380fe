package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

// execer は *sqlx.Conn と *sqlx.Tx の共通部分
type execer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
	Rebind(query string) string
}

// connPolicy は接続の取得・解放と失敗時の後始末を決める
// 実装は呼び出しごとの接続（perCallConn）と束縛された接続（*Transaction）の2つだけ
type connPolicy interface {
	acquire(ctx context.Context) (execer, func() error, error)
	fail(err error) error
	mode() string
}

var (
	returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)
	// 文字列リテラル、引用符付き識別子、行コメント
	quotedOrComment = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"|--[^\n]*`)
)

// hasReturning はリテラルやコメントの外に RETURNING 句があるかどうかを返す
func hasReturning(query string) bool {
	return returningClause.MatchString(quotedOrComment.ReplaceAllString(query, " "))
}

// runner は接続の種類を意識せずにSQLを実行する
type runner struct {
	policy  connPolicy
	metrics *metrics.Metrics
}

func (r *runner) run(ctx context.Context, op string, fn func(c execer) error) error {
	mode := r.policy.mode()
	start := time.Now()
	defer func() {
		r.metrics.QueryDuration.WithLabelValues(op, mode).Observe(time.Since(start).Seconds())
	}()

	c, release, err := r.policy.acquire(ctx)
	if err != nil {
		// 終了済みトランザクションへの呼び出しはSQLを実行していないので数えない
		if !errors.Is(err, transaction.ErrTransactionClosed) {
			r.metrics.QueryErrorsTotal.WithLabelValues(op, mode).Inc()
		}
		return wrapError(op, err)
	}

	err = wrapError(op, fn(c))
	// 失敗時もエラーを返す前に解放する
	if relErr := release(); relErr != nil {
		err = errors.Join(err, transaction.NewError(op, transaction.ErrConnection, relErr))
	}
	if err != nil {
		r.metrics.QueryErrorsTotal.WithLabelValues(op, mode).Inc()
		return r.policy.fail(err)
	}
	return nil
}

func (r *runner) QueryRows(ctx context.Context, handler transaction.RowsHandler, query string, args ...any) error {
	return r.run(ctx, "query", func(c execer) error {
		rows, err := c.QueryxContext(ctx, c.Rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		if err := handler(rows); err != nil {
			return err
		}
		return rows.Err()
	})
}

func (r *runner) ExecuteUpdate(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := r.run(ctx, "update", func(c execer) error {
		n, err := execUpdate(ctx, c, query, args)
		affected = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (r *runner) ExecuteBatchUpdate(ctx context.Context, query string, args [][]any) ([]int64, error) {
	if len(args) == 0 {
		return []int64{}, nil
	}
	affected := make([]int64, 0, len(args))
	err := r.run(ctx, "batch_update", func(c execer) error {
		stmt, err := c.PreparexContext(ctx, c.Rebind(query))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, set := range args {
			res, err := stmt.ExecContext(ctx, set...)
			if err != nil {
				return fmt.Errorf("バッチ %d 件目: %w", i+1, err)
			}
			affected = append(affected, rowsAffected(res))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

func (r *runner) ExecuteUpdateWithKeys(ctx context.Context, query string, args ...any) (*transaction.KeyHolder, error) {
	var keys *transaction.KeyHolder
	err := r.run(ctx, "update_with_keys", func(c execer) error {
		var err error
		if hasReturning(query) {
			keys, err = returnedKeys(ctx, c, query, args)
			return err
		}
		res, err := c.ExecContext(ctx, c.Rebind(query), args...)
		if err != nil {
			return err
		}
		keys = lastInsertKeys(res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *runner) GetResultSetMetaData(ctx context.Context, handler transaction.MetaDataHandler, query string, args ...any) error {
	return r.run(ctx, "metadata", func(c execer) error {
		rows, err := c.QueryxContext(ctx, c.Rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		columns, err := rows.ColumnTypes()
		if err != nil {
			return err
		}
		return handler.HandleMetaData(columns)
	})
}

func (r *runner) MultipleInsert(ctx context.Context, query string, mapper transaction.MultipleInsertMapper) (int64, error) {
	return r.MultipleInsertFrom(ctx, query, 0, mapper)
}

func (r *runner) MultipleInsertFrom(ctx context.Context, query string, startingGroup int, mapper transaction.MultipleInsertMapper) (int64, error) {
	groups := mapper.ValueGroups()
	if groups < 1 {
		return 0, nil
	}
	var affected int64
	err := r.run(ctx, "multiple_insert", func(c execer) error {
		fields := mapper.FieldsPerGroup()
		values := mapper.Values()
		if len(values) != groups*fields {
			return fmt.Errorf("値の数 %d がグループ数 %d × フィールド数 %d と一致しません", len(values), groups, fields)
		}
		n, err := execUpdate(ctx, c, BuildMultipleInsert(query, startingGroup, groups, fields), values)
		affected = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func execUpdate(ctx context.Context, c execer, query string, args []any) (int64, error) {
	res, err := c.ExecContext(ctx, c.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

// rowsAffected は影響行数を返す。結果を返さない文は0
func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// returnedKeys は RETURNING 句の結果を行ごとのキーとして読み取る
func returnedKeys(ctx context.Context, c execer, query string, args []any) (*transaction.KeyHolder, error) {
	rows, err := c.QueryxContext(ctx, c.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var keys []map[string]any
	for rows.Next() {
		key := make(map[string]any, len(columns))
		if err := rows.MapScan(key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transaction.NewKeyHolder(columns, keys), nil
}

// lastInsertKeys は LastInsertId を生成キーとして返す
// ドライバーが対応していなければキーなし
func lastInsertKeys(res sql.Result) *transaction.KeyHolder {
	id, err := res.LastInsertId()
	if err != nil {
		return transaction.NewKeyHolder(nil, nil)
	}
	return transaction.NewKeyHolder(
		[]string{transaction.GeneratedKeyLabel},
		[]map[string]any{{transaction.GeneratedKeyLabel: id}},
	)
}

// perCallConn は呼び出しごとに接続を取得し、呼び出し後に必ず閉じる
type perCallConn struct {
	db *sqlx.DB
}

func (p perCallConn) acquire(ctx context.Context) (execer, func() error, error) {
	conn, err := p.db.Connx(ctx)
	if err != nil {
		return nil, nil, transaction.NewError("acquire", transaction.ErrConnection, err)
	}
	return conn, conn.Close, nil
}

func (perCallConn) fail(err error) error { return err }

func (perCallConn) mode() string { return metrics.ModeNonTransactional }

// NonTransaction は自動コミットで呼び出しごとに接続を解放する Query
type NonTransaction struct {
	runner
}

func newNonTransaction(db *sqlx.DB, m *metrics.Metrics) *NonTransaction {
	return &NonTransaction{runner: runner{policy: perCallConn{db: db}, metrics: m}}
}

func (*NonTransaction) IsTransactional() bool { return false }

var _ transaction.Query = (*NonTransaction)(nil)
