package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
)

// wrapError はドライバーのエラーを transaction.Error に包む
// 既に包まれているエラーはそのまま返す
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *transaction.Error
	if errors.As(err, &te) {
		return err
	}
	kind := transaction.ErrExecution
	if isConnectionError(err) {
		kind = transaction.ErrConnection
	}
	return transaction.NewError(op, kind, err)
}

// isConnectionError は接続そのものの障害かどうかを判定する
func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	// PostgreSQL: クラス 08 は connection_exception
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}
	return false
}
