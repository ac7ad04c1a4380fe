package transaction

import (
	"errors"
	"fmt"
)

// トランザクション層のエラー定義
var (
	ErrConnection            = errors.New("データベース接続エラー")
	ErrExecution             = errors.New("SQL実行エラー")
	ErrTransactionInProgress = errors.New("トランザクションが既に進行中です。新しい接続を得るには先に終了してください")
	ErrTransactionClosed     = errors.New("トランザクションは既に終了しています")
	ErrNotInitialized        = errors.New("コーディネーターが初期化されていません")
)

// Error はドライバーのエラーを1種類のコアエラーに包む
// errors.Is で Kind と原因の両方を判定できる
type Error struct {
	Op   string
	Kind error
	Err  error
}

// NewError は新しい Error を作成する
func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
