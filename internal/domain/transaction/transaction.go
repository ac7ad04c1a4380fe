package transaction

import (
	"context"
	"database/sql"
)

// Status はトランザクションのライフサイクル状態
type Status int

const (
	StatusCreated Status = iota
	StatusActive
	StatusCommitted
	StatusRolledBack
)

// String は状態名を返す
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusActive:
		return "ACTIVE"
	case StatusCommitted:
		return "COMMITTED"
	case StatusRolledBack:
		return "ROLLED_BACK"
	default:
		return "UNKNOWN"
	}
}

// Terminal は終端状態かどうかを返す
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusRolledBack
}

// Rows はクエリ結果の行カーソル
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	StructScan(dest any) error
	MapScan(dest map[string]any) error
	Columns() ([]string, error)
	ColumnTypes() ([]*sql.ColumnType, error)
	Err() error
}

// RowsHandler は結果セット全体を処理する
type RowsHandler func(rows Rows) error

// RowMapper は1行をオブジェクトに変換する。rowNum は1始まり
type RowMapper[T any] func(row Rows, rowNum int) (T, error)

// MultipleInsertMapper はマルチバリューINSERTの値を提供する
// Values の要素数は ValueGroups() * FieldsPerGroup() でなければならない
type MultipleInsertMapper interface {
	// ValueGroups はVALUESグループの数を返す
	ValueGroups() int
	// FieldsPerGroup は1グループあたりのフィールド数を返す
	FieldsPerGroup() int
	// Values は挿入する値を順番通りに平坦化して返す
	Values() []any
}

// MetaDataHandler は結果セットのカラムメタデータを受け取る
type MetaDataHandler interface {
	HandleMetaData(columns []*sql.ColumnType) error
}

// Query はトランザクションの有無に関係なく使えるSQL実行インターフェース
type Query interface {
	// QueryRows はクエリを実行し、結果セットを handler に渡す
	QueryRows(ctx context.Context, handler RowsHandler, query string, args ...any) error

	// ExecuteUpdate は更新系SQLを実行し、影響行数を返す
	ExecuteUpdate(ctx context.Context, query string, args ...any) (int64, error)

	// ExecuteBatchUpdate は同一SQLを引数セットごとに実行し、入力順に影響行数を返す
	ExecuteBatchUpdate(ctx context.Context, query string, args [][]any) ([]int64, error)

	// ExecuteUpdateWithKeys はINSERTを実行し、生成キーを返す
	ExecuteUpdateWithKeys(ctx context.Context, query string, args ...any) (*KeyHolder, error)

	// GetResultSetMetaData はクエリ結果のカラム情報を handler に渡す
	GetResultSetMetaData(ctx context.Context, handler MetaDataHandler, query string, args ...any) error

	// MultipleInsert はマルチバリューINSERTを1文で実行する
	MultipleInsert(ctx context.Context, query string, mapper MultipleInsertMapper) (int64, error)

	// MultipleInsertFrom は startingGroup 以降のグループだけプレースホルダを追加して実行する
	MultipleInsertFrom(ctx context.Context, query string, startingGroup int, mapper MultipleInsertMapper) (int64, error)

	// IsTransactional はトランザクションに束縛されているかを返す
	IsTransactional() bool
}

// Tx はトランザクションを表すインターフェース
type Tx interface {
	Query

	// Commit はトランザクションをコミットし、接続を解放する
	Commit() error
	// Rollback はトランザクションをロールバックし、接続を解放する
	Rollback() error
	// ReadOnly は読み取り専用かどうかを返す
	ReadOnly() bool
	// Status は現在の状態を返す
	Status() Status
}

// Manager はトランザクションを管理するインターフェース
type Manager interface {
	// NonTransactional は実行コンテキストに束縛中のトランザクション、なければ非トランザクションの Query を返す
	NonTransactional(ctx context.Context) (Query, error)
	// Begin は束縛中のトランザクションを返すか、新しく開始して束縛する
	Begin(ctx context.Context, readOnly bool) (Tx, error)
	// BoundTransaction は実行コンテキストに束縛中のトランザクションを返す
	BoundTransaction(ctx context.Context) (Tx, bool)
}
