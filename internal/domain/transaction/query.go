package transaction

import "context"

// GetField は1行目の先頭カラムを返す。行がなければ nil
// 2行目以降は無視する
func GetField[T any](ctx context.Context, q Query, query string, args ...any) (*T, error) {
	return GetObject(ctx, q, scanField[T], query, args...)
}

// GetFieldList は各行の先頭カラムを返す。行がなければ nil（空スライスではない）
func GetFieldList[T any](ctx context.Context, q Query, query string, args ...any) ([]T, error) {
	return GetObjectList(ctx, q, scanField[T], query, args...)
}

// GetObject は1行目を mapper で変換して返す。行がなければ nil
func GetObject[T any](ctx context.Context, q Query, mapper RowMapper[T], query string, args ...any) (*T, error) {
	var result *T
	err := q.QueryRows(ctx, SingleRowHandler(mapper, &result), query, args...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetObjectList は全行を mapper で変換して返す。行がなければ nil
func GetObjectList[T any](ctx context.Context, q Query, mapper RowMapper[T], query string, args ...any) ([]T, error) {
	var result []T
	err := q.QueryRows(ctx, MultipleRowHandler(mapper, &result), query, args...)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SingleRowHandler は先頭行のみを dest に格納する
func SingleRowHandler[T any](mapper RowMapper[T], dest **T) RowsHandler {
	return func(rows Rows) error {
		if !rows.Next() {
			return rows.Err()
		}
		v, err := mapper(rows, 1)
		if err != nil {
			return err
		}
		*dest = &v
		return nil
	}
}

// MultipleRowHandler は全行を dest に追加する
// 1行もなければ dest は nil のまま
func MultipleRowHandler[T any](mapper RowMapper[T], dest *[]T) RowsHandler {
	return func(rows Rows) error {
		row := 0
		for rows.Next() {
			row++
			v, err := mapper(rows, row)
			if err != nil {
				return err
			}
			*dest = append(*dest, v)
		}
		return rows.Err()
	}
}

func scanField[T any](row Rows, _ int) (T, error) {
	var v T
	err := row.Scan(&v)
	return v, err
}
