package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
)

func TestWrapError(t *testing.T) {
	t.Run("nil は nil", func(t *testing.T) {
		assert.NoError(t, wrapError("query", nil))
	})

	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "不正な接続", err: driver.ErrBadConn, kind: transaction.ErrConnection},
		{name: "解放済みの接続", err: fmt.Errorf("exec: %w", sql.ErrConnDone), kind: transaction.ErrConnection},
		{name: "PostgreSQL の接続例外", err: &pq.Error{Code: "08006"}, kind: transaction.ErrConnection},
		{name: "PostgreSQL の一意制約違反", err: &pq.Error{Code: "23505"}, kind: transaction.ErrExecution},
		{name: "その他のエラー", err: errors.New("syntax error"), kind: transaction.ErrExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError("update", tt.err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)

			var coreErr *transaction.Error
			assert.ErrorAs(t, err, &coreErr)
			assert.Equal(t, "update", coreErr.Op)
		})
	}

	t.Run("包まれたエラーはそのまま返す", func(t *testing.T) {
		original := transaction.NewError("acquire", transaction.ErrTransactionClosed, nil)
		assert.Same(t, original, wrapError("update", original))
	})
}
