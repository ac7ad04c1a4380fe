package transaction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("種類と原因の両方で判定できる", func(t *testing.T) {
		err := NewError("acquire", ErrConnection, cause)
		assert.ErrorIs(t, err, ErrConnection)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrExecution)
		assert.Equal(t, "acquire: データベース接続エラー: connection refused", err.Error())
	})

	t.Run("原因がなければ種類だけ", func(t *testing.T) {
		err := NewError("commit", ErrTransactionClosed, nil)
		assert.ErrorIs(t, err, ErrTransactionClosed)
		assert.Equal(t, "commit: トランザクションは既に終了しています", err.Error())
	})

	t.Run("errors.As で取り出せる", func(t *testing.T) {
		wrapped := errors.Join(errors.New("other"), NewError("update", ErrExecution, cause))
		var e *Error
		assert.ErrorAs(t, wrapped, &e)
		assert.Equal(t, "update", e.Op)
	})
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "CREATED", StatusCreated.String())
	assert.Equal(t, "ACTIVE", StatusActive.String())
	assert.Equal(t, "COMMITTED", StatusCommitted.String())
	assert.Equal(t, "ROLLED_BACK", StatusRolledBack.String())
	assert.Equal(t, "UNKNOWN", Status(99).String())

	assert.False(t, StatusCreated.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusCommitted.Terminal())
	assert.True(t, StatusRolledBack.Terminal())
}
