package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-txscope/internal/pkg/execctx"
)

// HeaderScopeID は実行コンテキストの識別子を返すレスポンスヘッダー
const HeaderScopeID = "X-Scope-ID"

// TransactionCanceller は実行コンテキストに残ったトランザクションをロールバックする
type TransactionCanceller interface {
	CancelTransaction(ctx context.Context)
}

// ExecutionScope はリクエストごとに実行コンテキストのスコープを作成する
// ハンドラーの終了時にトランザクションが束縛されたままならロールバックする
func ExecutionScope(tc TransactionCanceller) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := execctx.WithScope(c.Request().Context())
			c.SetRequest(c.Request().WithContext(ctx))
			c.Response().Header().Set(HeaderScopeID, execctx.FromContext(ctx).ID())

			defer tc.CancelTransaction(ctx)
			return next(c)
		}
	}
}
