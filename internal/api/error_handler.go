package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/domain/heartbeat"
	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorStatus はエラーをステータスコードとメッセージに変換する
func ErrorStatus(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	}

	switch {
	case errors.Is(err, heartbeat.ErrHeartbeatNotFound):
		return http.StatusNotFound, heartbeat.ErrHeartbeatNotFound.Error()
	case errors.Is(err, heartbeat.ErrScopeRequired),
		errors.Is(err, heartbeat.ErrSourceRequired),
		errors.Is(err, heartbeat.ErrSourceTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, transaction.ErrTransactionInProgress):
		return http.StatusConflict, transaction.ErrTransactionInProgress.Error()
	case errors.Is(err, transaction.ErrConnection),
		errors.Is(err, transaction.ErrNotInitialized):
		return http.StatusServiceUnavailable, "データベースに接続できません"
	default:
		return http.StatusInternalServerError, "内部サーバーエラー"
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, message := ErrorStatus(err)

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
