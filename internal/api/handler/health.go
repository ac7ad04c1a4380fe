package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
)

// HealthHandler はヘルスチェックハンドラー
type HealthHandler struct {
	db DatabaseInspector
}

// NewHealthHandler はHealthHandlerを作成する
func NewHealthHandler(db DatabaseInspector) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Database  *DatabaseStatus `json:"database,omitempty"`
}

// DatabaseStatus は接続元の状態
type DatabaseStatus struct {
	Driver        string `json:"driver"`
	ServerVersion string `json:"server_version,omitempty"`
	OpenConns     int    `json:"open_connections"`
	InUse         int    `json:"in_use"`
	Idle          int    `json:"idle"`
}

// Check はヘルスチェックを行う
// @Summary ヘルスチェック
// @Description アプリケーションとデータベースの健全性を確認する
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Check(c echo.Context) error {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if !h.db.IsInitialized() {
		resp.Status = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	md, err := h.db.DatabaseMetaData(c.Request().Context())
	if err != nil {
		logger.Warn("データベースのヘルスチェックに失敗しました", zap.Error(err))
		resp.Status = "unavailable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}

	resp.Database = &DatabaseStatus{
		Driver:        md.DriverName,
		ServerVersion: md.ServerVersion,
		OpenConns:     md.Stats.OpenConnections,
		InUse:         md.Stats.InUse,
		Idle:          md.Stats.Idle,
	}
	return c.JSON(http.StatusOK, resp)
}
