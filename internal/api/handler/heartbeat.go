package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-txscope/internal/domain/heartbeat"
)

type HeartbeatHandler struct {
	heartbeatService HeartbeatServiceInterface
}

func NewHeartbeatHandler(heartbeatService HeartbeatServiceInterface) *HeartbeatHandler {
	return &HeartbeatHandler{heartbeatService: heartbeatService}
}

type RecordHeartbeatRequest struct {
	Source string `json:"source" validate:"required,max=64" example:"api"`
}

type RecordHeartbeatsRequest struct {
	Sources []string `json:"sources" validate:"required,min=1,max=100,dive,required,max=64" example:"api,worker"`
}

type HeartbeatResponse struct {
	ID        int64  `json:"id" example:"42"`
	ScopeID   string `json:"scope_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Source    string `json:"source" example:"api"`
	CheckedAt string `json:"checked_at" example:"2026-10-19T10:00:00Z"`
}

type RecordHeartbeatsResponse struct {
	Inserted int64 `json:"inserted" example:"2"`
}

func toHeartbeatResponse(h *heartbeat.Heartbeat) *HeartbeatResponse {
	return &HeartbeatResponse{
		ID:        h.ID,
		ScopeID:   h.ScopeID,
		Source:    h.Source,
		CheckedAt: h.CheckedAt.Format(time.RFC3339Nano),
	}
}

// Record godoc
// @Summary 疎通記録を作成
// @Description リクエストの実行コンテキストで記録を1件保存します
// @Tags heartbeats
// @Accept json
// @Produce json
// @Param request body RecordHeartbeatRequest true "送信元"
// @Success 201 {object} HeartbeatResponse
// @Failure 400 {object} map[string]string
// @Router /heartbeats [post]
func (h *HeartbeatHandler) Record(c echo.Context) error {
	var req RecordHeartbeatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	hb, err := h.heartbeatService.Record(c.Request().Context(), req.Source)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toHeartbeatResponse(hb))
}

// RecordBatch godoc
// @Summary 疎通記録を一括作成
// @Description 複数の記録を1文のINSERTで保存します
// @Tags heartbeats
// @Accept json
// @Produce json
// @Param request body RecordHeartbeatsRequest true "送信元の一覧"
// @Success 201 {object} RecordHeartbeatsResponse
// @Failure 400 {object} map[string]string
// @Router /heartbeats/batch [post]
func (h *HeartbeatHandler) RecordBatch(c echo.Context) error {
	var req RecordHeartbeatsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "リクエストの形式が不正です"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	n, err := h.heartbeatService.RecordBatch(c.Request().Context(), req.Sources)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, RecordHeartbeatsResponse{Inserted: n})
}

// GetByID godoc
// @Summary 疎通記録を取得
// @Tags heartbeats
// @Produce json
// @Param id path int true "記録ID"
// @Success 200 {object} HeartbeatResponse
// @Failure 404 {object} map[string]string
// @Router /heartbeats/{id} [get]
func (h *HeartbeatHandler) GetByID(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "IDの形式が不正です"})
	}

	hb, err := h.heartbeatService.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toHeartbeatResponse(hb))
}

// List godoc
// @Summary 疎通記録の一覧を取得
// @Tags heartbeats
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Success 200 {array} HeartbeatResponse
// @Router /heartbeats [get]
func (h *HeartbeatHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	hbs, err := h.heartbeatService.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	responses := make([]*HeartbeatResponse, len(hbs))
	for i, hb := range hbs {
		responses[i] = toHeartbeatResponse(hb)
	}
	return c.JSON(http.StatusOK, responses)
}

// Register はルートを登録する
func (h *HeartbeatHandler) Register(g *echo.Group) {
	g.POST("", h.Record)
	g.POST("/batch", h.RecordBatch)
	g.GET("", h.List)
	g.GET("/:id", h.GetByID)
}
