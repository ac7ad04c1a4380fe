package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/sanosuguru/go-txscope/internal/config"
)

func serveMetrics(cfg config.MetricsConfig, authorization string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "metrics")
	}, MetricsBasicAuth(cfg))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestMetricsBasicAuth(t *testing.T) {
	enabled := config.MetricsConfig{User: "testuser", Password: "testpass"}

	tests := []struct {
		name          string
		cfg           config.MetricsConfig
		authorization string
		wantStatus    int
	}{
		{name: "認証設定がなければ通す", cfg: config.MetricsConfig{}, wantStatus: http.StatusOK},
		{name: "ユーザーだけでは認証しない", cfg: config.MetricsConfig{User: "testuser"}, wantStatus: http.StatusOK},
		{name: "正しい認証情報", cfg: enabled, authorization: basic("testuser", "testpass"), wantStatus: http.StatusOK},
		{name: "間違った認証情報", cfg: enabled, authorization: basic("wronguser", "wrongpass"), wantStatus: http.StatusUnauthorized},
		{name: "ヘッダーなし", cfg: enabled, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveMetrics(tt.cfg, tt.authorization)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "metrics", rec.Body.String())
			}
		})
	}
}
