package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/api"
	"github.com/sanosuguru/go-txscope/internal/api/handler"
	apimw "github.com/sanosuguru/go-txscope/internal/api/middleware"
	"github.com/sanosuguru/go-txscope/internal/application"
	"github.com/sanosuguru/go-txscope/internal/config"
	"github.com/sanosuguru/go-txscope/internal/infrastructure/database"
	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
	"github.com/sanosuguru/go-txscope/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーとワーカーを起動する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
}

func newEcho(cfg *config.Config, coord *database.Coordinator, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	apimw.SetupMiddleware(e, coord)
	e.Use(apimw.PrometheusMiddleware(m))

	e.GET("/health", handler.NewHealthHandler(coord).Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimw.MetricsBasicAuth(cfg.Metrics))

	svc := application.NewHeartbeatService(coord, database.NewHeartbeatRepository())
	handler.NewHeartbeatHandler(svc).Register(e.Group("/heartbeats"))
	return e
}

func runServer(ctx context.Context, cfg *config.Config) error {
	m := metrics.Init()

	coord, db, err := openCoordinator(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer db.Close()
	defer coord.Shutdown()

	if cfg.Metrics.Enabled {
		collector := worker.NewPoolStatsCollector(db, m, cfg.Metrics.Interval)
		go collector.Start(ctx)
		defer collector.Stop()
	}
	if cfg.Pruner.Enabled {
		svc := application.NewHeartbeatService(coord, database.NewHeartbeatRepository())
		pruner := worker.NewHeartbeatPruner(svc, cfg.Pruner.Interval, cfg.Pruner.Retention)
		go pruner.Start(ctx)
		defer pruner.Stop()
	}

	e := newEcho(cfg, coord, m)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("サーバーをシャットダウンしています...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}
