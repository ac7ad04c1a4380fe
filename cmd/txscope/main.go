package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-txscope/internal/config"
	"github.com/sanosuguru/go-txscope/internal/infrastructure/database"
	"github.com/sanosuguru/go-txscope/internal/pkg/logger"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "txscope",
		Short:         "実行コンテキスト単位のトランザクション管理サーバー",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML設定ファイル（省略時は環境変数のみ）")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newProbeCmd(&configPath))
	root.AddCommand(newMigrateCmd(&configPath))
	return root
}

// loadConfig は設定を読み込み、ロガーを設定に合わせて差し替える
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger.Set(logger.NewLogger(cfg.Log.Env, cfg.Log.Level))
	return cfg, nil
}

// openCoordinator は接続プールを作成し、Coordinator を初期化する
func openCoordinator(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*database.Coordinator, *sqlx.DB, error) {
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	coord := database.NewCoordinator(
		database.WithMetrics(m),
		database.WithIsolationLevel(cfg.Database.IsolationLevel()),
	)
	if err := coord.Initialize(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger.Info("データベースに接続しました",
		zap.String("driver", cfg.Database.Driver),
		zap.String("isolation", cfg.Database.Isolation),
	)
	return coord, db, nil
}
