package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/sanosuguru/go-txscope/internal/config"
)

// RunMigrations は migrationsPath/<driverName> のマイグレーションを実行する
// 適用済みなら何もしない
func RunMigrations(db *sql.DB, driverName, migrationsPath string) error {
	driver, err := migrationDriver(db, driverName)
	if err != nil {
		return fmt.Errorf("マイグレーションドライバー作成エラー: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+filepath.Join(migrationsPath, driverName),
		driverName,
		driver,
	)
	if err != nil {
		return fmt.Errorf("マイグレーションインスタンス作成エラー: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーション実行エラー: %w", err)
	}

	return nil
}

func migrationDriver(db *sql.DB, driverName string) (migratedb.Driver, error) {
	switch driverName {
	case config.DriverPostgres:
		return postgres.WithInstance(db, &postgres.Config{})
	case config.DriverSQLite:
		return sqlite.WithInstance(db, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("未対応のドライバーです: %s", driverName)
	}
}
