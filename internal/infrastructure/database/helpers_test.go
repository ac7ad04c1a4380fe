package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-txscope/internal/config"
	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
	"github.com/sanosuguru/go-txscope/internal/pkg/metrics"
)

type item struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
	Qty  int64  `db:"qty"`
}

func itemMapper(row transaction.Rows, _ int) (item, error) {
	var it item
	err := row.StructScan(&it)
	return it, err
}

// newTestDB は一時ディレクトリのSQLiteファイルに items テーブルを作成する
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		MaxIdleConns: 4,
	}
	db, err := NewConnection(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE items (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT    NOT NULL UNIQUE,
		qty  INTEGER NOT NULL DEFAULT 0
	)`)
	require.NoError(t, err)
	return db
}

// newTestCoordinator は初期化済みの Coordinator を返す
func newTestCoordinator(t *testing.T) (*Coordinator, *sqlx.DB, *metrics.Metrics) {
	t.Helper()

	db := newTestDB(t)
	m := metrics.NewDiscard()
	c := NewCoordinator(WithMetrics(m))
	require.NoError(t, c.Initialize(context.Background(), db))
	t.Cleanup(c.Shutdown)
	return c, db, m
}

// countItems はトランザクション外から件数を数える
func countItems(t *testing.T, c *Coordinator) int64 {
	t.Helper()
	q, err := c.NonTransactional(context.Background())
	require.NoError(t, err)
	n, err := transaction.GetField[int64](context.Background(), q, "SELECT COUNT(*) FROM items")
	require.NoError(t, err)
	require.NotNil(t, n)
	return *n
}

type insertMapper struct {
	fields int
	values []any
}

func (m insertMapper) ValueGroups() int {
	if m.fields == 0 {
		return 0
	}
	return len(m.values) / m.fields
}

func (m insertMapper) FieldsPerGroup() int { return m.fields }

func (m insertMapper) Values() []any { return m.values }

// fixedMapper はグループ数を値と無関係に返す
type fixedMapper struct {
	groups, fields int
	values         []any
}

func (m fixedMapper) ValueGroups() int    { return m.groups }
func (m fixedMapper) FieldsPerGroup() int { return m.fields }
func (m fixedMapper) Values() []any       { return m.values }
