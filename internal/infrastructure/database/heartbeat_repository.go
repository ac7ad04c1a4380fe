package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-txscope/internal/domain/heartbeat"
	"github.com/sanosuguru/go-txscope/internal/domain/transaction"
)

// heartbeatRow はDBの行を表す構造体
// checked_at はドライバーによって time.Time か文字列で返る
type heartbeatRow struct {
	ID        int64  `db:"id"`
	ScopeID   string `db:"scope_id"`
	Source    string `db:"source"`
	CheckedAt any    `db:"checked_at"`
}

// toEntity はheartbeatRowをHeartbeatエンティティに変換する
func (r *heartbeatRow) toEntity() (*heartbeat.Heartbeat, error) {
	checkedAt, err := parseTimestamp(r.CheckedAt)
	if err != nil {
		return nil, err
	}
	return &heartbeat.Heartbeat{
		ID:        r.ID,
		ScopeID:   r.ScopeID,
		Source:    r.Source,
		CheckedAt: checkedAt,
	}, nil
}

func heartbeatMapper(row transaction.Rows, _ int) (*heartbeat.Heartbeat, error) {
	var r heartbeatRow
	if err := row.StructScan(&r); err != nil {
		return nil, err
	}
	return r.toEntity()
}

// SQLite の _time_format=sqlite で書き込まれる形式を先頭に置く
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func parseTimestamp(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("日時として解釈できません: %T", v)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("日時として解釈できません: %q", s)
}

// HeartbeatRepository は記録リポジトリの実装
type HeartbeatRepository struct{}

// NewHeartbeatRepository はHeartbeatRepositoryを作成する
func NewHeartbeatRepository() *HeartbeatRepository {
	return &HeartbeatRepository{}
}

var _ heartbeat.Repository = (*HeartbeatRepository)(nil)

// Create は記録を保存し、採番されたIDを設定する
func (r *HeartbeatRepository) Create(ctx context.Context, q transaction.Query, h *heartbeat.Heartbeat) error {
	query := `
		INSERT INTO heartbeats (scope_id, source, checked_at)
		VALUES (?, ?, ?)
		RETURNING id
	`
	keys, err := q.ExecuteUpdateWithKeys(ctx, query, h.ScopeID, h.Source, h.CheckedAt)
	if err != nil {
		return fmt.Errorf("記録の作成に失敗しました: %w", err)
	}
	id, ok := keys.FirstKeyInt64()
	if !ok {
		return fmt.Errorf("記録の作成に失敗しました: IDが返されませんでした")
	}
	h.ID = id
	return nil
}

// heartbeatInsertMapper は複数の記録をVALUESグループに展開する
type heartbeatInsertMapper []*heartbeat.Heartbeat

func (m heartbeatInsertMapper) ValueGroups() int    { return len(m) }
func (m heartbeatInsertMapper) FieldsPerGroup() int { return 3 }

func (m heartbeatInsertMapper) Values() []any {
	values := make([]any, 0, len(m)*3)
	for _, h := range m {
		values = append(values, h.ScopeID, h.Source, h.CheckedAt)
	}
	return values
}

// CreateBatch は複数の記録を1文で保存する
func (r *HeartbeatRepository) CreateBatch(ctx context.Context, q transaction.Query, hs []*heartbeat.Heartbeat) (int64, error) {
	n, err := q.MultipleInsert(ctx, "INSERT INTO heartbeats (scope_id, source, checked_at) VALUES ", heartbeatInsertMapper(hs))
	if err != nil {
		return 0, fmt.Errorf("記録の一括作成に失敗しました: %w", err)
	}
	return n, nil
}

// GetByID はIDから記録を取得する
func (r *HeartbeatRepository) GetByID(ctx context.Context, q transaction.Query, id int64) (*heartbeat.Heartbeat, error) {
	query := `SELECT id, scope_id, source, checked_at FROM heartbeats WHERE id = ?`

	h, err := transaction.GetObject(ctx, q, heartbeatMapper, query, id)
	if err != nil {
		return nil, fmt.Errorf("記録の取得に失敗しました: %w", err)
	}
	if h == nil {
		return nil, heartbeat.ErrHeartbeatNotFound
	}
	return *h, nil
}

// List は新しい順に記録を取得する
func (r *HeartbeatRepository) List(ctx context.Context, q transaction.Query, limit int) ([]*heartbeat.Heartbeat, error) {
	query := `
		SELECT id, scope_id, source, checked_at
		FROM heartbeats
		ORDER BY id DESC
		LIMIT ?
	`
	hs, err := transaction.GetObjectList(ctx, q, heartbeatMapper, query, limit)
	if err != nil {
		return nil, fmt.Errorf("記録一覧の取得に失敗しました: %w", err)
	}
	return hs, nil
}

// DeleteBefore は before より前の記録を削除する
func (r *HeartbeatRepository) DeleteBefore(ctx context.Context, q transaction.Query, before time.Time) (int64, error) {
	n, err := q.ExecuteUpdate(ctx, `DELETE FROM heartbeats WHERE checked_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("古い記録の削除に失敗しました: %w", err)
	}
	return n, nil
}
