package heartbeat

import "errors"

// Heartbeat ドメインのエラー定義
var (
	ErrHeartbeatNotFound = errors.New("記録が見つかりません")
	ErrScopeRequired     = errors.New("実行コンテキストの識別子は必須です")
	ErrSourceRequired    = errors.New("送信元は必須です")
	ErrSourceTooLong     = errors.New("送信元が長すぎます")
)
