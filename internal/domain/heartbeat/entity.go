package heartbeat

import "time"

// Heartbeat は疎通確認の記録を表す
type Heartbeat struct {
	ID        int64
	ScopeID   string
	Source    string
	CheckedAt time.Time
}

// NewHeartbeat は現在時刻の記録を作成する
func NewHeartbeat(scopeID, source string) *Heartbeat {
	return &Heartbeat{
		ScopeID:   scopeID,
		Source:    source,
		CheckedAt: time.Now().UTC(),
	}
}

// Validate は記録の検証を行う
func (h *Heartbeat) Validate() error {
	if h.ScopeID == "" {
		return ErrScopeRequired
	}
	if h.Source == "" {
		return ErrSourceRequired
	}
	if len(h.Source) > MaxSourceLength {
		return ErrSourceTooLong
	}
	return nil
}

// MaxSourceLength は送信元名の最大長
const MaxSourceLength = 64
