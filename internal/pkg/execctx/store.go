// Package execctx は実行コンテキスト（リクエストやワーカーの呼び出し連鎖）ごとの属性ストア
//
// スコープは context.Context に載せて呼び出し連鎖に伝搬させる。
// スコープ内の属性マップは最初の書き込み時に確保される。
package execctx

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNoScope はスコープのないコンテキストに書き込もうとした場合のエラー
var ErrNoScope = errors.New("実行コンテキストのスコープがありません")

type scopeKey struct{}

// Scope は1つの実行コンテキストに専有される属性スロット
type Scope struct {
	id    string
	mu    sync.Mutex
	attrs map[string]any
}

// WithScope は新しいスコープを載せたコンテキストを返す
// 既にスコープがある場合は ctx をそのまま返す
func WithScope(ctx context.Context) context.Context {
	if FromContext(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &Scope{id: uuid.NewString()})
}

// FromContext はコンテキストのスコープを返す。なければ nil
func FromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// ID はスコープの識別子を返す
func (s *Scope) ID() string {
	return s.id
}

// Get は属性を返す。未設定なら nil
func (s *Scope) Get(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs == nil {
		return nil
	}
	return s.attrs[name]
}

// Set は属性を設定する
func (s *Scope) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[name] = value
}

// SetIfAbsent は属性が未設定の場合だけ設定する。設定できたら true
func (s *Scope) SetIfAbsent(name string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attrs[name]; ok {
		return false
	}
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[name] = value
	return true
}

// CompareAndDelete は属性が value と同一の場合だけ削除する
func (s *Scope) CompareAndDelete(name string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs == nil || s.attrs[name] != value {
		return false
	}
	delete(s.attrs, name)
	return true
}

// Delete は属性を削除する
func (s *Scope) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attrs, name)
}

// Clear は全属性を破棄する
func (s *Scope) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = nil
}

// Get はコンテキストのスコープから属性を返す
// スコープがない場合も失敗せず nil を返す
func Get(ctx context.Context, name string) any {
	s := FromContext(ctx)
	if s == nil {
		return nil
	}
	return s.Get(name)
}

// Set はコンテキストのスコープに属性を設定する
func Set(ctx context.Context, name string, value any) error {
	s := FromContext(ctx)
	if s == nil {
		return ErrNoScope
	}
	s.Set(name, value)
	return nil
}

// Delete はコンテキストのスコープから属性を削除する
func Delete(ctx context.Context, name string) {
	if s := FromContext(ctx); s != nil {
		s.Delete(name)
	}
}
