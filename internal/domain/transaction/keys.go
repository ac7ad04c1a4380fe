package transaction

// GeneratedKeyLabel は LastInsertId で得たキーのラベル
const GeneratedKeyLabel = "GENERATED_KEY"

// KeyHolder はINSERTで生成されたキーを保持する（1行につき1マップ）
// 構築後は読み取り専用
type KeyHolder struct {
	columns []string
	keys    []map[string]any
}

// NewKeyHolder はカラム順と行ごとのキーから KeyHolder を作成する
func NewKeyHolder(columns []string, keys []map[string]any) *KeyHolder {
	return &KeyHolder{columns: columns, keys: keys}
}

// Len は保持している行数を返す
func (k *KeyHolder) Len() int {
	if k == nil {
		return 0
	}
	return len(k.keys)
}

// Columns はキーのカラム名を結果セットの順で返す
func (k *KeyHolder) Columns() []string {
	if k == nil {
		return nil
	}
	return append([]string(nil), k.columns...)
}

// KeyList は全行のキーを返す
func (k *KeyHolder) KeyList() []map[string]any {
	if k == nil {
		return nil
	}
	return k.keys
}

// KeyMap は index 行目のキーを返す。範囲外なら nil
func (k *KeyHolder) KeyMap(index int) map[string]any {
	if k == nil || index < 0 || index >= len(k.keys) {
		return nil
	}
	return k.keys[index]
}

// Key は index 行目の name カラムの値を返す
func (k *KeyHolder) Key(index int, name string) any {
	m := k.KeyMap(index)
	if m == nil {
		return nil
	}
	return m[name]
}

// FirstKey は1行目の先頭カラムの値を返す
// キーが生成されていない場合はエラーにせず nil を返す
func (k *KeyHolder) FirstKey() any {
	if k == nil || len(k.columns) == 0 {
		return nil
	}
	return k.Key(0, k.columns[0])
}

// FirstKeyInt64 は FirstKey を int64 として返す
func (k *KeyHolder) FirstKeyInt64() (int64, bool) {
	switch v := k.FirstKey().(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	default:
		return 0, false
	}
}
