package database

import "strings"

// BuildMultipleInsert は prefix の後ろに (?, ?, ...) のグループを追加する
// startingGroup が0なら最初のグループにカンマを付けない
// startingGroup 未満のグループは prefix に含まれているものとして扱う
func BuildMultipleInsert(prefix string, startingGroup, groups, fields int) string {
	var sb strings.Builder
	sb.WriteString(prefix)

	first := startingGroup == 0
	for i := startingGroup; i < groups; i++ {
		if !first {
			sb.WriteString(",")
		}
		first = false

		sb.WriteString("(")
		for f := 0; f < fields; f++ {
			if f > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
		}
		sb.WriteString(")")
	}
	return sb.String()
}
