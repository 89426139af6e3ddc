package compression

import "unicode/utf8"

// EstimateTokens 粗略估算 Token 数：每 4 个字符约 1 个 Token，向上取整
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
