package util

import "unicode/utf8"

// RuneUTF16Len returns how many UTF-16 code units r occupies.
func RuneUTF16Len(r rune) int {
	if r > 0xFFFF {
		return 2
	}
	return 1
}

// UTF16Len returns the length of text measured in UTF-16 code units.
//
// Telegram measures message length in UTF-16 code units, not Go string
// bytes or runes. Characters outside the BMP take a surrogate pair.
func UTF16Len(text string) int {
	count := 0
	for _, r := range text {
		count += RuneUTF16Len(r)
	}
	return count
}

// ByteIndexAtUTF16 返回前 n 个 UTF-16 code units 所占的字节数
//
// 结果总是落在 rune 边界上；若某个 rune 会跨越 n，则在它之前截断。
func ByteIndexAtUTF16(text string, n int) int {
	if n <= 0 {
		return 0
	}
	units := 0
	for i, r := range text {
		units += RuneUTF16Len(r)
		if units > n {
			return i
		}
	}
	return len(text)
}

// FirstRuneLen returns the byte length of the first rune of text.
func FirstRuneLen(text string) int {
	if text == "" {
		return 0
	}
	_, size := utf8.DecodeRuneInString(text)
	return size
}
