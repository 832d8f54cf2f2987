// Package plaintext decodes stored documents as UTF-8 text.
package plaintext

import "strings"

// Decode drops invalid UTF-8 sequences and NUL bytes instead of failing, so
// any file can still be segmented as raw text.
func Decode(raw []byte) string {
	text := strings.ToValidUTF8(string(raw), "")
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.TrimSpace(text)
}
