package caption

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// CleanCaption removes reasoning spans and surrounding whitespace.
// An unterminated <think> drops everything after it.
func CleanCaption(raw string) string {
	out := thinkBlock.ReplaceAllString(raw, "")
	if i := strings.Index(out, "<think>"); i >= 0 {
		out = out[:i]
	}
	out = strings.ReplaceAll(out, "</think>", "")
	return strings.TrimSpace(out)
}
