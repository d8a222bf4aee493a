package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateRunes cuts s to at most max runes.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// ExtractHashtags returns the distinct #word tokens of text without the
// leading '#', in order of first appearance, at most limit of them.
func ExtractHashtags(text string, limit int) []string {
	var tags []string
	seen := make(map[string]struct{})

	runes := []rune(text)
	for i := 0; i < len(runes) && len(tags) < limit; i++ {
		if runes[i] != '#' {
			continue
		}
		j := i + 1
		for j < len(runes) && isTagRune(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		tag := string(runes[i+1 : j])
		key := strings.ToLower(tag)
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			tags = append(tags, tag)
		}
		i = j - 1
	}
	return tags
}

func isTagRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
