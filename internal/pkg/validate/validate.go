package validate

import (
	"strings"
	"unicode/utf8"
)

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

// MaxRunes counts characters, not bytes, so accented place names are not
// penalised.
func MaxRunes(value string, limit int) bool {
	return utf8.RuneCountInString(value) <= limit
}
