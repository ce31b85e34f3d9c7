package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSearchQueryLength is the longest accepted directory search term, in runes.
const MaxSearchQueryLength = 100

var (
	ErrSearchTooLong      = errors.New("search query too long")
	ErrSearchInvalidChars = errors.New("search query contains invalid characters")
)

// suspiciousPatterns flag input that looks like SQL or script injection.
// Keywords are matched as whole words so names such as "Updike" pass.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(union|select|insert|update|delete|drop|create|alter|exec|execute|truncate)\b`),
	regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`(--|/\*|\*/)`),
	regexp.MustCompile(`(?i)\b(waitfor|benchmark|sleep)\b`),
	regexp.MustCompile(`(?i)(<script|javascript:|vbscript:|onload=|onerror=)`),
}

// NormalizeSearchQuery trims a user directory search term and rejects
// anything outside a conservative character set. An empty query is valid
// and means "no filter".
func NormalizeSearchQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}
	if utf8.RuneCountInString(query) > MaxSearchQueryLength {
		return "", ErrSearchTooLong
	}

	for _, p := range suspiciousPatterns {
		if p.MatchString(query) {
			return "", ErrSearchInvalidChars
		}
	}
	for _, r := range query {
		if !isSearchRune(r) {
			return "", ErrSearchInvalidChars
		}
	}

	return query, nil
}

func isSearchRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', '@', '+', '%':
		return true
	}
	return false
}

// EscapeLike escapes LIKE wildcards so the term matches literally.
// Use with `ESCAPE '\'`.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
