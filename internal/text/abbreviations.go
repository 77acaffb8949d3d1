package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type abbreviationClass uint8

const (
	abbreviationNonTerminal abbreviationClass = iota
	abbreviationAmbiguous
)

// abbreviationClasses classifies tokens that frequently appear before a
// non-terminal period.
var abbreviationClasses = map[string]abbreviationClass{
	// Latin/editorial abbreviations.
	"e.g": abbreviationNonTerminal,
	"i.e": abbreviationNonTerminal,
	"cf":  abbreviationNonTerminal,
	"etc": abbreviationAmbiguous,
	"vs":  abbreviationAmbiguous,

	// Titles/honorifics.
	"dr":   abbreviationNonTerminal,
	"mr":   abbreviationNonTerminal,
	"mrs":  abbreviationNonTerminal,
	"ms":   abbreviationNonTerminal,
	"prof": abbreviationNonTerminal,
	"sr":   abbreviationNonTerminal,
	"jr":   abbreviationNonTerminal,
	"st":   abbreviationNonTerminal,

	// Reference markers.
	"ch":  abbreviationNonTerminal,
	"eq":  abbreviationNonTerminal,
	"fig": abbreviationNonTerminal,
	"no":  abbreviationAmbiguous,
	"p":   abbreviationNonTerminal,
	"pp":  abbreviationNonTerminal,
	"ref": abbreviationNonTerminal,
	"sec": abbreviationNonTerminal,
	"vol": abbreviationNonTerminal,
}

// isBoundaryPeriod decides whether the period at src[idx] ends a sentence.
// next is the byte offset just past the terminator run.
func isBoundaryPeriod(src string, idx int, next int) bool {
	token := tokenBeforePeriod(src, idx)
	if token == "" {
		return true
	}

	lower := strings.ToLower(token)
	if class, ok := abbreviationClasses[lower]; ok {
		if class == abbreviationNonTerminal {
			return false
		}
		return nextWordCapitalized(src, next)
	}

	// Single-letter initials such as "J. R. R. Tolkien". The pronoun "I" is not one.
	if token == "I" {
		return true
	}
	if r, size := utf8.DecodeRuneInString(token); size == len(token) && unicode.IsUpper(r) {
		return false
	}

	if looksLikeInitialism(token) {
		return nextWordCapitalized(src, next)
	}
	return true
}

func tokenBeforePeriod(src string, idx int) string {
	start := idx
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(src[:start])
		if !unicode.IsLetter(r) && r != '.' {
			break
		}
		start -= size
	}
	return strings.Trim(src[start:idx], ".")
}

func nextWordCapitalized(src string, from int) bool {
	for _, r := range src[from:] {
		switch {
		case unicode.IsSpace(r), isCloser(r), r == '(':
			continue
		case unicode.IsLetter(r):
			return unicode.IsUpper(r)
		default:
			return true
		}
	}
	return true
}

func looksLikeInitialism(token string) bool {
	if !strings.ContainsRune(token, '.') {
		return false
	}
	for _, part := range strings.Split(token, ".") {
		if utf8.RuneCountInString(part) != 1 {
			return false
		}
		r, _ := utf8.DecodeRuneInString(part)
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
