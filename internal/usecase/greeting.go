package usecase

import (
	"strings"
	"unicode"

	"condo-assistant/internal/identity"
)

var greetings = map[string]struct{}{
	"hola":          {},
	"buenas":        {},
	"buenos dias":   {},
	"buenas tardes": {},
	"buenas noches": {},
	"hi":            {},
	"hello":         {},
	"menu":          {},
	"inicio":        {},
}

// isGreeting reports whether text is, or opens with, a greeting token,
// ignoring case, accents and punctuation.
func isGreeting(text string) bool {
	folded := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, identity.Fold(text))
	words := strings.Fields(folded)
	if len(words) == 0 {
		return false
	}
	for n := min(len(words), 2); n >= 1; n-- {
		if _, ok := greetings[strings.Join(words[:n], " ")]; ok {
			return true
		}
	}
	return false
}
