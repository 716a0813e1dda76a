package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nationalDigits is the length of a national subscriber number.
const nationalDigits = 10

// phonePrefixes are stripped, longest first, until the national number
// remains: the international call prefix, country code 52 with and without
// the legacy mobile 1, and the domestic trunk 0 or 1.
var phonePrefixes = []string{"00", "521", "52", "0", "1"}

// NormalizePhone reduces a phone number to its 10-digit national form.
// Numbers that do not shrink to 10 digits are returned as bare digits.
func NormalizePhone(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)

	for len(digits) > nationalDigits {
		stripped := false
		for _, p := range phonePrefixes {
			if strings.HasPrefix(digits, p) && len(digits)-len(p) >= nationalDigits {
				digits = digits[len(p):]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return digits
}

// Fold lowercases s and removes diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// NormalizeEmail folds the address and keeps only characters that can appear
// in a directory email key.
func NormalizeEmail(raw string) string {
	return keep(Fold(raw), func(r rune) bool {
		return isAlnum(r) || strings.ContainsRune("@._+-", r)
	})
}

// NormalizeUnit folds a department/unit identifier down to letters and digits.
func NormalizeUnit(raw string) string {
	return keep(Fold(raw), isAlnum)
}

func keep(s string, ok func(rune) bool) string {
	return strings.Map(func(r rune) rune {
		if ok(r) {
			return r
		}
		return -1
	}, s)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
