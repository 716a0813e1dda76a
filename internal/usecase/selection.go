package usecase

import (
	"strconv"
	"strings"
)

// parseIndex reads a single 1-based option number in [1, n].
func parseIndex(text string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ".")))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i, true
}

// parseSelection reads a comma separated list of 1-based option numbers in
// [1, n]. The selection is all or nothing: any invalid token rejects the
// whole input and is reported back verbatim. Repeated numbers count once.
func parseSelection(text string, n int) (picked []int, invalid []string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	seen := make(map[int]struct{})
	for _, raw := range strings.Split(text, ",") {
		tok := strings.TrimSpace(raw)
		i, ok := parseIndex(tok, n)
		if !ok {
			if tok == "" {
				tok = `""`
			}
			invalid = append(invalid, tok)
			continue
		}
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}
		picked = append(picked, i)
	}
	if len(invalid) > 0 {
		return nil, invalid
	}
	return picked, nil
}
