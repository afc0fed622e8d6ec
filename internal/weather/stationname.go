package weather

import (
	"strings"
	"unicode"
)

// PrettifyStationName normalizes a raw station name for display. The
// boolean result is false when nothing displayable is left.
//
//	"BROMMA FLYGPLATS"                          -> "Bromma Flygplats"
//	"ANGELHOLM (SWE-A"                          -> "Angelholm"
//	"Coeur d'Alene, Coeur d'Alene Air Terminal" -> "Coeur d'Alene Air Terminal"
func PrettifyStationName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", false
	}

	if open := strings.Index(name, "("); open >= 0 && !strings.Contains(name[open:], ")") {
		name = strings.TrimRightFunc(name[:open], unicode.IsSpace)
	}

	for {
		left, right, found := strings.Cut(name, ", ")
		if !found || !strings.HasPrefix(right, left) {
			break
		}
		name = right
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}

	// Case is judged on what is left, so a second pass sees the same text.
	if isSingleCase(name) {
		name = capitalizeWords(name)
	}
	return name, true
}

func isSingleCase(s string) bool {
	hasUpper, hasLower := false, false
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		} else if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return !(hasUpper && hasLower)
}

// capitalizeWords upper-cases the first letter of every whitespace delimited
// run and lower-cases the rest. Whitespace and non-letters are kept as is.
func capitalizeWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	seenLetter := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			seenLetter = false
		case unicode.IsLetter(r):
			if seenLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
				seenLetter = true
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
