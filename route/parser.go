// Package route turns free-text route strings like "Москва-Сочи"
// into an (origin, destination) city pair.
package route

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNoSeparator is returned when the text contains no recognizable
// origin/destination separator.
var ErrNoSeparator = errors.New("no route separator found")

// separators in priority order: space-padded long dashes first, bare
// hyphen last. The first variant that splits the text into exactly
// two non-empty segments wins.
var separators = []string{" – ", " — ", " - ", "–", "—", "-"}

// hyphenCities lists cities whose canonical name itself contains a
// hyphen. They are tried before the last-hyphen split so that
// "Санкт-Петербург-Пекин" parses as (Санкт-Петербург, Пекин).
var hyphenCities = []string{"Санкт-Петербург"}

// Parse splits text into an origin and destination city.
func Parse(text string) (origin, destination string, err error) {
	text = strings.TrimSpace(text)

	for _, sep := range separators {
		if !strings.Contains(text, sep) {
			continue
		}
		parts := strings.Split(text, sep)
		if len(parts) != 2 {
			continue
		}
		origin = strings.TrimSpace(parts[0])
		destination = strings.TrimSpace(parts[1])
		if origin == "" || destination == "" {
			continue
		}
		return origin, destination, nil
	}

	if !strings.Contains(text, "-") {
		return "", "", fmt.Errorf("parse %q: %w", text, ErrNoSeparator)
	}

	for _, city := range hyphenCities {
		_, end := foldIndex(text, city)
		if end < 0 {
			continue
		}
		return city, strings.Trim(text[end:], "- "), nil
	}

	// Last resort: split on the last hyphen in the raw string.
	if last := strings.LastIndex(text, "-"); last > 0 {
		return strings.TrimSpace(text[:last]), strings.TrimSpace(text[last+1:]), nil
	}

	return "", "", fmt.Errorf("parse %q: %w", text, ErrNoSeparator)
}

// foldIndex reports the byte bounds in s of the first
// case-insensitive occurrence of substr, or (-1, -1). Offsets are
// computed against s itself; case mappings that change a rune's
// byte length cannot skew them.
func foldIndex(s, substr string) (start, end int) {
	for i := 0; i < len(s); {
		if n, ok := foldPrefix(s[i:], substr); ok {
			return i, i + n
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1, -1
}

// foldPrefix reports whether s starts with a case-insensitive match
// of prefix and, if so, how many bytes of s the match spans.
func foldPrefix(s, prefix string) (int, bool) {
	n := 0
	for _, pr := range prefix {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 {
			return 0, false
		}
		if r != pr && unicode.ToLower(r) != unicode.ToLower(pr) {
			return 0, false
		}
		n += size
	}
	return n, true
}
