package discovery

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// nameSuffixes are stripped from identifiers before deriving a hook name.
var nameSuffixes = []string{"Hook", "Handler", "Listener", "_hook", "_handler", "_listener"}

var lower = cases.Lower(language.Und)

// SynthesizeName derives a hook name from an identifier: the conventional
// suffix is dropped and the remaining words are lower-cased and joined
// with dots. UserCreatedHook and user_created_handler both become
// user.created.
func SynthesizeName(ident string) string {
	for _, suffix := range nameSuffixes {
		if len(ident) > len(suffix) && strings.HasSuffix(ident, suffix) {
			ident = strings.TrimSuffix(ident, suffix)
			break
		}
	}

	words := splitWords(ident)
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return strings.Join(words, ".")
}

// splitWords splits on separators and on case changes, keeping acronyms
// together: HTTPRequestSent gives HTTP, Request, Sent.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	runes := []rune(s)

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		if r == '_' || r == '-' || r == '.' || unicode.IsSpace(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
