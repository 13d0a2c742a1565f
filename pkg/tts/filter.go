package tts

import (
	"strings"
	"unicode"
)

// Filter strips characters a voice engine would read out literally or
// choke on, such as markdown asterisks and emoji. Letters and digits are
// always kept, as is every rune in the allowed set.
type Filter struct {
	allowed map[rune]bool
}

// NewFilter creates a filter that keeps letters, digits and allowed.
func NewFilter(allowed string) *Filter {
	f := &Filter{allowed: make(map[rune]bool, len(allowed))}
	for _, r := range allowed {
		f.allowed[r] = true
	}
	return f
}

// Apply returns the filtered text and the runes that were removed,
// in order of appearance. When space is allowed, other whitespace such as
// newlines becomes a space so that words do not run together.
func (f *Filter) Apply(text string) (kept, removed string) {
	var k, r strings.Builder
	k.Grow(len(text))

	for _, c := range text {
		if c != ' ' && unicode.IsSpace(c) && f.allowed[' '] {
			k.WriteByte(' ')
			continue
		}
		if unicode.IsLetter(c) || unicode.IsNumber(c) || f.allowed[c] {
			k.WriteRune(c)
		} else {
			r.WriteRune(c)
		}
	}
	return k.String(), r.String()
}
