// Package textnorm canonicalizes free text so that near-duplicate phrasings
// compare equal: case, diacritics, apostrophe variants, leetspeak digits,
// punctuation noise and character stretching are all folded away.
//
//	textnorm.Normalize("NÃÃÃO aguento 💔!!!") // "naao aguento 💔!!"
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Emoji lists the distress emoji that survive normalization. Any other
// symbol is treated as punctuation noise.
var Emoji = []string{"😭", "💔", "😢", "😞"}

var emojiSet = func() map[rune]bool {
	m := make(map[rune]bool, len(Emoji))
	for _, e := range Emoji {
		for _, r := range e {
			m[r] = true
		}
	}
	return m
}()

var apostrophes = map[rune]bool{
	'\u2018': true,
	'\u2019': true,
	'\u201B': true,
	'\u00B4': true,
	'\u02BC': true,
	'\u2032': true,
	'`':      true,
}

var leet = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
}

// Normalize applies the full pipeline in a fixed order. The order matters:
// accent folding must run before the strip step so that "ã" survives as "a"
// rather than becoming a space, and leet substitution must run before
// repeat collapsing so "n00o" collapses with its letters.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	s := strings.ToLower(raw)
	s = stripMarks(s)
	s = strings.Map(foldRune, s)
	s = collapseRepeats(s)
	return strings.Join(strings.Fields(s), " ")
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// foldRune handles steps 3 to 5 of the pipeline. They are independent
// per-rune mappings applied in order, so a single pass is equivalent.
func foldRune(r rune) rune {
	if apostrophes[r] {
		return '\''
	}
	if sub, ok := leet[r]; ok {
		return sub
	}
	if keep(r) {
		return r
	}
	return ' '
}

func keep(r rune) bool {
	switch {
	case r == '_', r == '\'', r == '!', r == '?':
		return true
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
		return true
	case unicode.IsSpace(r):
		return true
	}
	return emojiSet[r]
}

func collapseRepeats(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	run := 0
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		prev = r
		if run <= 2 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
