// Package textstat implements the cheap statistical content signals used to
// decide whether a document already satisfies a stage's goal. The central
// heuristic is the target-script character ratio: a Markdown file whose
// non-code text is mostly cyrillic is assumed to be translated already. The
// signal is approximate and callers surface it rather than trust it blindly.
package textstat

import (
	"regexp"
	"unicode"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]+`")
)

// StripCode removes fenced code blocks and inline code spans so they do not
// dilute the script ratio of the prose around them.
func StripCode(text string) string {
	out := fencedCodeRe.ReplaceAllString(text, " ")
	return inlineCodeRe.ReplaceAllString(out, " ")
}

// ScriptRatio returns the share of letters in text belonging to script.
// Non-letter runes are ignored; an all-symbol input yields 0.
func ScriptRatio(text string, script *unicode.RangeTable) float64 {
	letters, matched := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(script, r) {
			matched++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(matched) / float64(letters)
}

// CyrillicRatio is ScriptRatio for the cyrillic script, the default target.
func CyrillicRatio(text string) float64 {
	return ScriptRatio(text, unicode.Cyrillic)
}

// LooksTranslated reports whether the non-code portion of content meets the
// given target-script ratio threshold.
func LooksTranslated(content string, script *unicode.RangeTable, threshold float64) bool {
	return ScriptRatio(StripCode(content), script) >= threshold
}
