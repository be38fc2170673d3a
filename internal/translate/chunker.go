package translate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChunkChars bounds the text sent in one translation request.
	DefaultMaxChunkChars = 4500
	// minTranslatableRunes skips fragments too short to carry prose.
	minTranslatableRunes = 15

	placeholderFormat = "__CODE_BLOCK_%d__"
)

var (
	fencedCodeRe  = regexp.MustCompile("(?s)```.*?```")
	paragraphRe   = regexp.MustCompile(`\n\s*\n`)
	placeholderRe = regexp.MustCompile(`^__CODE_BLOCK_\d+__$`)
	bareURLRe     = regexp.MustCompile(`^https?://\S+$`)
	linkOnlyRe    = regexp.MustCompile(`^\[[^\]]*\]\([^)]*\)$`)
)

// protectCode swaps fenced code blocks for numbered placeholders so the
// model never sees code, and returns the blocks for restoreCode.
func protectCode(text string) (string, []string) {
	var blocks []string
	protected := fencedCodeRe.ReplaceAllStringFunc(text, func(block string) string {
		placeholder := fmt.Sprintf(placeholderFormat, len(blocks))
		blocks = append(blocks, block)
		return placeholder
	})
	return protected, blocks
}

// restoreCode puts the original code blocks back in placeholder positions.
func restoreCode(text string, blocks []string) string {
	for i, block := range blocks {
		text = strings.Replace(text, fmt.Sprintf(placeholderFormat, i), block, 1)
	}
	return text
}

// segment is a run of paragraphs that is either sent for translation as one
// chunk or passed through untouched.
type segment struct {
	text      string
	translate bool
}

// shouldTranslate filters out fragments where translation would only do
// harm: placeholders, bare links, and very short strings.
func shouldTranslate(paragraph string) bool {
	trimmed := strings.TrimSpace(paragraph)
	if utf8.RuneCountInString(trimmed) < minTranslatableRunes {
		return false
	}
	if placeholderRe.MatchString(trimmed) || bareURLRe.MatchString(trimmed) || linkOnlyRe.MatchString(trimmed) {
		return false
	}
	return true
}

// splitSegments breaks protected text into paragraph runs, merging adjacent
// translatable paragraphs into chunks no larger than maxChunkChars. Oversized
// single paragraphs become their own chunk rather than being split mid-text.
func splitSegments(text string, maxChunkChars int) []segment {
	if maxChunkChars <= 0 {
		maxChunkChars = DefaultMaxChunkChars
	}
	paragraphs := paragraphRe.Split(text, -1)

	var segments []segment
	var pending []string
	var pendingLen int

	flush := func() {
		if len(pending) == 0 {
			return
		}
		segments = append(segments, segment{text: strings.Join(pending, "\n\n"), translate: true})
		pending = nil
		pendingLen = 0
	}

	for _, paragraph := range paragraphs {
		if !shouldTranslate(paragraph) {
			flush()
			segments = append(segments, segment{text: paragraph})
			continue
		}
		if pendingLen > 0 && pendingLen+len(paragraph)+2 > maxChunkChars {
			flush()
		}
		pending = append(pending, paragraph)
		pendingLen += len(paragraph) + 2
	}
	flush()
	return segments
}
