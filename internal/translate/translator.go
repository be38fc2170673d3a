// Package translate is the second stage: it rewrites fetched Markdown from
// the source language to the target language through a chat-completion API,
// chunk by chunk, leaving code blocks, links, and already-translated files
// untouched.
package translate

import (
	"context"
	"strings"
)

// Translator converts one chunk of prose to the target language. The input
// may contain Markdown formatting and __CODE_BLOCK_N__ placeholders, both of
// which must survive verbatim.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// TranslateDocument translates a whole Markdown document: code blocks are
// protected, prose is chunked and translated in order, everything else
// passes through unchanged.
func TranslateDocument(ctx context.Context, tr Translator, content string, maxChunkChars int) (string, error) {
	protected, blocks := protectCode(content)
	segments := splitSegments(protected, maxChunkChars)

	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if !seg.translate {
			out = append(out, seg.text)
			continue
		}
		translated, err := tr.Translate(ctx, seg.text)
		if err != nil {
			return "", err
		}
		out = append(out, translated)
	}
	return restoreCode(strings.Join(out, "\n\n"), blocks), nil
}
