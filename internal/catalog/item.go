package catalog

import "strings"

// WorkItem is one logical document unit tracked independently through the
// fetch, translate, and render stages.
type WorkItem struct {
	// Key is the stable item identity. Fetch catalogs key by the normalized
	// source URL path ("library/asyncio.html"); docs-tree catalogs key by the
	// slash-separated Markdown path relative to the docs root.
	Key string
	// URLPath is the page address relative to the source base URL. Empty for
	// items enumerated from the local docs tree.
	URLPath string
	// MarkdownRel is the slash-separated Markdown output path relative to the
	// docs root.
	MarkdownRel string
}

// PDFRel returns the render-stage output path relative to the docs root.
func (i WorkItem) PDFRel() string {
	return strings.TrimSuffix(i.MarkdownRel, ".md") + ".pdf"
}
