package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"docpipe/internal/catalog"
	"docpipe/internal/fileutil"
	"docpipe/internal/logging"
	"docpipe/internal/progress"
	"docpipe/internal/services"
)

// Handler downloads one documentation page and saves it as Markdown under
// the docs tree.
type Handler struct {
	client   *Client
	docsRoot string
	logger   *slog.Logger
}

// NewHandler wires the fetch stage.
func NewHandler(client *Client, docsRoot string, logger *slog.Logger) *Handler {
	return &Handler{
		client:   client,
		docsRoot: docsRoot,
		logger:   logging.NewComponentLogger(logger, "fetch"),
	}
}

// Process fetches the item's page, converts it to Markdown, and writes the
// file atomically. The done mark is the runner's job and happens only after
// this returns.
func (h *Handler) Process(ctx context.Context, item catalog.WorkItem) (progress.Meta, error) {
	page, err := h.client.FetchPage(ctx, item.URLPath)
	if err != nil {
		return progress.Meta{}, err
	}

	markdown, err := HTMLToMarkdown(page)
	if err != nil {
		return progress.Meta{}, err
	}
	if markdown == "" {
		return progress.Meta{}, services.Wrap(services.ErrContent, "fetch", "convert",
			fmt.Sprintf("%s: no content extracted", item.URLPath), nil)
	}

	document := h.composeDocument(page, markdown, item)
	dest := filepath.Join(h.docsRoot, filepath.FromSlash(item.MarkdownRel))
	if err := fileutil.WriteFileAtomic(dest, []byte(document), 0o644); err != nil {
		return progress.Meta{}, services.Wrap(services.ErrFatal, "fetch", "write markdown", dest, err)
	}

	logging.WithContext(ctx, h.logger).Debug("page saved",
		logging.String("path", item.MarkdownRel),
		logging.Int("bytes", len(document)))
	return progress.Meta{Bytes: int64(len(document))}, nil
}

// composeDocument prepends a title heading and the source link when the
// converted body does not already start with a heading.
func (h *Handler) composeDocument(page []byte, markdown string, item catalog.WorkItem) string {
	var b strings.Builder
	if !strings.HasPrefix(markdown, "#") {
		title := pageTitle(page)
		if title == "" {
			title = item.Key
		}
		b.WriteString("# " + title + "\n\n")
	}
	b.WriteString("Source: " + h.client.PageURL(item.URLPath) + "\n\n")
	b.WriteString(markdown)
	b.WriteString("\n")
	return b.String()
}

func pageTitle(page []byte) string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	node := findElement(doc, func(n *html.Node) bool { return n.Data == "title" })
	if node == nil {
		return ""
	}
	title := collapseSpace(nodeText(node))
	// Sphinx appends the manual name after an em dash or a pipe.
	for _, sep := range []string{" — ", " | "} {
		if idx := strings.Index(title, sep); idx > 0 {
			title = title[:idx]
		}
	}
	return title
}

// CompletionProbe reports whether the item's Markdown file already exists,
// letting a fresh state file pick up work done before it was lost.
func CompletionProbe(docsRoot string) progress.CompletionProbe {
	return func(item catalog.WorkItem) (bool, progress.Meta) {
		info, err := os.Stat(filepath.Join(docsRoot, filepath.FromSlash(item.MarkdownRel)))
		if err != nil || info.Size() == 0 {
			return false, progress.Meta{}
		}
		return true, progress.Meta{Bytes: info.Size()}
	}
}
