package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docpipe/internal/catalog"
	"docpipe/internal/fileutil"
	"docpipe/internal/logging"
	"docpipe/internal/progress"
	"docpipe/internal/services"
)

// Handler renders one Markdown file to a PDF next to it.
type Handler struct {
	converter *Converter
	engine    Engine
	docsRoot  string
	logger    *slog.Logger
}

// NewHandler wires the render stage.
func NewHandler(converter *Converter, engine Engine, docsRoot string, logger *slog.Logger) *Handler {
	return &Handler{
		converter: converter,
		engine:    engine,
		docsRoot:  docsRoot,
		logger:    logging.NewComponentLogger(logger, "render"),
	}
}

// Process reads the item's Markdown, converts it to HTML, prints the PDF,
// and writes it atomically beside the source file.
func (h *Handler) Process(ctx context.Context, item catalog.WorkItem) (progress.Meta, error) {
	srcPath := filepath.Join(h.docsRoot, filepath.FromSlash(item.MarkdownRel))
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return progress.Meta{}, services.Wrap(services.ErrNotFound, "render", "read", srcPath, err)
		}
		return progress.Meta{}, services.Wrap(services.ErrContent, "render", "read", srcPath, err)
	}
	if !utf8.Valid(raw) {
		return progress.Meta{}, services.Wrap(services.ErrContent, "render", "read",
			fmt.Sprintf("%s: not valid utf-8", item.MarkdownRel), nil)
	}
	if len(raw) == 0 {
		return progress.Meta{}, services.Wrap(services.ErrContent, "render", "read",
			fmt.Sprintf("%s: empty source file", item.MarkdownRel), nil)
	}

	page, err := h.converter.Convert(documentTitle(raw, item), raw)
	if err != nil {
		return progress.Meta{}, err
	}

	pdf, err := h.engine.Render(ctx, page)
	if err != nil {
		return progress.Meta{}, err
	}

	dest := filepath.Join(h.docsRoot, filepath.FromSlash(item.PDFRel()))
	if err := fileutil.WriteFileAtomic(dest, pdf, 0o644); err != nil {
		return progress.Meta{}, services.Wrap(services.ErrFatal, "render", "write pdf", dest, err)
	}

	logging.WithContext(ctx, h.logger).Debug("pdf written",
		logging.String("path", item.PDFRel()),
		logging.Int("bytes", len(pdf)))
	return progress.Meta{Bytes: int64(len(pdf))}, nil
}

// documentTitle pulls the first heading out of the Markdown, falling back to
// the item key.
func documentTitle(markdown []byte, item catalog.WorkItem) string {
	for _, line := range strings.Split(string(markdown), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return item.Key
}

// CompletionProbe reports whether the item's PDF already exists.
func CompletionProbe(docsRoot string) progress.CompletionProbe {
	return func(item catalog.WorkItem) (bool, progress.Meta) {
		info, err := os.Stat(filepath.Join(docsRoot, filepath.FromSlash(item.PDFRel())))
		if err != nil || info.Size() == 0 {
			return false, progress.Meta{}
		}
		return true, progress.Meta{Bytes: info.Size()}
	}
}
