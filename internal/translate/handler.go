package translate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode"
	"unicode/utf8"

	"docpipe/internal/catalog"
	"docpipe/internal/fileutil"
	"docpipe/internal/logging"
	"docpipe/internal/progress"
	"docpipe/internal/services"
	"docpipe/internal/textstat"
)

// DefaultSkipThreshold is the target-script ratio above which a file is
// treated as already translated.
const DefaultSkipThreshold = 0.35

// Handler translates one Markdown file in place.
type Handler struct {
	translator    Translator
	docsRoot      string
	script        *unicode.RangeTable
	skipThreshold float64
	maxChunkChars int
	logger        *slog.Logger
}

// HandlerConfig wires the translate stage.
type HandlerConfig struct {
	DocsRoot      string
	Script        *unicode.RangeTable
	SkipThreshold float64
	MaxChunkChars int
}

// NewHandler builds the stage handler. Zero config fields fall back to the
// cyrillic script and the default threshold and chunk size.
func NewHandler(translator Translator, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if cfg.Script == nil {
		cfg.Script = unicode.Cyrillic
	}
	if cfg.SkipThreshold <= 0 {
		cfg.SkipThreshold = DefaultSkipThreshold
	}
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	return &Handler{
		translator:    translator,
		docsRoot:      cfg.DocsRoot,
		script:        cfg.Script,
		skipThreshold: cfg.SkipThreshold,
		maxChunkChars: cfg.MaxChunkChars,
		logger:        logging.NewComponentLogger(logger, "translate"),
	}
}

// Process reads the item's Markdown file, translates its prose, and rewrites
// the file atomically. Files already in the target script are left alone.
func (h *Handler) Process(ctx context.Context, item catalog.WorkItem) (progress.Meta, error) {
	path := filepath.Join(h.docsRoot, filepath.FromSlash(item.MarkdownRel))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return progress.Meta{}, services.Wrap(services.ErrNotFound, "translate", "read", path, err)
		}
		return progress.Meta{}, services.Wrap(services.ErrContent, "translate", "read", path, err)
	}
	if !utf8.Valid(raw) {
		return progress.Meta{}, services.Wrap(services.ErrContent, "translate", "read",
			fmt.Sprintf("%s: not valid utf-8", item.MarkdownRel), nil)
	}

	content := string(raw)
	if content == "" {
		return progress.Meta{}, nil
	}

	if score := textstat.ScriptRatio(textstat.StripCode(content), h.script); score >= h.skipThreshold {
		logging.WithContext(ctx, h.logger).Debug("file already in target script",
			logging.String("path", item.MarkdownRel),
			logging.Float64("score", score))
		return progress.Meta{Bytes: int64(len(raw)), Score: score}, nil
	}

	translated, err := TranslateDocument(ctx, h.translator, content, h.maxChunkChars)
	if err != nil {
		return progress.Meta{}, err
	}

	if err := fileutil.WriteFileAtomic(path, []byte(translated), 0o644); err != nil {
		return progress.Meta{}, services.Wrap(services.ErrFatal, "translate", "write", path, err)
	}

	score := textstat.ScriptRatio(textstat.StripCode(translated), h.script)
	return progress.Meta{Bytes: int64(len(translated)), Score: score}, nil
}

// CompletionProbe treats a file already dominated by the target script as
// done, so rebuilt state skips it.
func CompletionProbe(docsRoot string, script *unicode.RangeTable, threshold float64) progress.CompletionProbe {
	if script == nil {
		script = unicode.Cyrillic
	}
	if threshold <= 0 {
		threshold = DefaultSkipThreshold
	}
	return func(item catalog.WorkItem) (bool, progress.Meta) {
		raw, err := os.ReadFile(filepath.Join(docsRoot, filepath.FromSlash(item.MarkdownRel)))
		if err != nil || len(raw) == 0 {
			return false, progress.Meta{}
		}
		score := textstat.ScriptRatio(textstat.StripCode(string(raw)), script)
		if score < threshold {
			return false, progress.Meta{}
		}
		return true, progress.Meta{Bytes: int64(len(raw)), Score: score}
	}
}
