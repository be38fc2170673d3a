package render_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docpipe/internal/catalog"
	"docpipe/internal/render"
	"docpipe/internal/services"
)

// fakeEngine returns a fixed payload and captures the HTML it was given.
type fakeEngine struct {
	html []byte
	err  error
}

func (f *fakeEngine) Render(_ context.Context, html []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.html = html
	return []byte("%PDF-1.7 fake"), nil
}

func (f *fakeEngine) Close() error { return nil }

func writeDoc(t *testing.T, docs, rel, content string) {
	t.Helper()
	path := filepath.Join(docs, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConverterProducesStyledPage(t *testing.T) {
	conv := render.NewConverter()
	md := "# Заголовок\n\nАбзац с `кодом`.\n\n```python\nprint(1)\n```\n\n| A | B |\n|---|---|\n| 1 | 2 |\n"
	page, err := conv.Convert("Заголовок", []byte(md))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	html := string(page)
	for _, part := range []string{
		`<meta charset="utf-8">`,
		"<title>Заголовок</title>",
		"DejaVu Sans",
		"<h1",
		"Абзац",
		"<table>",
	} {
		if !strings.Contains(html, part) {
			t.Errorf("page missing %q", part)
		}
	}
}

func TestConverterEscapesTitle(t *testing.T) {
	page, err := render.NewConverter().Convert("<script>&", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(page), "<title><script>") {
		t.Fatal("title not escaped")
	}
}

func TestHandlerWritesPDF(t *testing.T) {
	docs := t.TempDir()
	writeDoc(t, docs, "02_LIBRARY/asyncio.md", "# Модуль asyncio\n\nОписание модуля.\n")

	engine := &fakeEngine{}
	handler := render.NewHandler(render.NewConverter(), engine, docs, nil)
	item := catalog.ItemForMarkdown("02_LIBRARY/asyncio.md")

	meta, err := handler.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(string(engine.html), "<title>Модуль asyncio</title>") {
		t.Fatalf("engine got wrong title:\n%s", engine.html)
	}

	pdfPath := filepath.Join(docs, "02_LIBRARY", "asyncio.pdf")
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("pdf missing: %v", err)
	}
	if meta.Bytes != int64(len(data)) {
		t.Fatalf("meta.Bytes = %d, file = %d", meta.Bytes, len(data))
	}
	if _, err := os.Stat(pdfPath + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestHandlerMissingSourceIsContentError(t *testing.T) {
	handler := render.NewHandler(render.NewConverter(), &fakeEngine{}, t.TempDir(), nil)
	_, err := handler.Process(context.Background(), catalog.ItemForMarkdown("02_LIBRARY/nope.md"))
	if !services.IsContent(err) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestHandlerEmptySourceIsContentError(t *testing.T) {
	docs := t.TempDir()
	writeDoc(t, docs, "empty.md", "")
	handler := render.NewHandler(render.NewConverter(), &fakeEngine{}, docs, nil)
	_, err := handler.Process(context.Background(), catalog.ItemForMarkdown("empty.md"))
	if !services.IsContent(err) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestHandlerPropagatesEngineError(t *testing.T) {
	docs := t.TempDir()
	writeDoc(t, docs, "doc.md", "# Doc\n\ntext\n")
	engineErr := services.Wrap(services.ErrTransient, "render", "print pdf", "browser crashed", nil)
	handler := render.NewHandler(render.NewConverter(), &fakeEngine{err: engineErr}, docs, nil)
	_, err := handler.Process(context.Background(), catalog.ItemForMarkdown("doc.md"))
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCompletionProbe(t *testing.T) {
	docs := t.TempDir()
	item := catalog.ItemForMarkdown("02_LIBRARY/asyncio.md")
	probe := render.CompletionProbe(docs)

	if done, _ := probe(item); done {
		t.Fatal("missing pdf reported done")
	}
	writeDoc(t, docs, "02_LIBRARY/asyncio.pdf", "%PDF-1.7 fake")
	done, meta := probe(item)
	if !done || meta.Bytes == 0 {
		t.Fatalf("done = %v meta = %+v", done, meta)
	}
}
