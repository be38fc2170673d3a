package translate_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode"

	"docpipe/internal/catalog"
	"docpipe/internal/services"
	"docpipe/internal/translate"
)

// fakeTranslator swaps each chunk for fixed cyrillic prose and records what
// it was asked to translate.
type fakeTranslator struct {
	chunks []string
	err    error
}

func (f *fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.chunks = append(f.chunks, text)
	return "Переведённый текст документации.", nil
}

func writeDoc(t *testing.T, docs, rel, content string) string {
	t.Helper()
	path := filepath.Join(docs, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandlerTranslatesProseKeepsCode(t *testing.T) {
	docs := t.TempDir()
	doc := "# asyncio\n\n" +
		"Coroutines declared with async def syntax are the preferred way.\n\n" +
		"```python\nasync def main():\n    pass\n```\n"
	path := writeDoc(t, docs, "02_LIBRARY/asyncio.md", doc)

	tr := &fakeTranslator{}
	handler := translate.NewHandler(tr, translate.HandlerConfig{DocsRoot: docs}, nil)
	item := catalog.ItemForMarkdown("02_LIBRARY/asyncio.md")

	meta, err := handler.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(tr.chunks) == 0 {
		t.Fatal("translator never called")
	}
	for _, chunk := range tr.chunks {
		if strings.Contains(chunk, "async def main") {
			t.Fatalf("code sent to translator: %q", chunk)
		}
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(out)
	if !strings.Contains(content, "```python\nasync def main():\n    pass\n```") {
		t.Fatalf("code block damaged:\n%s", content)
	}
	if !strings.Contains(content, "Переведённый текст") {
		t.Fatalf("prose not translated:\n%s", content)
	}
	if strings.Contains(content, "__CODE_BLOCK_") {
		t.Fatalf("placeholder leaked into output:\n%s", content)
	}
	if meta.Score <= 0 {
		t.Fatalf("meta = %+v, want positive score", meta)
	}
}

func TestHandlerSkipsAlreadyTranslated(t *testing.T) {
	docs := t.TempDir()
	doc := "# Модуль asyncio\n\nКорутины объявляются синтаксисом async def и являются ожидаемыми объектами.\n"
	writeDoc(t, docs, "02_LIBRARY/asyncio.md", doc)

	tr := &fakeTranslator{err: errors.New("must not be called")}
	handler := translate.NewHandler(tr, translate.HandlerConfig{DocsRoot: docs}, nil)

	meta, err := handler.Process(context.Background(), catalog.ItemForMarkdown("02_LIBRARY/asyncio.md"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if meta.Score < 0.35 {
		t.Fatalf("score = %v, expected above threshold", meta.Score)
	}
}

func TestHandlerMissingFileIsContentError(t *testing.T) {
	handler := translate.NewHandler(&fakeTranslator{}, translate.HandlerConfig{DocsRoot: t.TempDir()}, nil)
	_, err := handler.Process(context.Background(), catalog.ItemForMarkdown("02_LIBRARY/nope.md"))
	if !services.IsContent(err) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestHandlerInvalidUTF8IsContentError(t *testing.T) {
	docs := t.TempDir()
	path := filepath.Join(docs, "bad.md")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	handler := translate.NewHandler(&fakeTranslator{}, translate.HandlerConfig{DocsRoot: docs}, nil)
	_, err := handler.Process(context.Background(), catalog.ItemForMarkdown("bad.md"))
	if !services.IsContent(err) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestHandlerEmptyFileIsDone(t *testing.T) {
	docs := t.TempDir()
	writeDoc(t, docs, "empty.md", "")
	handler := translate.NewHandler(&fakeTranslator{err: errors.New("no calls")}, translate.HandlerConfig{DocsRoot: docs}, nil)
	if _, err := handler.Process(context.Background(), catalog.ItemForMarkdown("empty.md")); err != nil {
		t.Fatalf("empty file should succeed trivially: %v", err)
	}
}

func TestHandlerPropagatesTranslatorError(t *testing.T) {
	docs := t.TempDir()
	writeDoc(t, docs, "doc.md", "A long enough english paragraph about coroutines and event loops.\n")
	wantErr := services.Wrap(services.ErrTransient, "translate", "completion", "http 429", nil)
	handler := translate.NewHandler(&fakeTranslator{err: wantErr}, translate.HandlerConfig{DocsRoot: docs}, nil)

	_, err := handler.Process(context.Background(), catalog.ItemForMarkdown("doc.md"))
	if !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCompletionProbe(t *testing.T) {
	docs := t.TempDir()
	writeDoc(t, docs, "ru.md", "Документация переведена полностью и готова к вёрстке.\n")
	writeDoc(t, docs, "en.md", "This file is still entirely in the source language today.\n")

	probe := translate.CompletionProbe(docs, unicode.Cyrillic, 0.35)
	if done, meta := probe(catalog.ItemForMarkdown("ru.md")); !done || meta.Score < 0.35 {
		t.Fatalf("translated file not certified: done=%v meta=%+v", done, meta)
	}
	if done, _ := probe(catalog.ItemForMarkdown("en.md")); done {
		t.Fatal("untranslated file certified as done")
	}
	if done, _ := probe(catalog.ItemForMarkdown("missing.md")); done {
		t.Fatal("missing file certified as done")
	}
}
