package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"docpipe/internal/catalog"
	"docpipe/internal/fetch"
	"docpipe/internal/services"
)

func TestFetchPageClassifiesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/library/asyncio.html":
			w.Write([]byte("<html><body>ok</body></html>"))
		case "/library/gone.html":
			w.WriteHeader(http.StatusNotFound)
		case "/library/busy.html":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/library/ratelimited.html":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer server.Close()

	client := fetch.NewClient(server.URL, time.Second)
	ctx := context.Background()

	if _, err := client.FetchPage(ctx, "library/asyncio.html"); err != nil {
		t.Fatalf("ok page: %v", err)
	}
	if _, err := client.FetchPage(ctx, "library/gone.html"); !services.IsContent(err) {
		t.Fatalf("404 should be a content error, got %v", err)
	}
	if _, err := client.FetchPage(ctx, "library/busy.html"); !services.IsTransient(err) {
		t.Fatalf("503 should be transient, got %v", err)
	}
	if _, err := client.FetchPage(ctx, "library/ratelimited.html"); !services.IsTransient(err) {
		t.Fatalf("429 should be transient, got %v", err)
	}
	if _, err := client.FetchPage(ctx, "library/forbidden.html"); !services.IsContent(err) {
		t.Fatalf("403 should be a content error, got %v", err)
	}
}

func TestFetchPageConnectionRefusedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := fetch.NewClient(server.URL, time.Second)
	if _, err := client.FetchPage(context.Background(), "library/asyncio.html"); !services.IsTransient(err) {
		t.Fatalf("connection refused should be transient, got %v", err)
	}
}

func TestHandlerWritesMarkdown(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	docs := t.TempDir()
	client := fetch.NewClient(server.URL, time.Second)
	handler := fetch.NewHandler(client, docs, nil)

	item := catalog.ItemForURL("library/asyncio.html")
	meta, err := handler.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if requests.Load() != 1 {
		t.Fatalf("requests = %d", requests.Load())
	}

	path := filepath.Join(docs, "02_LIBRARY", "asyncio.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if meta.Bytes != int64(len(data)) {
		t.Fatalf("meta.Bytes = %d, file = %d", meta.Bytes, len(data))
	}
	content := string(data)
	if !strings.Contains(content, "# asyncio") {
		t.Fatalf("markdown missing heading:\n%s", content)
	}
	if !strings.Contains(content, "Source: "+server.URL+"/library/asyncio.html") {
		t.Fatalf("markdown missing source line:\n%s", content)
	}
}

func TestHandlerEmptyPageIsContentError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body><nav>only chrome</nav></body></html>"))
	}))
	defer server.Close()

	handler := fetch.NewHandler(fetch.NewClient(server.URL, time.Second), t.TempDir(), nil)
	_, err := handler.Process(context.Background(), catalog.ItemForURL("library/empty.html"))
	if !services.IsContent(err) {
		t.Fatalf("expected content error for empty page, got %v", err)
	}
}

func TestCompletionProbe(t *testing.T) {
	docs := t.TempDir()
	probe := fetch.CompletionProbe(docs)
	item := catalog.ItemForURL("library/asyncio.html")

	if done, _ := probe(item); done {
		t.Fatal("missing file reported done")
	}

	path := filepath.Join(docs, "02_LIBRARY", "asyncio.md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if done, _ := probe(item); done {
		t.Fatal("empty file reported done")
	}

	if err := os.WriteFile(path, []byte("# asyncio\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	done, meta := probe(item)
	if !done || meta.Bytes == 0 {
		t.Fatalf("done = %v meta = %+v", done, meta)
	}
}
