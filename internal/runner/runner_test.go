package runner_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docpipe/internal/catalog"
	"docpipe/internal/logging"
	"docpipe/internal/progress"
	"docpipe/internal/runner"
	"docpipe/internal/services"
)

func testItems(keys ...string) []catalog.WorkItem {
	items := make([]catalog.WorkItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, catalog.WorkItem{Key: key, MarkdownRel: key})
	}
	return items
}

func newTestRunner(t *testing.T, cfg runner.Config) (*runner.Runner, *progress.Store) {
	t.Helper()
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = t.TempDir()
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Millisecond
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = 2 * time.Millisecond
	}
	store := progress.NewStore(cfg.OutputRoot, "fetch")
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	return runner.New(store, cfg, logging.NewNop()), store
}

func TestTransientFailureRecoversWithinRetryLimit(t *testing.T) {
	r, store := newTestRunner(t, runner.Config{Attempts: 3})
	attempts := map[string]int{}
	process := func(_ context.Context, item catalog.WorkItem) (progress.Meta, error) {
		attempts[item.Key]++
		if item.Key == "b" && attempts[item.Key] <= 2 {
			return progress.Meta{}, services.Wrap(services.ErrTransient, "fetch", "get", "timeout", nil)
		}
		return progress.Meta{Bytes: 1}, nil
	}

	summary, err := r.Run(context.Background(), "fetch", testItems("a", "b", "c"), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Done != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if attempts["b"] != 3 {
		t.Fatalf("b attempted %d times, want 3", attempts["b"])
	}
	for _, key := range []string{"a", "b", "c"} {
		rec, ok := store.Record(key)
		if !ok || rec.Status != progress.StatusDone {
			t.Fatalf("record %q = %+v ok=%v", key, rec, ok)
		}
	}
	if store.RunState().Cause != progress.CauseCompleted {
		t.Fatalf("cause = %q", store.RunState().Cause)
	}
}

func TestPartialFailureIsolation(t *testing.T) {
	r, store := newTestRunner(t, runner.Config{Attempts: 2})
	process := func(_ context.Context, item catalog.WorkItem) (progress.Meta, error) {
		if item.Key == "b" {
			return progress.Meta{}, services.Wrap(services.ErrTransient, "fetch", "get", "always down", nil)
		}
		return progress.Meta{}, nil
	}

	summary, err := r.Run(context.Background(), "fetch", testItems("a", "b", "c"), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Done != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Failures) != 1 || summary.Failures[0].Key != "b" {
		t.Fatalf("failures = %+v", summary.Failures)
	}
	rec, _ := store.Record("b")
	if rec.Status != progress.StatusFailed || rec.Error == "" {
		t.Fatalf("failed record = %+v", rec)
	}
	if store.RunState().Cause != progress.CauseCompleted {
		t.Fatalf("one bad item must not abort the batch: cause = %q", store.RunState().Cause)
	}
}

func TestContentErrorIsNotRetried(t *testing.T) {
	r, _ := newTestRunner(t, runner.Config{Attempts: 3})
	attempts := 0
	process := func(_ context.Context, _ catalog.WorkItem) (progress.Meta, error) {
		attempts++
		return progress.Meta{}, services.Wrap(services.ErrContent, "fetch", "convert", "bad encoding", nil)
	}

	summary, err := r.Run(context.Background(), "fetch", testItems("a"), process)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("content error retried: %d attempts", attempts)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestIdempotentSecondRun(t *testing.T) {
	root := t.TempDir()
	r, store := newTestRunner(t, runner.Config{Attempts: 3, OutputRoot: root})
	calls := 0
	process := func(_ context.Context, _ catalog.WorkItem) (progress.Meta, error) {
		calls++
		return progress.Meta{}, nil
	}
	items := testItems("a", "b", "c")

	if _, err := r.Run(context.Background(), "fetch", items, process); err != nil {
		t.Fatal(err)
	}
	first := store.Records()

	summary, err := r.Run(context.Background(), "fetch", items, process)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("second run reprocessed items: %d calls", calls)
	}
	if summary.Skipped != 3 || summary.Done != 0 {
		t.Fatalf("second run summary = %+v", summary)
	}
	second := store.Records()
	for key, rec := range first {
		if second[key].Status != rec.Status {
			t.Fatalf("record %q changed: %+v -> %+v", key, rec, second[key])
		}
	}
}

func TestInterruptAndResume(t *testing.T) {
	root := t.TempDir()
	items := testItems("a", "b", "c", "d")

	ctx, cancel := context.WithCancel(context.Background())
	processed := 0
	process := func(_ context.Context, _ catalog.WorkItem) (progress.Meta, error) {
		processed++
		if processed == 2 {
			cancel()
		}
		return progress.Meta{}, nil
	}

	r, store := newTestRunner(t, runner.Config{Attempts: 3, OutputRoot: root})
	_, err := r.Run(ctx, "fetch", items, process)
	if !errors.Is(err, runner.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if store.RunState().Cause != progress.CauseCanceled {
		t.Fatalf("cause = %q", store.RunState().Cause)
	}
	if processed != 2 {
		t.Fatalf("processed %d before interrupt, want 2", processed)
	}

	// Fresh store over the same state file, as a new invocation would see it.
	resumeStore := progress.NewStore(root, "fetch")
	if err := resumeStore.Load(); err != nil {
		t.Fatal(err)
	}
	resumed := 0
	resumeProcess := func(_ context.Context, _ catalog.WorkItem) (progress.Meta, error) {
		resumed++
		return progress.Meta{}, nil
	}
	summary, err := runner.New(resumeStore, runner.Config{
		Attempts:       3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
		OutputRoot:     root,
	}, logging.NewNop()).Run(context.Background(), "fetch", items, resumeProcess)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed != 2 {
		t.Fatalf("resume processed %d items, want exactly the remaining 2", resumed)
	}
	if summary.Skipped != 2 || summary.Done != 2 {
		t.Fatalf("resume summary = %+v", summary)
	}
}

func TestDiskGuardAbortsBeforeProcessing(t *testing.T) {
	r, store := newTestRunner(t, runner.Config{
		Attempts:     3,
		MinFreeBytes: 100 << 20,
		FreeSpace:    func(string) (uint64, error) { return 50 << 20, nil },
	})
	process := func(_ context.Context, _ catalog.WorkItem) (progress.Meta, error) {
		t.Fatal("no item may be processed when disk space is short")
		return progress.Meta{}, nil
	}

	summary, err := r.Run(context.Background(), "fetch", testItems("a", "b"), process)
	if err == nil || !services.IsFatal(err) {
		t.Fatalf("expected fatal disk error, got %v", err)
	}
	if summary.Done != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	run := store.RunState()
	if run.Cause != progress.CauseDiskFull {
		t.Fatalf("cause = %q", run.Cause)
	}
	if run.RunID == "" || run.RunID != summary.RunID {
		t.Fatalf("abort recorded under run %q, summary run %q", run.RunID, summary.RunID)
	}
}

func TestCrashBetweenWriteAndMarkLeavesNoDoneRecord(t *testing.T) {
	root := t.TempDir()
	store := progress.NewStore(root, "fetch")
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}

	output := filepath.Join(root, "02_LIBRARY", "asyncio.md")
	// The process writes its output, then the state file becomes unwritable
	// before the done mark, standing in for a crash between the two.
	process := func(_ context.Context, _ catalog.WorkItem) (progress.Meta, error) {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(output, []byte("# asyncio\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Mkdir(store.Path()+".tmp", 0o755); err != nil {
			t.Fatal(err)
		}
		return progress.Meta{Bytes: 10}, nil
	}

	r := runner.New(store, runner.Config{
		Attempts:       3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
		OutputRoot:     root,
	}, logging.NewNop())
	_, err := r.Run(context.Background(), "fetch", testItems("library/asyncio.html"), process)
	if err == nil {
		t.Fatal("failing to persist the done mark must surface an error")
	}

	if err := os.Remove(store.Path() + ".tmp"); err != nil {
		t.Fatal(err)
	}
	reloaded := progress.NewStore(root, "fetch")
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	rec, ok := reloaded.Record("library/asyncio.html")
	if ok && rec.Status == progress.StatusDone {
		t.Fatalf("done record persisted without its mark flush: %+v", rec)
	}
	if data, err := os.ReadFile(output); err != nil || string(data) != "# asyncio\n" {
		t.Fatalf("output file must survive intact: %q %v", data, err)
	}
}

func TestFatalErrorAbortsBatch(t *testing.T) {
	r, store := newTestRunner(t, runner.Config{Attempts: 3})
	processed := 0
	process := func(_ context.Context, item catalog.WorkItem) (progress.Meta, error) {
		processed++
		if item.Key == "b" {
			return progress.Meta{}, services.Wrap(services.ErrFatal, "fetch", "write", "device full", nil)
		}
		return progress.Meta{}, nil
	}

	summary, err := r.Run(context.Background(), "fetch", testItems("a", "b", "c"), process)
	if err == nil || !services.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed %d items, fatal error should stop after b", processed)
	}
	if summary.Done != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if store.RunState().Cause != progress.CauseFatal {
		t.Fatalf("cause = %q", store.RunState().Cause)
	}
}

func TestFailedItemsRunFirstOnResume(t *testing.T) {
	root := t.TempDir()
	store := progress.NewStore(root, "fetch")
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if err := store.Mark("c", progress.StatusFailed, progress.Meta{}, "old failure"); err != nil {
		t.Fatal(err)
	}

	var order []string
	process := func(_ context.Context, item catalog.WorkItem) (progress.Meta, error) {
		order = append(order, item.Key)
		return progress.Meta{}, nil
	}
	r := runner.New(store, runner.Config{
		Attempts:       3,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  2 * time.Millisecond,
		OutputRoot:     root,
	}, logging.NewNop())
	if _, err := r.Run(context.Background(), "fetch", testItems("a", "b", "c"), process); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != "c" {
		t.Fatalf("order = %v, want the previously failed item first", order)
	}
}

func TestOrphanTempSweepBeforeRun(t *testing.T) {
	root := t.TempDir()
	orphan := root + "/leftover.md.tmp"
	if err := os.WriteFile(orphan, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, _ := newTestRunner(t, runner.Config{Attempts: 3, OutputRoot: root})
	process := func(_ context.Context, _ catalog.WorkItem) (progress.Meta, error) {
		return progress.Meta{}, nil
	}
	if _, err := r.Run(context.Background(), "fetch", testItems("a"), process); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("orphan temp file survived the sweep")
	}
}
