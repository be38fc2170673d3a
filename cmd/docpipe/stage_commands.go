package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docpipe/internal/catalog"
	"docpipe/internal/config"
	"docpipe/internal/fetch"
	"docpipe/internal/progress"
	"docpipe/internal/render"
	"docpipe/internal/runlock"
	"docpipe/internal/runner"
	"docpipe/internal/translate"
)

func newFetchCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download documentation pages as Markdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeStages(cmd, cc, "fetch")
		},
	}
}

func newTranslateCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "translate",
		Short: "Translate fetched Markdown to the target language",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeStages(cmd, cc, "translate")
		},
	}
}

func newRenderCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render translated Markdown to PDF",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeStages(cmd, cc, "render")
		},
	}
}

func newRunCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run fetch, translate, and render in order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeStages(cmd, cc, "fetch", "translate", "render")
		},
	}
}

// executeStages runs the named stages in order under signal-based
// cancellation, printing a summary after each. A stage error stops the
// sequence; per-item failures do not.
func executeStages(cmd *cobra.Command, cc *commandContext, stages ...string) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cc.ensureLogger()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Paths.DocsDir, 0o755); err != nil {
		return fmt.Errorf("create docs directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, stage := range stages {
		summary, err := executeStage(ctx, cfg, logger, stage)
		if summary.RunID != "" || summary.Cause != "" {
			printSummary(cmd.OutOrStdout(), summary)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func executeStage(ctx context.Context, cfg *config.Config, logger *slog.Logger, stage string) (runner.Summary, error) {
	lock, err := runlock.Acquire(cfg.Paths.DocsDir, stage)
	if err != nil {
		return runner.Summary{Stage: stage}, err
	}
	defer lock.Release()

	switch stage {
	case "fetch":
		return runFetchStage(ctx, cfg, logger)
	case "translate":
		return runTranslateStage(ctx, cfg, logger)
	case "render":
		return runRenderStage(ctx, cfg, logger)
	default:
		return runner.Summary{Stage: stage}, fmt.Errorf("unknown stage %q", stage)
	}
}

func runFetchStage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (runner.Summary, error) {
	docs := cfg.Paths.DocsDir
	client := fetch.NewClient(cfg.Source.BaseURL, cfg.Source.RequestTimeout(),
		fetch.WithUserAgent(cfg.Source.UserAgent))

	contents, err := client.FetchPage(ctx, cfg.Source.ContentsPath)
	if err != nil {
		return runner.Summary{Stage: "fetch"}, fmt.Errorf("fetch contents page: %w", err)
	}
	items, err := catalog.FromContents(contents, client.BaseURL())
	if err != nil {
		return runner.Summary{Stage: "fetch"}, err
	}

	store := progress.NewStore(docs, "fetch",
		progress.WithCompletionProbe(fetch.CompletionProbe(docs)))
	if err := store.Load(); err != nil {
		return runner.Summary{Stage: "fetch"}, err
	}

	handler := fetch.NewHandler(client, docs, logger)
	r := runner.New(store, runnerConfig(cfg), logger)
	return r.Run(ctx, "fetch", items, handler.Process)
}

func runTranslateStage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (runner.Summary, error) {
	docs := cfg.Paths.DocsDir
	script, ok := cfg.Translate.Script()
	if !ok {
		return runner.Summary{Stage: "translate"}, fmt.Errorf("unknown target script %q", cfg.Translate.TargetScript)
	}

	items, err := catalog.FromDocsTree(docs)
	if err != nil {
		return runner.Summary{Stage: "translate"}, err
	}

	translator, err := translate.NewOpenAITranslator(translate.OpenAIConfig{
		APIKey:     cfg.Translate.APIKey,
		BaseURL:    cfg.Translate.BaseURL,
		Model:      cfg.Translate.Model,
		SourceLang: cfg.Translate.SourceLang,
		TargetLang: cfg.Translate.TargetLang,
		Timeout:    cfg.Translate.RequestTimeout(),
	})
	if err != nil {
		return runner.Summary{Stage: "translate"}, err
	}

	store := progress.NewStore(docs, "translate",
		progress.WithCompletionProbe(translate.CompletionProbe(docs, script, cfg.Translate.SkipThreshold)))
	if err := store.Load(); err != nil {
		return runner.Summary{Stage: "translate"}, err
	}

	handler := translate.NewHandler(translator, translate.HandlerConfig{
		DocsRoot:      docs,
		Script:        script,
		SkipThreshold: cfg.Translate.SkipThreshold,
		MaxChunkChars: cfg.Translate.MaxChunkChars,
	}, logger)
	r := runner.New(store, runnerConfig(cfg), logger)
	return r.Run(ctx, "translate", items, handler.Process)
}

func runRenderStage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (runner.Summary, error) {
	docs := cfg.Paths.DocsDir

	items, err := catalog.FromDocsTree(docs)
	if err != nil {
		return runner.Summary{Stage: "render"}, err
	}

	engine, err := render.NewChromiumEngine(render.ChromiumConfig{
		Bin:     cfg.Render.BrowserBin,
		Timeout: cfg.Render.RenderTimeout(),
	})
	if err != nil {
		return runner.Summary{Stage: "render"}, err
	}
	defer engine.Close()

	store := progress.NewStore(docs, "render",
		progress.WithCompletionProbe(render.CompletionProbe(docs)))
	if err := store.Load(); err != nil {
		return runner.Summary{Stage: "render"}, err
	}

	handler := render.NewHandler(render.NewConverter(), engine, docs, logger)
	r := runner.New(store, runnerConfig(cfg), logger)
	return r.Run(ctx, "render", items, handler.Process)
}

func runnerConfig(cfg *config.Config) runner.Config {
	return runner.Config{
		Attempts:       uint(cfg.Runner.RetryAttempts),
		RetryBaseDelay: cfg.Runner.RetryBaseDelay(),
		RetryMaxDelay:  cfg.Runner.RetryMaxDelay(),
		MinFreeBytes:   cfg.Runner.MinFreeBytes(),
		ItemDelay:      cfg.Runner.ItemDelay(),
		OutputRoot:     cfg.Paths.DocsDir,
	}
}
