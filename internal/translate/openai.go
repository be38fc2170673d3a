package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"docpipe/internal/services"
)

// OpenAIConfig configures the chat-completion translator. BaseURL supports
// any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	SourceLang string
	TargetLang string
	Timeout    time.Duration
}

// OpenAITranslator translates prose chunks through a chat-completion API.
type OpenAITranslator struct {
	client       openai.Client
	model        string
	systemPrompt string
}

// NewOpenAITranslator builds the translator. Retries are the stage runner's
// job, so the client's own retry loop is disabled.
func NewOpenAITranslator(cfg OpenAIConfig) (*OpenAITranslator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrFatal, "translate", "configure",
			"missing API key", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITranslator{
		client:       openai.NewClient(opts...),
		model:        cfg.Model,
		systemPrompt: buildSystemPrompt(cfg.SourceLang, cfg.TargetLang),
	}, nil
}

func buildSystemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(`You are a technical translator. Translate the following technical documentation from %s to %s.

Rules:
- Preserve all Markdown formatting exactly (headings, lists, tables, emphasis).
- Never modify placeholders of the form __CODE_BLOCK_N__.
- Never translate URLs, file paths, identifiers, or inline code.
- Keep established technical terminology; do not invent translations for API names.
- Output only the translated text with no commentary.`, sourceLang, targetLang)
}

// Translate sends one chunk. Rate limiting, server errors, and timeouts map
// to the transient marker so the runner retries with backoff.
func (t *OpenAITranslator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(t.systemPrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", services.Wrap(services.ErrTransient, "translate", "completion",
			"empty response from model", nil)
	}
	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return "", services.Wrap(services.ErrContent, "translate", "completion",
			"model returned an empty translation", nil)
	}
	return translated, nil
}

func classifyAPIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500:
			return services.Wrap(services.ErrTransient, "translate", "completion",
				fmt.Sprintf("http %d", apiErr.StatusCode), err)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrFatal, "translate", "completion",
				"authentication rejected", err)
		default:
			return services.Wrap(services.ErrContent, "translate", "completion",
				fmt.Sprintf("http %d", apiErr.StatusCode), err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, "translate", "completion", "request timed out", err)
	}
	// Network-level failures without an API status are retried.
	return services.Wrap(services.ErrTransient, "translate", "completion", "", err)
}
