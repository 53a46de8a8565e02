// ABOUTME: Generator backed by an OpenAI-compatible chat completions API.
// ABOUTME: Applies a request rate limit and parses the trailing confidence line.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"
)

const confidenceInstruction = "End your answer with a final line of the form CONFIDENCE: <number between 0 and 1>."

// OpenAIConfig configures the chat completions generator.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int64
	RequestsPerMinute int
	Timeout           time.Duration
}

// OpenAI generates text with a chat completions model.
type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewOpenAI creates a chat completions generator.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Stages never retry; a failed call fails the stage.
		option.WithMaxRetries(0),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	return &OpenAI{
		client:      openai.NewClient(opts...),
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger.With("component", "llm", "provider", "openai"),
	}, nil
}

// Generate sends one chat completion request for the prompt.
func (o *OpenAI) Generate(ctx context.Context, p Prompt) (Completion, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return Completion{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	system := strings.TrimSpace(p.System + "\n\n" + confidenceInstruction)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(p.User),
		},
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(o.maxTokens)
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion for %s: %w", p.Stage, err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("chat completion for %s: %w", p.Stage, ErrEmptyCompletion)
	}

	text, conf, found := ParseConfidence(resp.Choices[0].Message.Content)
	if text == "" {
		return Completion{}, fmt.Errorf("chat completion for %s: %w", p.Stage, ErrEmptyCompletion)
	}

	o.logger.Debug("completion received",
		"stage", p.Stage,
		"model", o.model,
		"duration", time.Since(start),
		"confidence", conf,
		"confidence_reported", found,
	)
	return Completion{Text: text, Confidence: conf}, nil
}
