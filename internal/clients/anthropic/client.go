package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcanthropic "github.com/tmc/langchaingo/llms/anthropic"

	"github.com/yungbote/curriculum-backend/internal/platform/envutil"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// ConfigFromEnv reads ANTHROPIC_* variables.
func ConfigFromEnv() Config {
	return Config{
		APIKey:      envutil.String("ANTHROPIC_API_KEY", ""),
		BaseURL:     envutil.String("ANTHROPIC_BASE_URL", ""),
		Model:       envutil.String("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		MaxTokens:   envutil.Int("ANTHROPIC_MAX_TOKENS", 8192),
		Temperature: envutil.Float("ANTHROPIC_TEMPERATURE", 0.2),
	}
}

const systemPrompt = "You are a careful instructional designer. Follow the output format in the user message exactly."

// Client completes prompts through the Anthropic Messages API.
type Client struct {
	log   *logger.Logger
	llm   *lcanthropic.LLM
	model string
	cfg   Config
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	opts := []lcanthropic.Option{
		lcanthropic.WithToken(cfg.APIKey),
	}
	if cfg.Model != "" {
		opts = append(opts, lcanthropic.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcanthropic.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	l, err := lcanthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic init: %w", err)
	}
	return &Client{
		log:   log.With("client", "AnthropicClient"),
		llm:   l,
		model: cfg.Model,
		cfg:   cfg,
	}, nil
}

func (c *Client) Name() string { return "anthropic" }

// Complete is not instrumented here; llm.Instrument owns request metrics.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(c.cfg.MaxTokens),
		llms.WithTemperature(c.cfg.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("anthropic complete: %w", err)
	}
	var out strings.Builder
	for _, choice := range resp.Choices {
		out.WriteString(choice.Content)
	}
	text := out.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return text, nil
}
