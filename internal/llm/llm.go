// Package llm answers free-form input with an OpenAI chat completion when
// no local handler claims it.
package llm

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"iveri/internal/session"
)

var (
	// ErrNotConfigured means no API key is set. It is a configuration
	// state, not a failure.
	ErrNotConfigured = errors.New("language model not configured")
	// ErrTransient covers timeouts, rate limits and server-side failures.
	ErrTransient     = errors.New("language model temporarily unavailable")
	ErrEmptyResponse = errors.New("empty completion")
)

const DefaultModel = "gpt-5-nano"

const systemPrompt = `You are %s, a voice-first assistant running on a small home computer.
Answer in one short, direct spoken sentence unless the user asks for detail.
Your reply is read aloud: no markdown, no lists, no emojis.
Do not repeat the question, do not explain your reasoning, do not ask follow-up questions unless the request is ambiguous.
Interpret intent, not just keywords; use the conversation history for context.
If you do not know, say "I don't know." Never guess.
When the user asks for an action, confirm briefly ("Opening YouTube.").
When the user states a personal fact, acknowledge it briefly ("Got it.").
For factual questions give only the fact.`

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Name       string
	MaxTokens  int64
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Client struct {
	api       openai.Client
	enabled   bool
	model     string
	prompt    string
	maxTokens int64
	timeout   time.Duration
	logger    *log.Logger
}

func New(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Name == "" {
		cfg.Name = "IVERI"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:       openai.NewClient(opts...),
		enabled:   cfg.APIKey != "",
		model:     cfg.Model,
		prompt:    fmt.Sprintf(systemPrompt, cfg.Name),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
}

// Complete sends the system prompt, the history and the new user turn and
// returns the trimmed completion text.
func (c *Client) Complete(ctx context.Context, history []session.Turn, input string) (string, error) {
	if !c.enabled {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Messages: c.messages(history, input),
		Model:    openai.ChatModel(c.model),
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", ErrEmptyResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Completion ready",
		"model", c.model,
		"history", len(history),
		"elapsed", time.Since(start).Round(time.Millisecond))

	return content, nil
}

func (c *Client) messages(history []session.Turn, input string) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(c.prompt))

	for _, t := range history {
		switch t.Role {
		case session.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}

	return append(msgs, openai.UserMessage(input))
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrNotConfigured, err)
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	return fmt.Errorf("chat completion: %w", err)
}
