// Package model wraps the Anthropic Messages API behind a single Invoke
// operation. The adapter retries transport and throttling failures with
// exponential backoff and enforces a hard per-call deadline. It returns raw
// text; JSON parsing and schema validation belong to the callers.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/scribe/internal/backoff"
	"github.com/haasonsaas/scribe/internal/errkind"
	"github.com/haasonsaas/scribe/internal/observability"
)

// Invoker is the single model operation the classifier and processors use.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// DefaultTimeout is the per-call deadline.
const DefaultTimeout = 6 * time.Second

const (
	defaultModel       = "claude-sonnet-4-20250514"
	defaultMaxTokens   = 1024
	defaultMaxAttempts = 3
)

// invokeBackoff retries throttled and transport failures: 250ms base,
// doubling, ±20% jitter.
var invokeBackoff = backoff.Policy{
	Initial: 250 * time.Millisecond,
	Factor:  2,
	Jitter:  0.2,
}

// AnthropicConfig configures the Anthropic-backed invoker.
type AnthropicConfig struct {
	// APIKey is required. Format: sk-ant-...
	APIKey string

	// Model defaults to a current Sonnet snapshot.
	Model string

	// Timeout is the hard per-call deadline. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxAttempts bounds retries on throttle/5xx/transport errors.
	MaxAttempts int
}

// Anthropic implements Invoker against the Anthropic Messages API.
// Safe for concurrent use.
type Anthropic struct {
	client      anthropic.Client
	model       anthropic.Model
	timeout     time.Duration
	maxAttempts int
	logger      *observability.Logger
}

// NewAnthropic creates the invoker.
func NewAnthropic(cfg AnthropicConfig, logger *observability.Logger) (*Anthropic, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errkind.New(errkind.Config, "anthropic api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Anthropic{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       anthropic.Model(model),
		timeout:     timeout,
		maxAttempts: attempts,
		logger:      logger,
	}, nil
}

// Invoke sends a single-turn prompt and returns the concatenated text blocks
// of the response.
func (a *Anthropic) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	text, err := backoff.Retry(ctx, invokeBackoff, a.maxAttempts, isRetryable, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.call(callCtx, prompt, maxTokens)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errkind.Wrap(errkind.Timeout, err)
		}
		if kind, ok := errkind.Of(err); ok && kind == errkind.Timeout {
			return "", err
		}
		return "", errkind.Wrap(errkind.Model, err)
	}
	return text, nil
}

func (a *Anthropic) call(ctx context.Context, prompt string, maxTokens int) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", errkind.Wrap(errkind.Timeout, err)
		}
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("model returned no text content")
	}
	return sb.String(), nil
}

// isRetryable follows the API's signals: throttling and 5xx are transient,
// 4xx semantic errors are not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var kindErr *errkind.Error
	if errors.As(err, &kindErr) && kindErr.Kind == errkind.Timeout {
		// The per-call deadline fired; the parent context may still allow
		// another attempt.
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return true
		}
		if apiErr.StatusCode >= 500 {
			return true
		}
		return false
	}

	msg := err.Error()
	if strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "too many requests") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "unexpected EOF") {
		return true
	}
	return false
}
