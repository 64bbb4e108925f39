package model

import (
	"context"

	"github.com/haasonsaas/scribe/internal/observability"
)

// Instrument wraps an invoker so every call feeds the model-call counter
// under the given operation label (classify|enrich|generate|health). A nil
// invoker or nil metrics passes through unwrapped.
func Instrument(inner Invoker, op string, metrics *observability.Metrics) Invoker {
	if inner == nil || metrics == nil {
		return inner
	}
	return &instrumented{inner: inner, op: op, metrics: metrics}
}

type instrumented struct {
	inner   Invoker
	op      string
	metrics *observability.Metrics
}

func (i *instrumented) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	text, err := i.inner.Invoke(ctx, prompt, maxTokens)
	status := "success"
	if err != nil {
		status = "error"
	}
	i.metrics.ModelCalls.WithLabelValues(i.op, status).Inc()
	return text, err
}
