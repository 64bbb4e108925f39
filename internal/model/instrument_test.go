package model

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haasonsaas/scribe/internal/observability"
)

type stubInvoker struct {
	text string
	err  error
}

func (s *stubInvoker) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return s.text, s.err
}

func TestInstrumentCountsCallsByOpAndStatus(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	ok := Instrument(&stubInvoker{text: "{}"}, "classify", metrics)
	if _, err := ok.Invoke(ctx, "prompt", 512); err != nil {
		t.Fatal(err)
	}
	if _, err := ok.Invoke(ctx, "prompt", 512); err != nil {
		t.Fatal(err)
	}

	failing := Instrument(&stubInvoker{err: errors.New("boom")}, "enrich", metrics)
	if _, err := failing.Invoke(ctx, "prompt", 512); err == nil {
		t.Fatal("want error passed through")
	}

	if got := testutil.ToFloat64(metrics.ModelCalls.WithLabelValues("classify", "success")); got != 2 {
		t.Errorf("classify success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.ModelCalls.WithLabelValues("enrich", "error")); got != 1 {
		t.Errorf("enrich error count = %v, want 1", got)
	}
}

func TestInstrumentPassesThroughNil(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	if got := Instrument(nil, "generate", metrics); got != nil {
		t.Errorf("Instrument(nil) = %v, want nil", got)
	}
	inner := &stubInvoker{}
	if got := Instrument(inner, "generate", nil); got != inner {
		t.Error("nil metrics must return the inner invoker unwrapped")
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"plain fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", "{}"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.in); got != tc.want {
				t.Errorf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
