package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/scribe/internal/observability"
)

type fakeInvoker struct {
	response string
	err      error
	calls    int
}

func (f *fakeInvoker) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error"})
}

func TestPathHintMapping(t *testing.T) {
	ctx := context.Background()
	classifier := NewPathHint()

	cases := []struct {
		key  string
		want Agent
	}{
		{"transcripts/work/2024/01/15/mon.txt", AgentJournal},
		{"transcripts/memories/2024/07/04/sunset.txt", AgentMemory},
		{"transcripts/github_ideas/2024/02/02/tracker.txt", AgentRepository},
	}
	for _, tc := range cases {
		decision, err := classifier.Classify(ctx, tc.key, "whatever")
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tc.key, err)
		}
		if decision.Primary != tc.want {
			t.Errorf("Classify(%q).Primary = %q, want %q", tc.key, decision.Primary, tc.want)
		}
		if decision.Confidence != 1.0 {
			t.Errorf("Classify(%q).Confidence = %v, want 1.0", tc.key, decision.Confidence)
		}
		if decision.Mode != ModePathHint {
			t.Errorf("Classify(%q).Mode = %q, want path_hint", tc.key, decision.Mode)
		}
		if len(decision.Secondary) != 0 {
			t.Errorf("Classify(%q).Secondary = %v, want empty", tc.key, decision.Secondary)
		}
	}
}

func TestPathHintUnknownHintFallsToKeywords(t *testing.T) {
	ctx := context.Background()
	classifier := NewPathHint()

	decision, err := classifier.Classify(ctx,
		"transcripts/unclassified/2024/03/03/mixed.txt",
		"Had an idea for an app while remembering my first project at work.")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Mode != ModeKeywordFallback {
		t.Errorf("Mode = %q, want keyword_fallback", decision.Mode)
	}
	if decision.Primary != AgentRepository {
		t.Errorf("Primary = %q, want repository (tie broken toward repository)", decision.Primary)
	}
	if len(decision.Secondary) != 0 {
		t.Errorf("Secondary = %v, want empty in keyword mode", decision.Secondary)
	}
}

func TestKeywordFallbackEmptyTranscript(t *testing.T) {
	decision := classifyByKeywords("")
	if decision.Primary != AgentJournal {
		t.Errorf("Primary = %q, want journal", decision.Primary)
	}
	if decision.Confidence != 0.2 {
		t.Errorf("Confidence = %v, want 0.2", decision.Confidence)
	}
	if decision.Mode != ModeKeywordFallback {
		t.Errorf("Mode = %q, want keyword_fallback", decision.Mode)
	}
}

func TestKeywordConfidenceFormula(t *testing.T) {
	// Two journal keywords: "meeting" and "deadline".
	decision := classifyByKeywords("The meeting moved the deadline.")
	if decision.Primary != AgentJournal {
		t.Fatalf("Primary = %q, want journal", decision.Primary)
	}
	want := 0.4 + 0.15*2
	if decision.Confidence != want {
		t.Errorf("Confidence = %v, want %v", decision.Confidence, want)
	}
}

func TestContentModeValidDecision(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{response: `{
		"primary": "memory",
		"secondary": [{"agent": "journal", "confidence": 0.7}],
		"confidence": 0.9,
		"rationale": "personal reflection with work context"
	}`}
	classifier := NewContent(invoker, 0.5, testLogger())

	decision, err := classifier.Classify(ctx, "transcripts/unclassified/2024/03/03/mixed.txt", "text")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Primary != AgentMemory {
		t.Errorf("Primary = %q, want memory", decision.Primary)
	}
	if decision.Mode != ModeContent {
		t.Errorf("Mode = %q, want content", decision.Mode)
	}
	if len(decision.Secondary) != 1 || decision.Secondary[0] != AgentJournal {
		t.Errorf("Secondary = %v, want [journal]", decision.Secondary)
	}
}

func TestContentModeDropsLowConfidenceSecondaries(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{response: `{
		"primary": "repository",
		"secondary": [
			{"agent": "journal", "confidence": 0.4},
			{"agent": "memory", "confidence": 0.8},
			{"agent": "repository", "confidence": 0.9}
		],
		"confidence": 0.85,
		"rationale": "app idea"
	}`}
	classifier := NewContent(invoker, 0.5, testLogger())

	decision, err := classifier.Classify(ctx, "transcripts/unclassified/2024/03/03/x.txt", "text")
	if err != nil {
		t.Fatal(err)
	}
	// journal is below the 0.6 gate; repository duplicates the primary.
	if len(decision.Secondary) != 1 || decision.Secondary[0] != AgentMemory {
		t.Errorf("Secondary = %v, want [memory]", decision.Secondary)
	}
}

func TestContentModeStripsCodeFences(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{response: "```json\n{\"primary\": \"journal\", \"confidence\": 0.8, \"rationale\": \"work\"}\n```"}
	classifier := NewContent(invoker, 0.5, testLogger())

	decision, err := classifier.Classify(ctx, "transcripts/unclassified/2024/03/03/x.txt", "text")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Primary != AgentJournal || decision.Mode != ModeContent {
		t.Errorf("decision = %+v, want journal via content", decision)
	}
}

func TestContentModeFallsBackOnLowConfidence(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{response: `{"primary": "memory", "confidence": 0.3, "rationale": "unsure"}`}
	classifier := NewContent(invoker, 0.5, testLogger())

	decision, err := classifier.Classify(ctx, "transcripts/work/2024/01/15/mon.txt", "text")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Mode != ModePathHint {
		t.Errorf("Mode = %q, want path_hint fallback", decision.Mode)
	}
	if decision.Primary != AgentJournal {
		t.Errorf("Primary = %q, want journal from hint", decision.Primary)
	}
}

func TestContentModeFallsBackOnModelError(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{err: errors.New("model unavailable")}
	classifier := NewContent(invoker, 0.5, testLogger())

	decision, err := classifier.Classify(ctx,
		"transcripts/unclassified/2024/03/03/mixed.txt",
		"I am grateful for my family and remember my childhood summers.")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Mode != ModeKeywordFallback {
		t.Errorf("Mode = %q, want keyword_fallback (no usable hint)", decision.Mode)
	}
	if decision.Primary != AgentMemory {
		t.Errorf("Primary = %q, want memory", decision.Primary)
	}
}

func TestContentModeFallsBackOnGarbageJSON(t *testing.T) {
	ctx := context.Background()
	invoker := &fakeInvoker{response: "definitely not json"}
	classifier := NewContent(invoker, 0.5, testLogger())

	decision, err := classifier.Classify(ctx, "transcripts/memories/2024/07/04/sunset.txt", "text")
	if err != nil {
		t.Fatal(err)
	}
	if decision.Mode != ModePathHint || decision.Primary != AgentMemory {
		t.Errorf("decision = %+v, want memory via path_hint", decision)
	}
}

func TestContentModeRejectsUnknownPrimary(t *testing.T) {
	_, err := parseContentResponse(`{"primary": "calendar", "confidence": 0.9}`)
	if err == nil {
		t.Fatal("parseContentResponse accepted unknown primary")
	}
}

func TestDecisionInvariants(t *testing.T) {
	decision, err := parseContentResponse(`{
		"primary": "journal",
		"secondary": ["memory", "memory", "journal"],
		"confidence": 0.8,
		"rationale": "x"
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(decision.Secondary) != 1 || decision.Secondary[0] != AgentMemory {
		t.Errorf("Secondary = %v, want deduplicated [memory] excluding primary", decision.Secondary)
	}
}
