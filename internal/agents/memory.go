package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/classify"
	"github.com/haasonsaas/scribe/internal/model"
	"github.com/haasonsaas/scribe/internal/observability"
)

// Memory record field bounds.
const (
	maxThemes = 6
	maxPeople = 8
)

// validSentiments is the closed sentiment set. Unknown model output is
// coerced to "unknown", never rejected.
var validSentiments = map[string]bool{
	"joy": true, "sadness": true, "anger": true, "fear": true,
	"gratitude": true, "nostalgia": true, "neutral": true,
	"mixed": true, "unknown": true,
}

// MemoryRecord is one line of the daily memories object.
type MemoryRecord struct {
	Timestamp    string   `json:"timestamp"`
	Content      string   `json:"content"`
	Sentiment    string   `json:"sentiment"`
	Themes       []string `json:"themes"`
	People       []string `json:"people"`
	Significance float64  `json:"significance"`
	Summary      string   `json:"summary,omitempty"`
}

const enrichPromptTemplate = `Extract structured memory metadata from this transcript.

Respond with JSON only, matching exactly this schema:
{
  "sentiment": "joy" | "sadness" | "anger" | "fear" | "gratitude" | "nostalgia" | "neutral" | "mixed",
  "themes": ["short theme", ...],
  "people": ["name", ...],
  "significance": 0.0,
  "summary": "one short sentence"
}

significance is how personally meaningful the moment is, from 0 to 1.
List at most 6 themes and 8 people. Use empty lists when nothing applies.

Transcript:
---
%s
---`

// Memory appends a structured JSON record to the daily memories object. With
// enrichment on, the model extracts sentiment, themes, people, and
// significance; a model failure degrades this event to a minimal record
// instead of failing the processor.
type Memory struct {
	store   blob.Store
	invoker model.Invoker // nil when enrichment is off
	logger  *observability.Logger
}

// NewMemory creates the memory processor. Pass a nil invoker to disable
// enrichment.
func NewMemory(store blob.Store, invoker model.Invoker, logger *observability.Logger) *Memory {
	return &Memory{store: store, invoker: invoker, logger: logger}
}

func (m *Memory) Agent() classify.Agent {
	return classify.AgentMemory
}

// Process derives the record, then appends it as a single JSONL line.
func (m *Memory) Process(ctx context.Context, req Request) Result {
	started := resultClock()

	record := m.deriveRecord(ctx, req)

	line, err := json.Marshal(record)
	if err != nil {
		// Record fields are plain strings and numbers; this cannot happen.
		return failureResult(classify.AgentMemory, req, started, err)
	}

	memoryKey := blob.MemoryKey(req.Timestamp)
	if err := m.store.AppendLine(ctx, memoryKey, string(line)); err != nil {
		m.logger.Error(ctx, "memory append failed", "memory_key", memoryKey, "error", err)
		return failureResult(classify.AgentMemory, req, started, err)
	}

	m.logger.Info(ctx, "memory record appended", "memory_key", memoryKey, "sentiment", record.Sentiment)
	return successResult(classify.AgentMemory, req, started, record)
}

func (m *Memory) deriveRecord(ctx context.Context, req Request) MemoryRecord {
	record := minimalRecord(req)
	if m.invoker == nil {
		return record
	}

	enriched, err := m.enrich(ctx, req.Transcript)
	if err != nil {
		m.logger.Warn(ctx, "memory enrichment failed; writing minimal record", "error", err)
		return record
	}

	record.Sentiment = enriched.Sentiment
	record.Themes = enriched.Themes
	record.People = enriched.People
	record.Significance = enriched.Significance
	record.Summary = enriched.Summary
	return record
}

func minimalRecord(req Request) MemoryRecord {
	return MemoryRecord{
		Timestamp:    req.Timestamp.UTC().Format(time.RFC3339),
		Content:      req.Transcript,
		Sentiment:    "unknown",
		Themes:       []string{},
		People:       []string{},
		Significance: 0.5,
	}
}

type enrichment struct {
	Sentiment    string   `json:"sentiment"`
	Themes       []string `json:"themes"`
	People       []string `json:"people"`
	Significance float64  `json:"significance"`
	Summary      string   `json:"summary"`
}

func (m *Memory) enrich(ctx context.Context, transcript string) (enrichment, error) {
	raw, err := m.invoker.Invoke(ctx, fmt.Sprintf(enrichPromptTemplate, transcript), 512)
	if err != nil {
		return enrichment{}, err
	}

	var parsed enrichment
	if err := json.Unmarshal([]byte(model.StripFences(raw)), &parsed); err != nil {
		return enrichment{}, fmt.Errorf("parse enrichment response: %w", err)
	}

	parsed.Sentiment = strings.ToLower(strings.TrimSpace(parsed.Sentiment))
	if !validSentiments[parsed.Sentiment] {
		parsed.Sentiment = "unknown"
	}
	if len(parsed.Themes) > maxThemes {
		parsed.Themes = parsed.Themes[:maxThemes]
	}
	if parsed.Themes == nil {
		parsed.Themes = []string{}
	}
	if len(parsed.People) > maxPeople {
		parsed.People = parsed.People[:maxPeople]
	}
	if parsed.People == nil {
		parsed.People = []string{}
	}
	if parsed.Significance < 0 {
		parsed.Significance = 0
	}
	if parsed.Significance > 1 {
		parsed.Significance = 1
	}
	return parsed, nil
}
