package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/scribe/internal/model"
	"github.com/haasonsaas/scribe/internal/observability"
)

const classifyPromptTemplate = `You route short voice-note transcripts to one of three agents.

Agents:
- "journal": work updates, meetings, tasks, progress reports
- "memory": personal memories, feelings, family, reflections
- "repository": software project ideas worth turning into a code repository

Respond with JSON only, no prose, matching exactly this schema:
{
  "primary": "journal" | "memory" | "repository",
  "secondary": [{"agent": "...", "confidence": 0.0}],
  "confidence": 0.0,
  "rationale": "one short sentence"
}

The secondary list may be empty. Include a secondary agent only when the
transcript genuinely serves it too.

Transcript:
---
%s
---`

// minSecondaryConfidence gates model-proposed secondary agents.
const minSecondaryConfidence = 0.6

// Content classifies by asking the model. Parse or validation failures, and
// decisions below the confidence floor, fall back to path-hint and then to
// the keyword heuristic; the fallback is recorded in the decision's Mode.
type Content struct {
	invoker       model.Invoker
	minConfidence float64
	logger        *observability.Logger
}

// NewContent creates a content classifier.
func NewContent(invoker model.Invoker, minConfidence float64, logger *observability.Logger) *Content {
	if minConfidence <= 0 {
		minConfidence = 0.5
	}
	return &Content{invoker: invoker, minConfidence: minConfidence, logger: logger}
}

// Classify never fails; every error path degrades to a weaker mode.
func (c *Content) Classify(ctx context.Context, key, transcript string) (Decision, error) {
	decision, err := c.classifyByContent(ctx, transcript)
	if err == nil {
		return decision, nil
	}
	c.logger.Warn(ctx, "content classification failed; falling back",
		"error", err)

	if fallback, ok := classifyByHint(key); ok {
		return fallback, nil
	}
	return classifyByKeywords(transcript), nil
}

func (c *Content) classifyByContent(ctx context.Context, transcript string) (Decision, error) {
	raw, err := c.invoker.Invoke(ctx, fmt.Sprintf(classifyPromptTemplate, transcript), 512)
	if err != nil {
		return Decision{}, err
	}

	parsed, err := parseContentResponse(raw)
	if err != nil {
		return Decision{}, err
	}
	if parsed.Confidence < c.minConfidence {
		return Decision{}, fmt.Errorf("confidence %.2f below floor %.2f", parsed.Confidence, c.minConfidence)
	}
	return parsed, nil
}

type contentResponse struct {
	Primary    string            `json:"primary"`
	Secondary  []json.RawMessage `json:"secondary"`
	Confidence float64           `json:"confidence"`
	Rationale  string            `json:"rationale"`
}

type secondaryEntry struct {
	Agent      string   `json:"agent"`
	Confidence *float64 `json:"confidence"`
}

// parseContentResponse validates the model's JSON against the closed agent
// set: a known primary, secondaries drawn from the remaining agents without
// duplicates, confidence in [0, 1].
func parseContentResponse(raw string) (Decision, error) {
	var resp contentResponse
	if err := json.Unmarshal([]byte(model.StripFences(raw)), &resp); err != nil {
		return Decision{}, fmt.Errorf("parse classification response: %w", err)
	}

	primary, err := ParseAgent(resp.Primary)
	if err != nil {
		return Decision{}, fmt.Errorf("invalid primary: %w", err)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return Decision{}, fmt.Errorf("confidence %v out of range", resp.Confidence)
	}

	var secondary []Agent
	seen := map[Agent]bool{primary: true}
	for _, rawEntry := range resp.Secondary {
		agent, confidence, err := parseSecondaryEntry(rawEntry)
		if err != nil {
			return Decision{}, err
		}
		if confidence != nil && *confidence < minSecondaryConfidence {
			continue
		}
		if seen[agent] {
			continue
		}
		seen[agent] = true
		secondary = append(secondary, agent)
	}

	return Decision{
		Primary:    primary,
		Secondary:  secondary,
		Confidence: resp.Confidence,
		Rationale:  resp.Rationale,
		Mode:       ModeContent,
	}, nil
}

// parseSecondaryEntry accepts either a bare agent string or an object with a
// per-entry confidence.
func parseSecondaryEntry(raw json.RawMessage) (Agent, *float64, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		agent, err := ParseAgent(name)
		if err != nil {
			return "", nil, fmt.Errorf("invalid secondary: %w", err)
		}
		return agent, nil, nil
	}

	var entry secondaryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return "", nil, fmt.Errorf("parse secondary entry: %w", err)
	}
	agent, err := ParseAgent(entry.Agent)
	if err != nil {
		return "", nil, fmt.Errorf("invalid secondary: %w", err)
	}
	return agent, entry.Confidence, nil
}
