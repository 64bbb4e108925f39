package classify

import (
	"context"

	"github.com/haasonsaas/scribe/internal/blob"
)

// hintAgents maps the transcript key's hint segment to an agent. Anything
// else, including "unclassified", falls through to the keyword heuristic.
var hintAgents = map[string]Agent{
	"work":         AgentJournal,
	"memories":     AgentMemory,
	"github_ideas": AgentRepository,
}

// PathHint classifies by the object key's hint segment, falling back to the
// keyword heuristic for unknown hints or unparseable keys.
type PathHint struct{}

// NewPathHint creates a path-hint classifier.
func NewPathHint() *PathHint {
	return &PathHint{}
}

// Classify never fails; the keyword fallback is total.
func (p *PathHint) Classify(ctx context.Context, key, transcript string) (Decision, error) {
	if decision, ok := classifyByHint(key); ok {
		return decision, nil
	}
	return classifyByKeywords(transcript), nil
}

func classifyByHint(key string) (Decision, bool) {
	parsed, err := blob.ParseTranscriptKey(key)
	if err != nil {
		return Decision{}, false
	}
	agent, ok := hintAgents[parsed.Hint]
	if !ok {
		return Decision{}, false
	}
	return Decision{
		Primary:    agent,
		Confidence: 1.0,
		Rationale:  "path hint: " + parsed.Hint,
		Mode:       ModePathHint,
	}, true
}
