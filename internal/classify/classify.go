// Package classify turns a transcript into a routing decision: a primary
// agent, optional secondary agents, a confidence score, and the classifier
// mode that produced it.
//
// Two classifier variants are selectable by configuration. The path-hint
// variant derives the agent from the object key's hint segment. The content
// variant asks the model to classify the transcript text and falls back to
// path-hint, then to a keyword heuristic. The keyword heuristic always
// produces a decision, so classification as a whole cannot fail.
package classify

import (
	"context"
	"fmt"
)

// Agent identifies a downstream processor. The set is closed; unknown values
// are rejected at the ingest boundary instead of propagated.
type Agent string

const (
	AgentJournal    Agent = "journal"
	AgentMemory     Agent = "memory"
	AgentRepository Agent = "repository"
)

// Agents lists all valid agents in tie-break order for the keyword heuristic:
// repository first, then journal, then memory.
var tieBreakOrder = []Agent{AgentRepository, AgentJournal, AgentMemory}

// ParseAgent validates an agent identifier.
func ParseAgent(s string) (Agent, error) {
	switch Agent(s) {
	case AgentJournal, AgentMemory, AgentRepository:
		return Agent(s), nil
	}
	return "", fmt.Errorf("unknown agent %q", s)
}

// Mode records which classifier variant produced a decision.
type Mode string

const (
	ModePathHint        Mode = "path_hint"
	ModeContent         Mode = "content"
	ModeKeywordFallback Mode = "keyword_fallback"
)

// Decision is the classifier's output.
//
// Invariants: Primary is always set; Secondary never contains Primary and has
// no duplicates; Confidence is in [0, 1].
type Decision struct {
	Primary    Agent
	Secondary  []Agent
	Confidence float64
	Rationale  string
	Mode       Mode
}

// Classifier maps a transcript (and its object key) to a Decision.
type Classifier interface {
	Classify(ctx context.Context, key, transcript string) (Decision, error)
}
