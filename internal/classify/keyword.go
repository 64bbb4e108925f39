package classify

import (
	"fmt"
	"strings"
)

// Keyword sets for the last-resort heuristic. Matching is case-insensitive
// substring containment.
var keywordSets = map[Agent][]string{
	AgentJournal: {
		"meeting", "deadline", "client", "team", "completed", "finished",
		"worked on", "sprint", "deploy", "standup", "shipped", "review",
	},
	AgentMemory: {
		"remember", "felt", "grateful", "childhood", "mom", "dad", "family",
		"grandma", "grandpa", "nostalgic", "miss her", "miss him",
	},
	AgentRepository: {
		"idea for", "build an app", "project that", "prototype", "what if we",
		"side project", "tool that", "app that",
	},
}

// KeywordFallback is the total last-resort classifier. The orchestrator calls
// it directly if a configured classifier ever returns an error.
func KeywordFallback(transcript string) Decision {
	return classifyByKeywords(transcript)
}

// classifyByKeywords scores the transcript against each agent's keyword set.
// The primary is the agent with the most matches; ties resolve in the order
// repository, journal, memory. Zero matches default to journal at low
// confidence. Secondary agents are never produced here.
func classifyByKeywords(transcript string) Decision {
	lowered := strings.ToLower(transcript)

	counts := make(map[Agent]int, len(keywordSets))
	for agent, keywords := range keywordSets {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				counts[agent]++
			}
		}
	}

	best := Agent("")
	bestCount := 0
	for _, agent := range tieBreakOrder {
		if counts[agent] > bestCount {
			best = agent
			bestCount = counts[agent]
		}
	}

	if bestCount == 0 {
		return Decision{
			Primary:    AgentJournal,
			Confidence: 0.2,
			Rationale:  "no keywords matched; defaulting to journal",
			Mode:       ModeKeywordFallback,
		}
	}

	confidence := 0.4 + 0.15*float64(bestCount)
	if confidence > 1.0 {
		confidence = 1.0
	}
	return Decision{
		Primary:    best,
		Confidence: confidence,
		Rationale:  fmt.Sprintf("keyword match: %d hits for %s", bestCount, best),
		Mode:       ModeKeywordFallback,
	}
}
